package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/sos-dispatch/internal/models"
)

var (
	// ErrNotFound: no assignment matched the lookup.
	ErrNotFound = errors.New("assignment not found")
	// ErrConflict: an illegal status transition was attempted.
	ErrConflict = errors.New("assignment already resolved")
	// ErrPersistence wraps backend failures. The operation left no partial
	// state, so callers may retry the whole logical call.
	ErrPersistence = errors.New("persistence failure")
)

// AssignmentStore owns assignment records for their whole lifetime. Reads
// that can match several records order by creation time descending and take
// the latest.
type AssignmentStore interface {
	Save(ctx context.Context, a *models.Assignment) error
	Get(ctx context.Context, id string) (*models.Assignment, error)
	LatestActiveByRequester(ctx context.Context, requesterID string) (*models.Assignment, error)
	LatestActiveByDriver(ctx context.Context, driverID string) (*models.Assignment, error)
	ActiveByHospital(ctx context.Context, hospitalID string) ([]*models.Assignment, error)
	// UpdateDriverLocation patches the driver-location snapshot on every
	// active assignment naming driverID.
	UpdateDriverLocation(ctx context.Context, driverID string, c models.Coord) error
	// Resolve moves an active assignment to resolved. Resolved is terminal.
	Resolve(ctx context.Context, id string) (*models.Assignment, error)
}

type MemoryStore struct {
	mu          sync.RWMutex
	assignments map[string]*models.Assignment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assignments: make(map[string]*models.Assignment)}
}

func (m *MemoryStore) Save(_ context.Context, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) LatestActiveByRequester(_ context.Context, requesterID string) (*models.Assignment, error) {
	return m.latestActive(func(a *models.Assignment) bool { return a.RequesterID == requesterID })
}

func (m *MemoryStore) LatestActiveByDriver(_ context.Context, driverID string) (*models.Assignment, error) {
	return m.latestActive(func(a *models.Assignment) bool { return a.DriverID == driverID })
}

func (m *MemoryStore) latestActive(match func(*models.Assignment) bool) (*models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *models.Assignment
	for _, a := range m.assignments {
		if a.Status != models.StatusActive || !match(a) {
			continue
		}
		if best == nil || a.CreatedAt.After(best.CreatedAt) ||
			(a.CreatedAt.Equal(best.CreatedAt) && a.ID > best.ID) {
			best = a
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MemoryStore) ActiveByHospital(_ context.Context, hospitalID string) ([]*models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Assignment, 0)
	for _, a := range m.assignments {
		if a.Status != models.StatusActive || a.HospitalID != hospitalID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	// newest first, id as tiebreak, so the roster is stable for a fixed set
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdateDriverLocation(_ context.Context, driverID string, c models.Coord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.Status == models.StatusActive && a.DriverID == driverID {
			a.DriverLocation = c
		}
	}
	return nil
}

func (m *MemoryStore) Resolve(_ context.Context, id string) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != models.StatusActive {
		return nil, ErrConflict
	}
	a.Status = models.StatusResolved
	cp := *a
	return &cp, nil
}
