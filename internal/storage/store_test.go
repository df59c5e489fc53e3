package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/sos-dispatch/internal/models"
)

func mkAssignment(id, requester, driver, hospital string, status models.Status, created time.Time) *models.Assignment {
	return &models.Assignment{
		ID:          id,
		RequesterID: requester,
		DriverID:    driver,
		HospitalID:  hospital,
		Status:      status,
		CreatedAt:   created,
	}
}

func TestMemoryStoreLatestActiveByDriver(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	_ = m.Save(ctx, mkAssignment("a1", "r1", "d1", "h1", models.StatusActive, base.Add(-time.Hour)))
	_ = m.Save(ctx, mkAssignment("a2", "r2", "d1", "h1", models.StatusActive, base))
	_ = m.Save(ctx, mkAssignment("a3", "r3", "d1", "h1", models.StatusResolved, base.Add(time.Hour)))

	got, err := m.LatestActiveByDriver(ctx, "d1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	// a3 is newer but resolved; a2 is the latest active
	if got.ID != "a2" {
		t.Fatalf("expected a2, got %s", got.ID)
	}
}

func TestMemoryStoreLatestActiveByRequesterNotFound(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.LatestActiveByRequester(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateDriverLocationSkipsResolved(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_ = m.Save(ctx, mkAssignment("active", "r1", "d1", "h1", models.StatusActive, time.Now()))
	_ = m.Save(ctx, mkAssignment("done", "r2", "d1", "h1", models.StatusResolved, time.Now()))

	c := models.Coord{Lat: 12.99, Lng: 77.62}
	if err := m.UpdateDriverLocation(ctx, "d1", c); err != nil {
		t.Fatalf("update: %v", err)
	}
	active, _ := m.Get(ctx, "active")
	if active.DriverLocation != c {
		t.Fatalf("active snapshot not patched: %+v", active.DriverLocation)
	}
	done, _ := m.Get(ctx, "done")
	if done.DriverLocation == c {
		t.Fatal("resolved snapshot must stay frozen")
	}
}

func TestMemoryStoreResolveTransitions(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_ = m.Save(ctx, mkAssignment("a1", "r1", "d1", "h1", models.StatusActive, time.Now()))

	a, err := m.Resolve(ctx, "a1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.Status != models.StatusResolved {
		t.Fatalf("expected resolved, got %s", a.Status)
	}
	if _, err := m.Resolve(ctx, "a1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := m.Resolve(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_ = m.Save(ctx, mkAssignment("a1", "r1", "d1", "h1", models.StatusActive, time.Now()))

	first, _ := m.Get(ctx, "a1")
	first.Status = models.StatusResolved
	second, _ := m.Get(ctx, "a1")
	if second.Status != models.StatusActive {
		t.Fatal("mutating a returned record must not touch the store")
	}
}
