package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/example/sos-dispatch/internal/geo"
	"github.com/example/sos-dispatch/internal/models"
	"github.com/example/sos-dispatch/internal/storage"
)

type countingDirectory struct {
	inner       *geo.Index
	roleQueries []models.Role
}

func (c *countingDirectory) Upsert(ctx context.Context, id string, role models.Role, coord models.Coord) error {
	return c.inner.Upsert(ctx, id, role, coord)
}

func (c *countingDirectory) Nearest(ctx context.Context, role models.Role, origin models.Coord, maxDist float64) (geo.Member, error) {
	c.roleQueries = append(c.roleQueries, role)
	return c.inner.Nearest(ctx, role, origin, maxDist)
}

type recordingStore struct {
	storage.AssignmentStore
	saves int
}

func (r *recordingStore) Save(ctx context.Context, a *models.Assignment) error {
	r.saves++
	return r.AssignmentStore.Save(ctx, a)
}

func newTestService() (*Service, *countingDirectory, *recordingStore) {
	dir := &countingDirectory{inner: geo.NewIndex()}
	store := &recordingStore{AssignmentStore: storage.NewMemoryStore()}
	return &Service{Directory: dir, Store: store}, dir, store
}

func TestCreateAssignmentSnapshotsMatchDirectory(t *testing.T) {
	s, dir, _ := newTestService()
	ctx := context.Background()
	_ = dir.Upsert(ctx, "drv-1", models.RoleDriver, models.Coord{Lat: 12.98, Lng: 77.60})
	_ = dir.Upsert(ctx, "hos-1", models.RoleHospital, models.Coord{Lat: 12.96, Lng: 77.61})

	a, err := s.CreateAssignment(ctx, "req-1", "+91-99999", models.Coord{Lat: 12.97, Lng: 77.59})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != models.StatusActive {
		t.Fatalf("expected active, got %s", a.Status)
	}
	if a.DriverID != "drv-1" || a.HospitalID != "hos-1" {
		t.Fatalf("unexpected parties: %s %s", a.DriverID, a.HospitalID)
	}
	if a.DriverLocation != (models.Coord{Lat: 12.98, Lng: 77.60}) {
		t.Fatalf("driver snapshot %+v", a.DriverLocation)
	}
	if a.HospitalLocation != (models.Coord{Lat: 12.96, Lng: 77.61}) {
		t.Fatalf("hospital snapshot %+v", a.HospitalLocation)
	}
	if a.RequesterLocation != (models.Coord{Lat: 12.97, Lng: 77.59}) {
		t.Fatalf("requester snapshot %+v", a.RequesterLocation)
	}
	if a.RequesterPhone != "+91-99999" {
		t.Fatalf("requester phone %q", a.RequesterPhone)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Fatal("identity and timestamp must be set on creation")
	}
}

func TestCreateAssignmentInvalidCoordinateWritesNothing(t *testing.T) {
	s, _, store := newTestService()
	cases := []models.Coord{
		{Lat: 91, Lng: 0},
		{Lat: -90.5, Lng: 0},
		{Lat: 0, Lng: 181},
		{Lat: 0, Lng: -180.5},
	}
	for _, c := range cases {
		_, err := s.CreateAssignment(context.Background(), "req-1", "", c)
		if !errors.Is(err, models.ErrInvalidInput) {
			t.Fatalf("coord %+v: expected invalid input, got %v", c, err)
		}
	}
	if store.saves != 0 {
		t.Fatalf("expected no writes, got %d", store.saves)
	}
}

func TestCreateAssignmentMissingRequesterID(t *testing.T) {
	s, _, _ := newTestService()
	_, err := s.CreateAssignment(context.Background(), "", "", models.Coord{Lat: 1, Lng: 1})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateAssignmentNoDriverShortCircuits(t *testing.T) {
	s, dir, store := newTestService()
	ctx := context.Background()
	// a hospital exists, but with zero drivers the hospital lookup must
	// never run
	_ = dir.Upsert(ctx, "hos-1", models.RoleHospital, models.Coord{Lat: 12.96, Lng: 77.61})

	_, err := s.CreateAssignment(ctx, "req-1", "", models.Coord{Lat: 12.97, Lng: 77.59})
	if !errors.Is(err, ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
	for _, role := range dir.roleQueries {
		if role == models.RoleHospital {
			t.Fatal("hospital lookup ran despite missing driver")
		}
	}
	if store.saves != 0 {
		t.Fatalf("expected no writes, got %d", store.saves)
	}
}

func TestCreateAssignmentNoHospital(t *testing.T) {
	s, dir, store := newTestService()
	ctx := context.Background()
	_ = dir.Upsert(ctx, "drv-1", models.RoleDriver, models.Coord{Lat: 12.98, Lng: 77.60})

	_, err := s.CreateAssignment(ctx, "req-1", "", models.Coord{Lat: 12.97, Lng: 77.59})
	if !errors.Is(err, ErrNoHospitalAvailable) {
		t.Fatalf("expected ErrNoHospitalAvailable, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no writes, got %d", store.saves)
	}
}

func TestCreateAssignmentPicksNearestDriver(t *testing.T) {
	s, dir, _ := newTestService()
	ctx := context.Background()
	_ = dir.Upsert(ctx, "drv-near", models.RoleDriver, models.Coord{Lat: 12.975, Lng: 77.595})
	_ = dir.Upsert(ctx, "drv-far", models.RoleDriver, models.Coord{Lat: 13.10, Lng: 77.70})
	_ = dir.Upsert(ctx, "hos-1", models.RoleHospital, models.Coord{Lat: 12.96, Lng: 77.61})

	a, err := s.CreateAssignment(ctx, "req-1", "", models.Coord{Lat: 12.97, Lng: 77.59})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.DriverID != "drv-near" {
		t.Fatalf("expected drv-near, got %s", a.DriverID)
	}
}

type failingStore struct{ storage.AssignmentStore }

func (f *failingStore) Save(ctx context.Context, a *models.Assignment) error {
	return storage.ErrPersistence
}

func TestCreateAssignmentSurfacesPersistenceFailure(t *testing.T) {
	dir := &countingDirectory{inner: geo.NewIndex()}
	ctx := context.Background()
	_ = dir.Upsert(ctx, "drv-1", models.RoleDriver, models.Coord{Lat: 1, Lng: 1})
	_ = dir.Upsert(ctx, "hos-1", models.RoleHospital, models.Coord{Lat: 1, Lng: 1})
	s := &Service{Directory: dir, Store: &failingStore{AssignmentStore: storage.NewMemoryStore()}}

	_, err := s.CreateAssignment(ctx, "req-1", "", models.Coord{Lat: 1, Lng: 1})
	if !errors.Is(err, storage.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
}
