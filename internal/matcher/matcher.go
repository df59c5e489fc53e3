package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/sos-dispatch/internal/geo"
	"github.com/example/sos-dispatch/internal/models"
	"github.com/example/sos-dispatch/internal/observability"
	"github.com/example/sos-dispatch/internal/storage"
)

var (
	// ErrNoDriverAvailable: no driver has a stored location near the origin.
	ErrNoDriverAvailable = errors.New("no driver available")
	// ErrNoHospitalAvailable: a driver matched but no hospital did.
	ErrNoHospitalAvailable = errors.New("no hospital available")
)

// Service matches an emergency origin to the nearest driver and the nearest
// hospital and commits the resulting assignment. Driver and hospital are
// matched independently against the same origin, not against each other;
// the selected hospital may be inconvenient relative to the driver. That is
// an accepted simplification, do not "fix" it by chaining the lookups.
type Service struct {
	Directory geo.Directory
	Store     storage.AssignmentStore
	// Actors is optional; when wired the driver's phone is denormalized into
	// the new assignment.
	Actors ActorReader
	// Biller is optional; when wired a fee hold is placed before the record
	// is persisted. A failed hold does not fail the match.
	Biller Biller
	// MaxSearchRadiusMeters caps both nearest-neighbor queries; 0 means
	// unbounded.
	MaxSearchRadiusMeters float64
}

type ActorReader interface {
	Get(ctx context.Context, id string) (models.Actor, error)
}

type Biller interface {
	Hold(ctx context.Context, requesterID string) (string, error)
}

// CreateAssignment runs the match and persists the record. The single write
// happens last, so a failure anywhere leaves no partial state and the whole
// call can be retried.
func (s *Service) CreateAssignment(ctx context.Context, requesterID, requesterPhone string, origin models.Coord) (*models.Assignment, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("%w: requester id required", models.ErrInvalidInput)
	}
	if err := origin.Validate(); err != nil {
		return nil, err
	}

	driver, err := s.Directory.Nearest(ctx, models.RoleDriver, origin, s.MaxSearchRadiusMeters)
	if errors.Is(err, geo.ErrNotFound) {
		observability.MatchFailures.WithLabelValues("no_driver").Inc()
		return nil, ErrNoDriverAvailable
	}
	if err != nil {
		return nil, err
	}

	hospital, err := s.Directory.Nearest(ctx, models.RoleHospital, origin, s.MaxSearchRadiusMeters)
	if errors.Is(err, geo.ErrNotFound) {
		observability.MatchFailures.WithLabelValues("no_hospital").Inc()
		return nil, ErrNoHospitalAvailable
	}
	if err != nil {
		return nil, err
	}

	a := &models.Assignment{
		ID:                uuid.NewString(),
		RequesterID:       requesterID,
		DriverID:          driver.ID,
		HospitalID:        hospital.ID,
		RequesterLocation: origin,
		DriverLocation:    driver.Coord,
		HospitalLocation:  hospital.Coord,
		RequesterPhone:    requesterPhone,
		DriverPhone:       s.driverPhone(ctx, driver.ID),
		Status:            models.StatusActive,
		CreatedAt:         time.Now().UTC(),
	}
	if s.Biller != nil {
		if held, err := s.Biller.Hold(ctx, requesterID); err == nil {
			a.BillingHoldID = held
		}
	}
	if err := s.Store.Save(ctx, a); err != nil {
		return nil, err
	}
	observability.AssignmentsCreated.Inc()
	return a, nil
}

func (s *Service) driverPhone(ctx context.Context, driverID string) string {
	if s.Actors == nil {
		return ""
	}
	a, err := s.Actors.Get(ctx, driverID)
	if err != nil {
		return ""
	}
	return a.Phone
}
