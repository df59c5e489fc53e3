// Package lifecycle exposes the pull-style read paths for an actor's current
// assignment, the location-report path, and the resolve transition.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/example/sos-dispatch/internal/actors"
	"github.com/example/sos-dispatch/internal/geo"
	"github.com/example/sos-dispatch/internal/models"
	"github.com/example/sos-dispatch/internal/observability"
	"github.com/example/sos-dispatch/internal/storage"
)

// LocationPublisher forwards accepted location reports to the ingest
// pipeline. Optional; publishing is best effort and never fails the report.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, rep models.LocationReport) error
}

// Biller captures a fee hold when an assignment resolves. Optional.
type Biller interface {
	Capture(ctx context.Context, paymentIntentID string) error
}

type Service struct {
	Directory geo.Directory
	Store     storage.AssignmentStore
	Actors    actors.Directory
	Publisher LocationPublisher
	Biller    Biller
}

// DriverBrief is what a polling driver needs: where the requester is, which
// hospital to head for, and who to call.
type DriverBrief struct {
	AssignmentID      string       `json:"assignment_id"`
	RequesterName     string       `json:"requester_name,omitempty"`
	RequesterPhone    string       `json:"requester_phone,omitempty"`
	RequesterAddress  string       `json:"requester_address,omitempty"`
	RequesterLocation models.Coord `json:"requester_location"`
	HospitalLocation  models.Coord `json:"hospital_location"`
	DriverPhone       string       `json:"driver_phone,omitempty"`
}

// ActiveForRequester returns the latest active assignment for the requester
// with the driver's phone resolved from the actor directory (snapshot copy
// kept when the profile is unavailable). storage.ErrNotFound when none.
func (s *Service) ActiveForRequester(ctx context.Context, requesterID string) (*models.Assignment, error) {
	a, err := s.Store.LatestActiveByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if driver, err := s.Actors.Get(ctx, a.DriverID); err == nil && driver.Phone != "" {
		a.DriverPhone = driver.Phone
	}
	return a, nil
}

// ActiveForDriver returns the latest active assignment for the driver, or
// ok=false when there is none. Having no assignment is a normal poll result,
// not an error.
func (s *Service) ActiveForDriver(ctx context.Context, driverID string) (DriverBrief, bool, error) {
	a, err := s.Store.LatestActiveByDriver(ctx, driverID)
	if errors.Is(err, storage.ErrNotFound) {
		return DriverBrief{}, false, nil
	}
	if err != nil {
		return DriverBrief{}, false, err
	}
	brief := DriverBrief{
		AssignmentID:      a.ID,
		RequesterPhone:    a.RequesterPhone,
		RequesterLocation: a.RequesterLocation,
		HospitalLocation:  a.HospitalLocation,
	}
	if req, err := s.Actors.Get(ctx, a.RequesterID); err == nil {
		brief.RequesterName = req.Name
		brief.RequesterAddress = req.Address
		if req.Phone != "" {
			brief.RequesterPhone = req.Phone
		}
	}
	// the driver's own phone comes from the directory, not the assignment
	if self, err := s.Actors.Get(ctx, driverID); err == nil {
		brief.DriverPhone = self.Phone
	}
	return brief, true, nil
}

// ReportLocation validates the coordinate and upserts it into the location
// directory. When the reporter is a driver, every active assignment naming
// them gets its driver-location snapshot patched, so polling readers see live
// tracking despite the otherwise-static snapshot model.
func (s *Service) ReportLocation(ctx context.Context, actorID string, role models.Role, c models.Coord) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.Directory.Upsert(ctx, actorID, role, c); err != nil {
		return err
	}
	if role == models.RoleDriver {
		if err := s.Store.UpdateDriverLocation(ctx, actorID, c); err != nil {
			return err
		}
	}
	if s.Publisher != nil {
		_ = s.Publisher.PublishLocation(ctx, models.LocationReport{
			ActorID:  actorID,
			Role:     role,
			Coord:    c,
			Reported: time.Now().UTC(),
		})
	}
	observability.LocationsReported.Inc()
	return nil
}

// Resolve moves an assignment from active to resolved and captures the fee
// hold if one was placed. Resolved is terminal; resolving again fails with
// storage.ErrConflict.
func (s *Service) Resolve(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	a, err := s.Store.Resolve(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if s.Biller != nil && a.BillingHoldID != "" {
		// capture failures are reconciled out of band, the resolve stands
		_ = s.Biller.Capture(ctx, a.BillingHoldID)
	}
	observability.AssignmentsResolved.Inc()
	return a, nil
}
