// Package roster answers "who is being routed to this hospital right now".
package roster

import (
	"context"
	"fmt"

	"github.com/example/sos-dispatch/internal/actors"
	"github.com/example/sos-dispatch/internal/models"
	"github.com/example/sos-dispatch/internal/storage"
)

type Service struct {
	Store  storage.AssignmentStore
	Actors actors.Directory
}

// Entry is one inbound case: the requester's contact fields resolved from the
// actor directory plus the two location snapshots.
type Entry struct {
	Name              string       `json:"name"`
	Phone             string       `json:"phone"`
	Address           string       `json:"address"`
	RequesterLocation models.Coord `json:"requester_location"`
	HospitalLocation  models.Coord `json:"hospital_location"`
}

// ListActiveForHospital returns the active assignments routed to hospitalID
// in a stable order (newest first). No matches is an empty slice, not an
// error. A requester whose profile has gone missing keeps the snapshot phone.
func (s *Service) ListActiveForHospital(ctx context.Context, hospitalID string) ([]Entry, error) {
	if hospitalID == "" {
		return nil, fmt.Errorf("%w: hospital id required", models.ErrInvalidInput)
	}
	records, err := s.Store.ActiveByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(records))
	for _, a := range records {
		e := Entry{
			Phone:             a.RequesterPhone,
			RequesterLocation: a.RequesterLocation,
			HospitalLocation:  a.HospitalLocation,
		}
		if req, err := s.Actors.Get(ctx, a.RequesterID); err == nil {
			e.Name = req.Name
			e.Address = req.Address
			if req.Phone != "" {
				e.Phone = req.Phone
			}
		}
		out = append(out, e)
	}
	return out, nil
}
