package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput marks caller mistakes: malformed coordinates, missing
// identifiers. Never retried.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidCoordinate is an ErrInvalidInput specialised to out-of-range or
// non-finite coordinates.
var ErrInvalidCoordinate = fmt.Errorf("%w: invalid coordinate", ErrInvalidInput)

// Coord is a geographic point in decimal degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects non-finite or out-of-range components before they reach
// any store.
func (c Coord) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.Abs(c.Lat) > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, c.Lat)
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || math.Abs(c.Lng) > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, c.Lng)
	}
	return nil
}

// Role discriminates the three kinds of actors so a hospital id can never be
// passed where a driver id is expected.
type Role string

const (
	RoleRequester Role = "requester"
	RoleDriver    Role = "driver"
	RoleHospital  Role = "hospital"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRequester, RoleDriver, RoleHospital:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the profile owned by the identity subsystem. The dispatch core
// only reads it, to resolve contact fields.
type Actor struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

// Status of an assignment. Active until explicitly resolved; resolved is
// terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Assignment links a requester, the matched driver and the matched hospital
// for one emergency event. The three locations are snapshots taken at match
// time; only DriverLocation is refreshed afterwards, when the driver reports
// a new position.
type Assignment struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	DriverID    string `json:"driver_id"`
	HospitalID  string `json:"hospital_id"`

	RequesterLocation Coord `json:"requester_location"`
	DriverLocation    Coord `json:"driver_location"`
	HospitalLocation  Coord `json:"hospital_location"`

	RequesterPhone string `json:"requester_phone"`
	DriverPhone    string `json:"driver_phone"`

	// BillingHoldID is the payment-intent id of the fee hold, when billing is
	// enabled. Empty otherwise.
	BillingHoldID string `json:"billing_hold_id,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// LocationReport is the payload drivers and requesters post (or stream) to
// refresh their entry in the location directory. It is also the Kafka message
// shape used by the ingest pipeline.
type LocationReport struct {
	ActorID  string    `json:"actor_id"`
	Role     Role      `json:"role"`
	Coord    Coord     `json:"coord"`
	Reported time.Time `json:"reported"`
}
