package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodlink/pkg/geo"
)

// RequestID uniquely identifies a blood request.
type RequestID uuid.UUID

func (id RequestID) String() string {
	return uuid.UUID(id).String()
}

func (id RequestID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *RequestID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err //nolint: wrapcheck
	}
	*id = RequestID(u)

	return nil
}

// RequesterID identifies the user who submitted a request.
type RequesterID uuid.UUID

func (id RequesterID) String() string {
	return uuid.UUID(id).String()
}

func (id RequesterID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *RequesterID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err //nolint: wrapcheck
	}
	*id = RequesterID(u)

	return nil
}

// Urgency classifies how quickly a request must be fulfilled. Critical
// requests progressively widen the search radius until donors are found.
type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyUrgent   Urgency = "URGENT"
	UrgencyRoutine  Urgency = "ROUTINE"
)

// Valid reports whether the urgency is one of the known levels.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyCritical, UrgencyUrgent, UrgencyRoutine:
		return true
	}

	return false
}

const (
	// MinUnits and MaxUnits bound the number of blood units a single request
	// may ask for.
	MinUnits = 1
	MaxUnits = 10
)

// BloodRequest is an urgent request for blood units submitted by a requester.
// It is immutable once a pipeline run starts processing it.
type BloodRequest struct {
	// ID is the unique identifier of the request.
	ID RequestID `json:"id"`
	// RequesterID is the identifier of the user who submitted the request.
	RequesterID RequesterID `json:"requesterId"`

	// BloodType is the patient's blood type; compatible donor types are
	// derived from it, it is never matched literally.
	BloodType BloodType `json:"bloodType"`
	// Location is the hospital position donors are searched around.
	Location geo.Point `json:"location"`
	// Units is the number of blood units required, in [MinUnits, MaxUnits].
	Units int `json:"units"`
	// Urgency drives the search radius strategy.
	Urgency Urgency `json:"urgency"`

	// CreatedAt is the time when the request was submitted.
	CreatedAt time.Time `json:"createdAt"`
}

// Validate reports why the request cannot be processed, or nil when it is
// well formed.
func (r BloodRequest) Validate() error {
	if !r.BloodType.Valid() {
		return fmt.Errorf("unknown blood type %q", string(r.BloodType))
	}
	if !r.Location.Valid() {
		return fmt.Errorf("coordinates out of range (%f, %f)", r.Location.Lat, r.Location.Lng)
	}
	if r.Units < MinUnits || r.Units > MaxUnits {
		return fmt.Errorf("units must be between %d and %d, got %d", MinUnits, MaxUnits, r.Units)
	}
	if !r.Urgency.Valid() {
		return fmt.Errorf("unknown urgency %q", string(r.Urgency))
	}

	return nil
}
