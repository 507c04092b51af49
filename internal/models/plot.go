package models

import (
	"strings"
	"time"
)

// PlotStatus enumerates the lifecycle states of a burial plot.
type PlotStatus string

const (
	PlotStatusAvailable PlotStatus = "available"
	PlotStatusReserved  PlotStatus = "reserved"
	PlotStatusOccupied  PlotStatus = "occupied"
	PlotStatusExhumed   PlotStatus = "exhumed"
)

// Valid reports whether the status is one of the known plot states.
func (s PlotStatus) Valid() bool {
	switch s {
	case PlotStatusAvailable, PlotStatusReserved, PlotStatusOccupied, PlotStatusExhumed:
		return true
	}
	return false
}

// Plot notes written by workflow side effects.
const (
	PlotNoteRelocated = "Exhumed and relocated"
	PlotNoteAvailable = "Available for new burial"
)

// Occupant holds the deceased and family data attached to an occupied plot.
// Empty strings and nil pointers are the stored representation of "no value".
type Occupant struct {
	OccupantName    string     `db:"occupant_name" json:"occupant_name"`
	DateOfBirth     *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	DateOfDeath     *time.Time `db:"date_of_death" json:"date_of_death,omitempty"`
	DateOfInterment *time.Time `db:"date_of_interment" json:"date_of_interment,omitempty"`
	Age             *int       `db:"age" json:"age,omitempty"`
	CauseOfDeath    string     `db:"cause_of_death" json:"cause_of_death"`
	Religion        string     `db:"religion" json:"religion"`
	FamilyName      string     `db:"family_name" json:"family_name"`
	NextOfKin       string     `db:"next_of_kin" json:"next_of_kin"`
	ContactNumber   string     `db:"contact_number" json:"contact_number"`
	Address         string     `db:"address" json:"address"`
}

// IsEmpty reports whether every occupant field is unset.
func (o Occupant) IsEmpty() bool {
	return strings.TrimSpace(o.OccupantName) == "" &&
		o.DateOfBirth == nil &&
		o.DateOfDeath == nil &&
		o.DateOfInterment == nil &&
		o.Age == nil &&
		o.CauseOfDeath == "" &&
		o.Religion == "" &&
		o.FamilyName == "" &&
		o.NextOfKin == "" &&
		o.ContactNumber == "" &&
		o.Address == ""
}

// Plot is a single burial location in the cemetery registry.
type Plot struct {
	PlotID     string     `db:"plot_id" json:"plot_id"`
	Section    string     `db:"section" json:"section"`
	Level      int        `db:"level" json:"level"`
	PlotNumber string     `db:"plot_number" json:"plot_number"`
	Status     PlotStatus `db:"status" json:"status"`
	Occupant
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PlotFilter constrains plot search queries.
type PlotFilter struct {
	Section  string
	Level    int
	Status   []PlotStatus
	Search   string
	Page     int
	PageSize int
}

// PlotStats aggregates plot counts per status.
type PlotStats struct {
	Total     int                `json:"total"`
	ByStatus  map[PlotStatus]int `json:"by_status"`
	Generated time.Time          `json:"generated_at"`
}
