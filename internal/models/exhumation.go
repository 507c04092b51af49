package models

import "time"

// ExhumationType distinguishes removal from placement requests.
type ExhumationType string

const (
	ExhumationTypeIn  ExhumationType = "IN"
	ExhumationTypeOut ExhumationType = "OUT"
)

// ExhumationStatus captures workflow states for exhumation requests.
type ExhumationStatus string

const (
	ExhumationStatusPending   ExhumationStatus = "pending"
	ExhumationStatusApproved  ExhumationStatus = "approved"
	ExhumationStatusRejected  ExhumationStatus = "rejected"
	ExhumationStatusCompleted ExhumationStatus = "completed"
)

// Terminal reports whether no further transition is possible.
func (s ExhumationStatus) Terminal() bool {
	return s == ExhumationStatusRejected || s == ExhumationStatusCompleted
}

// ExhumationRequest stores a user's request to remove or place remains at a plot.
type ExhumationRequest struct {
	ID          string         `db:"id" json:"id"`
	PlotID      string         `db:"plot_id" json:"plot_id"`
	UserID      string         `db:"user_id" json:"user_id"`
	RequestType ExhumationType `db:"request_type" json:"request_type"`

	DeceasedName string     `db:"deceased_name" json:"deceased_name"`
	DateOfDeath  *time.Time `db:"date_of_death" json:"date_of_death,omitempty"`
	Relationship string     `db:"relationship" json:"relationship"`

	RequestorName    string `db:"requestor_name" json:"requestor_name"`
	RequestorEmail   string `db:"requestor_email" json:"requestor_email"`
	RequestorPhone   string `db:"requestor_phone" json:"requestor_phone"`
	RequestorAddress string `db:"requestor_address" json:"requestor_address"`

	Reason              string     `db:"reason" json:"reason"`
	PreferredDate       *time.Time `db:"preferred_date" json:"preferred_date,omitempty"`
	NewLocation         string     `db:"new_location" json:"new_location"`
	AlternativeLocation string     `db:"alternative_location" json:"alternative_location"`
	DestinationPlotID   *string    `db:"destination_plot_id" json:"destination_plot_id,omitempty"`

	ValidIDURL          string `db:"valid_id_url" json:"valid_id_url"`
	DeathCertificateURL string `db:"death_certificate_url" json:"death_certificate_url"`
	BirthCertificateURL string `db:"birth_certificate_url" json:"birth_certificate_url"`
	AffidavitURL        string `db:"affidavit_url" json:"affidavit_url"`
	BurialPermitURL     string `db:"burial_permit_url" json:"burial_permit_url"`

	Status         ExhumationStatus `db:"status" json:"status"`
	AdminNotes     *string          `db:"admin_notes" json:"admin_notes,omitempty"`
	ExhumationDate *time.Time       `db:"exhumation_date" json:"exhumation_date,omitempty"`
	ExhumationTeam *string          `db:"exhumation_team" json:"exhumation_team,omitempty"`
	ReviewedBy     *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CompletedAt    *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// ExhumationFilter constrains listing queries.
type ExhumationFilter struct {
	Status []ExhumationStatus
	PlotID string
	UserID string
	Limit  int
	Offset int
}
