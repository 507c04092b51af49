package models

import "time"

// ReservationType enumerates the supported reservation categories.
type ReservationType string

const (
	ReservationTypePreNeed   ReservationType = "PRE_NEED"
	ReservationTypeImmediate ReservationType = "IMMEDIATE"
	ReservationTypeTransfer  ReservationType = "TRANSFER"
)

// ReservationStatus captures workflow states for plot reservations.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusApproved  ReservationStatus = "APPROVED"
	ReservationStatusPaid      ReservationStatus = "PAID"
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusRejected  ReservationStatus = "REJECTED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationStatusActive, ReservationStatusRejected, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	}
	return false
}

// PlotReservation holds a plot for future use while it moves through payment and activation.
type PlotReservation struct {
	ID              string          `db:"id" json:"id"`
	PlotID          string          `db:"plot_id" json:"plot_id"`
	UserID          string          `db:"user_id" json:"user_id"`
	ReservationType ReservationType `db:"reservation_type" json:"reservation_type"`
	IsForSelf       bool            `db:"is_for_self" json:"is_for_self"`

	BeneficiaryName         string `db:"beneficiary_name" json:"beneficiary_name"`
	BeneficiaryRelationship string `db:"beneficiary_relationship" json:"beneficiary_relationship"`

	RequestorName    string `db:"requestor_name" json:"requestor_name"`
	RequestorEmail   string `db:"requestor_email" json:"requestor_email"`
	RequestorPhone   string `db:"requestor_phone" json:"requestor_phone"`
	RequestorAddress string `db:"requestor_address" json:"requestor_address"`

	ValidIDURL             string `db:"valid_id_url" json:"valid_id_url"`
	ProofOfRelationshipURL string `db:"proof_of_relationship_url" json:"proof_of_relationship_url"`
	Notes                  string `db:"notes" json:"notes"`

	Status           ReservationStatus `db:"status" json:"status"`
	AdminNotes       *string           `db:"admin_notes" json:"admin_notes,omitempty"`
	PaymentReference *string           `db:"payment_reference" json:"payment_reference,omitempty"`
	ReviewedBy       *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ActivatedAt      *time.Time        `db:"activated_at" json:"activated_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// ReservationFilter constrains listing queries.
type ReservationFilter struct {
	Status        []ReservationStatus
	PlotID        string
	UserID        string
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}
