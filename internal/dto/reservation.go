package dto

import "github.com/noah-isme/cemetery-api/internal/models"

// SubmitReservationRequest is the reservation form.
type SubmitReservationRequest struct {
	PlotID    string `json:"plot_id" validate:"required,plot_id"`
	IsForSelf bool   `json:"is_for_self"`

	BeneficiaryName         string `json:"beneficiary_name" validate:"required_if=IsForSelf false"`
	BeneficiaryRelationship string `json:"beneficiary_relationship" validate:"required_if=IsForSelf false"`

	RequestorName    string `json:"requestor_name" validate:"required"`
	RequestorEmail   string `json:"requestor_email" validate:"required,email"`
	RequestorPhone   string `json:"requestor_phone" validate:"required,phone11"`
	RequestorAddress string `json:"requestor_address" validate:"required"`

	ReservationType models.ReservationType `json:"reservation_type" validate:"required,oneof=PRE_NEED IMMEDIATE TRANSFER"`

	ValidIDURL             string `json:"valid_id_url" validate:"required"`
	ProofOfRelationshipURL string `json:"proof_of_relationship_url" validate:"required_if=IsForSelf false"`

	Notes string `json:"notes"`
}

// TransitionReservationRequest captures an admin (or requester, for cancellation) decision.
type TransitionReservationRequest struct {
	Status           models.ReservationStatus `json:"status" validate:"required"`
	Notes            string                   `json:"notes"`
	PaymentReference string                   `json:"payment_reference"`
}

// ReservationQuery mirrors supported listing filters.
type ReservationQuery struct {
	Status []models.ReservationStatus
	PlotID string
	Page   int
	Size   int
}

// ReservationTransitionResult returns the updated reservation plus soft warnings.
type ReservationTransitionResult struct {
	Reservation *models.PlotReservation `json:"reservation"`
	Plot        *models.Plot            `json:"plot,omitempty"`
	Warning     string                  `json:"warning,omitempty"`
}
