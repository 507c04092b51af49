package dto

import "github.com/noah-isme/cemetery-api/internal/models"

// SubmitExhumationRequest is the multi-step exhumation form. Field order follows the form
// steps so the first validation failure names the earliest missing field.
type SubmitExhumationRequest struct {
	PlotID      string                `json:"plot_id" validate:"required,plot_id"`
	RequestType models.ExhumationType `json:"request_type" validate:"required,oneof=IN OUT"`

	// Step 1: deceased.
	DeceasedName string `json:"deceased_name" validate:"required"`
	DateOfDeath  string `json:"date_of_death" validate:"required,datetime=2006-01-02"`
	Relationship string `json:"relationship" validate:"required"`

	// Step 2: requestor.
	RequestorName    string `json:"requestor_name" validate:"required"`
	RequestorEmail   string `json:"requestor_email" validate:"required,email"`
	RequestorPhone   string `json:"requestor_phone" validate:"required"`
	RequestorAddress string `json:"requestor_address" validate:"required"`

	// Step 3: details.
	Reason              string `json:"reason" validate:"required"`
	PreferredDate       string `json:"preferred_date" validate:"omitempty,datetime=2006-01-02"`
	NewLocation         string `json:"new_location" validate:"required_if=RequestType OUT"`
	AlternativeLocation string `json:"alternative_location"`
	DestinationPlotID   string `json:"destination_plot_id" validate:"omitempty,plot_id"`

	// Step 4: documents.
	ValidIDURL          string `json:"valid_id_url" validate:"required"`
	DeathCertificateURL string `json:"death_certificate_url" validate:"required"`
	BirthCertificateURL string `json:"birth_certificate_url" validate:"required"`
	AffidavitURL        string `json:"affidavit_url" validate:"required"`
	BurialPermitURL     string `json:"burial_permit_url"`
}

// TransitionExhumationRequest captures an admin decision.
type TransitionExhumationRequest struct {
	Status         models.ExhumationStatus `json:"status" validate:"required"`
	Notes          string                  `json:"notes"`
	ExhumationDate string                  `json:"exhumation_date" validate:"omitempty,datetime=2006-01-02"`
	ExhumationTeam string                  `json:"exhumation_team"`
}

// ExhumationQuery mirrors supported listing filters.
type ExhumationQuery struct {
	Status []models.ExhumationStatus
	PlotID string
	Page   int
	Size   int
}

// ExhumationTransitionResult returns the updated request plus soft warnings.
type ExhumationTransitionResult struct {
	Request  *models.ExhumationRequest `json:"request"`
	Transfer *TransferOutcome          `json:"transfer,omitempty"`
	Warning  string                    `json:"warning,omitempty"`
}

// TransferOutcome reports what the approval did to the plots involved.
type TransferOutcome struct {
	OriginPlotID      string `json:"origin_plot_id"`
	DestinationPlotID string `json:"destination_plot_id,omitempty"`
	Transferred       bool   `json:"transferred"`
	SkipReason        string `json:"skip_reason,omitempty"`
}
