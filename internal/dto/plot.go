package dto

import "github.com/noah-isme/cemetery-api/internal/models"

// OccupantInput carries occupant fields as submitted by the admin edit form.
// Dates use the YYYY-MM-DD layout.
type OccupantInput struct {
	OccupantName    string `json:"occupant_name"`
	DateOfBirth     string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	DateOfDeath     string `json:"date_of_death" validate:"omitempty,datetime=2006-01-02"`
	DateOfInterment string `json:"date_of_interment" validate:"omitempty,datetime=2006-01-02"`
	CauseOfDeath    string `json:"cause_of_death"`
	Religion        string `json:"religion"`
	FamilyName      string `json:"family_name"`
	NextOfKin       string `json:"next_of_kin"`
	ContactNumber   string `json:"contact_number"`
	Address         string `json:"address"`
}

// CreatePlotRequest registers a plot. Status is accepted for compatibility but always re-derived.
type CreatePlotRequest struct {
	PlotID     string            `json:"plot_id" validate:"required,plot_id"`
	Section    string            `json:"section"`
	Level      int               `json:"level" validate:"omitempty,min=1"`
	PlotNumber string            `json:"plot_number"`
	Status     models.PlotStatus `json:"status"`
	OccupantInput
	Notes string `json:"notes"`
}

// UpdatePlotRequest edits occupant data of an existing plot.
type UpdatePlotRequest struct {
	Section    string            `json:"section"`
	Level      int               `json:"level" validate:"omitempty,min=1"`
	PlotNumber string            `json:"plot_number"`
	Status     models.PlotStatus `json:"status"`
	OccupantInput
	Notes string `json:"notes"`
}

// ClearPlotRequest selects the status a cleared plot ends in.
type ClearPlotRequest struct {
	Status models.PlotStatus `json:"status" validate:"omitempty,oneof=available exhumed"`
	Note   string            `json:"note"`
}

// PlotView decorates a plot with registry presence.
type PlotView struct {
	models.Plot
	Registered bool `json:"registered"`
}
