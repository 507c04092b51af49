package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cemetery-api/internal/dto"
	"github.com/noah-isme/cemetery-api/internal/middleware"
	"github.com/noah-isme/cemetery-api/internal/models"
	"github.com/noah-isme/cemetery-api/pkg/response"
)

type reservationService interface {
	Submit(ctx context.Context, actor *models.Principal, req dto.SubmitReservationRequest) (*models.PlotReservation, error)
	List(ctx context.Context, actor *models.Principal, query dto.ReservationQuery) ([]models.PlotReservation, error)
	ListMine(ctx context.Context, actor *models.Principal, query dto.ReservationQuery) ([]models.PlotReservation, error)
	Get(ctx context.Context, actor *models.Principal, id string) (*models.PlotReservation, error)
	Cancel(ctx context.Context, actor *models.Principal, id, notes string) (*dto.ReservationTransitionResult, error)
	Transition(ctx context.Context, actor *models.Principal, id string, req dto.TransitionReservationRequest) (*dto.ReservationTransitionResult, error)
}

type cancelReservationRequest struct {
	Notes string `json:"notes"`
}

// ReservationHandler exposes the plot reservation workflow.
type ReservationHandler struct {
	service reservationService
}

// NewReservationHandler builds a new handler.
func NewReservationHandler(service reservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

// Submit godoc
// @Summary Reserve a plot
// @Tags Reservations
// @Accept json
// @Produce json
// @Param payload body dto.SubmitReservationRequest true "Reservation request"
// @Success 201 {object} response.Envelope
// @Router /reservations [post]
func (h *ReservationHandler) Submit(c *gin.Context) {
	var req dto.SubmitReservationRequest
	if !bindJSON(c, &req, "invalid reservation payload") {
		return
	}
	reservation, err := h.service.Submit(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reservation)
}

// List godoc
// @Summary List reservations
// @Tags Reservations
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param plotId query string false "Plot ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), principalFromContext(c), reservationQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, nil)
}

// Mine godoc
// @Summary List the caller's reservations
// @Tags Reservations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reservations/mine [get]
func (h *ReservationHandler) Mine(c *gin.Context) {
	items, err := h.service.ListMine(c.Request.Context(), principalFromContext(c), reservationQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get a reservation
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Router /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	reservation, err := h.service.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, reservation, nil)
}

// Cancel godoc
// @Summary Cancel a reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	var req cancelReservationRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid cancel payload") {
		return
	}
	result, err := h.service.Cancel(c.Request.Context(), principalFromContext(c), c.Param("id"), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetWarning(c, result.Warning)
	respond(c, http.StatusOK, result, nil)
}

// Transition godoc
// @Summary Move a reservation through its lifecycle
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body dto.TransitionReservationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/transition [post]
func (h *ReservationHandler) Transition(c *gin.Context) {
	var req dto.TransitionReservationRequest
	if !bindJSON(c, &req, "invalid transition payload") {
		return
	}
	result, err := h.service.Transition(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetWarning(c, result.Warning)
	respond(c, http.StatusOK, result, nil)
}

func reservationQuery(c *gin.Context) dto.ReservationQuery {
	query := dto.ReservationQuery{
		PlotID: strings.TrimSpace(c.Query("plotId")),
		Page:   parseQueryInt(c, "page", 1),
		Size:   parseQueryInt(c, "limit", 50),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.ReservationStatus(strings.ToUpper(status)))
	}
	return query
}
