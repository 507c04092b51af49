package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cemetery-api/internal/dto"
	"github.com/noah-isme/cemetery-api/internal/middleware"
	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/response"
)

type exhumationService interface {
	ValidateStep(req dto.SubmitExhumationRequest, step int) error
	Submit(ctx context.Context, actor *models.Principal, req dto.SubmitExhumationRequest) (*models.ExhumationRequest, error)
	List(ctx context.Context, actor *models.Principal, query dto.ExhumationQuery) ([]models.ExhumationRequest, error)
	ListMine(ctx context.Context, actor *models.Principal, query dto.ExhumationQuery) ([]models.ExhumationRequest, error)
	Get(ctx context.Context, actor *models.Principal, id string) (*models.ExhumationRequest, error)
	Transition(ctx context.Context, actor *models.Principal, id string, req dto.TransitionExhumationRequest) (*dto.ExhumationTransitionResult, error)
}

// ExhumationHandler exposes the exhumation request workflow.
type ExhumationHandler struct {
	service exhumationService
}

// NewExhumationHandler builds a new handler.
func NewExhumationHandler(service exhumationService) *ExhumationHandler {
	return &ExhumationHandler{service: service}
}

// Validate godoc
// @Summary Validate one step of the exhumation form
// @Tags Exhumations
// @Accept json
// @Produce json
// @Param step query int true "Form step, zero based"
// @Param payload body dto.SubmitExhumationRequest true "Partial form"
// @Success 200 {object} response.Envelope
// @Router /exhumations/validate [post]
func (h *ExhumationHandler) Validate(c *gin.Context) {
	step, err := strconv.Atoi(c.Query("step"))
	if err != nil {
		response.Error(c, appErrors.Validation("step", "must be a number"))
		return
	}
	var req dto.SubmitExhumationRequest
	if !bindJSON(c, &req, "invalid exhumation payload") {
		return
	}
	if err := h.service.ValidateStep(req, step); err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"step": step, "valid": true}, nil)
}

// Submit godoc
// @Summary Submit an exhumation request
// @Tags Exhumations
// @Accept json
// @Produce json
// @Param payload body dto.SubmitExhumationRequest true "Exhumation request"
// @Success 201 {object} response.Envelope
// @Router /exhumations [post]
func (h *ExhumationHandler) Submit(c *gin.Context) {
	var req dto.SubmitExhumationRequest
	if !bindJSON(c, &req, "invalid exhumation payload") {
		return
	}
	request, err := h.service.Submit(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List exhumation requests
// @Tags Exhumations
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param plotId query string false "Plot ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exhumations [get]
func (h *ExhumationHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), principalFromContext(c), exhumationQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, nil)
}

// Mine godoc
// @Summary List the caller's exhumation requests
// @Tags Exhumations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exhumations/mine [get]
func (h *ExhumationHandler) Mine(c *gin.Context) {
	items, err := h.service.ListMine(c.Request.Context(), principalFromContext(c), exhumationQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get an exhumation request
// @Tags Exhumations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /exhumations/{id} [get]
func (h *ExhumationHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, request, nil)
}

// Transition godoc
// @Summary Approve, reject or complete an exhumation request
// @Tags Exhumations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.TransitionExhumationRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exhumations/{id}/transition [post]
func (h *ExhumationHandler) Transition(c *gin.Context) {
	var req dto.TransitionExhumationRequest
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

func exhumationQuery(c *gin.Context) dto.ExhumationQuery {
	query := dto.ExhumationQuery{
		PlotID: strings.TrimSpace(c.Query("plotId")),
		Page:   parseQueryInt(c, "page", 1),
		Size:   parseQueryInt(c, "limit", 50),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.ExhumationStatus(strings.ToLower(status)))
	}
	return query
}
