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

type plotService interface {
	Search(ctx context.Context, filter models.PlotFilter) ([]models.Plot, *models.Pagination, error)
	View(ctx context.Context, plotID string) (*dto.PlotView, error)
	Stats(ctx context.Context) (*models.PlotStats, error)
	Create(ctx context.Context, actor *models.Principal, req dto.CreatePlotRequest) (*models.Plot, error)
	Update(ctx context.Context, actor *models.Principal, plotID string, req dto.UpdatePlotRequest) (*models.Plot, error)
	Clear(ctx context.Context, actor *models.Principal, plotID string, req dto.ClearPlotRequest) (*models.Plot, error)
	Delete(ctx context.Context, actor *models.Principal, plotID string) error
}

// PlotHandler exposes the plot registry.
type PlotHandler struct {
	service plotService
}

// NewPlotHandler builds a new handler.
func NewPlotHandler(service plotService) *PlotHandler {
	return &PlotHandler{service: service}
}

// Search godoc
// @Summary Search registered plots
// @Tags Plots
// @Produce json
// @Param section query string false "Section"
// @Param level query int false "Level"
// @Param status query string false "Comma separated statuses"
// @Param q query string false "Plot id or occupant name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /plots [get]
func (h *PlotHandler) Search(c *gin.Context) {
	filter := models.PlotFilter{
		Section:  strings.TrimSpace(c.Query("section")),
		Level:    parseQueryInt(c, "level", 0),
		Search:   strings.TrimSpace(c.Query("q")),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "limit", 100),
	}
	for _, status := range queryList(c, "status") {
		filter.Status = append(filter.Status, models.PlotStatus(strings.ToLower(status)))
	}
	plots, pagination, err := h.service.Search(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, plots, pagination)
}

// Get godoc
// @Summary Get a plot, defaulting unregistered ids to an available plot
// @Tags Plots
// @Produce json
// @Param id path string true "Plot ID"
// @Success 200 {object} response.Envelope
// @Router /plots/{id} [get]
func (h *PlotHandler) Get(c *gin.Context) {
	view, err := h.service.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, middleware.MetaRegistered, view.Registered)
	respond(c, http.StatusOK, view.Plot, nil)
}

// Stats godoc
// @Summary Count plots by status
// @Tags Plots
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plots/stats [get]
func (h *PlotHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, stats, nil)
}

// Create godoc
// @Summary Register a plot
// @Tags Plots
// @Accept json
// @Produce json
// @Param payload body dto.CreatePlotRequest true "Plot payload"
// @Success 201 {object} response.Envelope
// @Router /plots [post]
func (h *PlotHandler) Create(c *gin.Context) {
	var req dto.CreatePlotRequest
	if !bindJSON(c, &req, "invalid plot payload") {
		return
	}
	plot, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plot)
}

// Update godoc
// @Summary Edit a plot and its occupant
// @Tags Plots
// @Accept json
// @Produce json
// @Param id path string true "Plot ID"
// @Param payload body dto.UpdatePlotRequest true "Plot payload"
// @Success 200 {object} response.Envelope
// @Router /plots/{id} [put]
func (h *PlotHandler) Update(c *gin.Context) {
	var req dto.UpdatePlotRequest
	if !bindJSON(c, &req, "invalid plot payload") {
		return
	}
	plot, err := h.service.Update(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, plot, nil)
}

// Clear godoc
// @Summary Remove the occupant from a plot
// @Tags Plots
// @Accept json
// @Produce json
// @Param id path string true "Plot ID"
// @Param payload body dto.ClearPlotRequest false "Clear options"
// @Success 200 {object} response.Envelope
// @Router /plots/{id}/clear [post]
func (h *PlotHandler) Clear(c *gin.Context) {
	var req dto.ClearPlotRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid clear payload") {
		return
	}
	plot, err := h.service.Clear(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, plot, nil)
}

// Delete godoc
// @Summary Delete a plot record
// @Tags Plots
// @Param id path string true "Plot ID"
// @Success 204
// @Router /plots/{id} [delete]
func (h *PlotHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
