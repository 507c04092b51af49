package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cemetery-api/internal/models"
	"github.com/noah-isme/cemetery-api/internal/service"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/export"
	"github.com/noah-isme/cemetery-api/pkg/response"
)

type exportService interface {
	ExportPlots(ctx context.Context, actor *models.Principal, format export.Format, filter models.PlotFilter) (*service.ExportFile, error)
	ExportExhumations(ctx context.Context, actor *models.Principal, format export.Format, filter models.ExhumationFilter) (*service.ExportFile, error)
}

// ExportHandler streams registry reports as CSV or PDF.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Plots godoc
// @Summary Export the plot registry
// @Tags Exports
// @Produce text/csv,application/pdf
// @Param format query string false "csv or pdf"
// @Param section query string false "Section"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} binary
// @Router /exports/plots [get]
func (h *ExportHandler) Plots(c *gin.Context) {
	format, ok := exportFormat(c)
	if !ok {
		return
	}
	filter := models.PlotFilter{
		Section: strings.TrimSpace(c.Query("section")),
		Level:   parseQueryInt(c, "level", 0),
		Search:  strings.TrimSpace(c.Query("q")),
	}
	for _, status := range queryList(c, "status") {
		filter.Status = append(filter.Status, models.PlotStatus(strings.ToLower(status)))
	}
	file, err := h.service.ExportPlots(c.Request.Context(), principalFromContext(c), format, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, file)
}

// Exhumations godoc
// @Summary Export exhumation requests
// @Tags Exports
// @Produce text/csv,application/pdf
// @Param format query string false "csv or pdf"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} binary
// @Router /exports/exhumations [get]
func (h *ExportHandler) Exhumations(c *gin.Context) {
	format, ok := exportFormat(c)
	if !ok {
		return
	}
	filter := models.ExhumationFilter{PlotID: strings.TrimSpace(c.Query("plotId"))}
	for _, status := range queryList(c, "status") {
		filter.Status = append(filter.Status, models.ExhumationStatus(strings.ToLower(status)))
	}
	file, err := h.service.ExportExhumations(c.Request.Context(), principalFromContext(c), format, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, file)
}

func exportFormat(c *gin.Context) (export.Format, bool) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Validation("format", "must be one of [csv pdf]"))
		return "", false
	}
	return format, true
}

func writeExport(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Export-Rows", strconv.Itoa(file.Rows))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
