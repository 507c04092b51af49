package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/export"
)

const (
	exportPlotPageSize       = 500
	exportExhumationPageSize = 200
	// exportMaxRows caps a single export.
	exportMaxRows = 20000
)

type exportPlotSource interface {
	Query(ctx context.Context, filter models.PlotFilter) ([]models.Plot, int, error)
}

type exportExhumationSource interface {
	List(ctx context.Context, filter models.ExhumationFilter) ([]models.ExhumationRequest, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
	Rows        int
}

// ExportService renders the plot registry and the exhumation log.
type ExportService struct {
	plots       exportPlotSource
	exhumations exportExhumationSource
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export.
func NewExportService(plots exportPlotSource, exhumations exportExhumationSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{plots: plots, exhumations: exhumations, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

var plotExportHeaders = []string{
	"plot_id", "section", "level", "plot_number", "status", "occupant_name", "date_of_birth",
	"date_of_death", "date_of_interment", "age", "family_name", "next_of_kin", "contact_number", "notes",
}

// ExportPlots renders plots matching the filter.
func (s *ExportService) ExportPlots(ctx context.Context, actor *models.Principal, format export.Format, filter models.PlotFilter) (*ExportFile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	data := export.Dataset{Title: "Plot registry", Headers: plotExportHeaders}
	filter.PageSize = exportPlotPageSize
	for page := 1; len(data.Rows) < exportMaxRows; page++ {
		filter.Page = page
		plots, total, err := s.plots.Query(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plots")
		}
		for i := range plots {
			data.Rows = append(data.Rows, plotRow(&plots[i]))
		}
		if len(plots) < exportPlotPageSize || len(data.Rows) >= total {
			break
		}
	}
	return s.render(format, "plots", data)
}

var exhumationExportHeaders = []string{
	"id", "plot_id", "request_type", "status", "deceased_name", "requestor_name", "requestor_email",
	"destination_plot_id", "new_location", "exhumation_date", "created_at", "reviewed_at", "completed_at",
}

// ExportExhumations renders exhumation requests matching the filter.
func (s *ExportService) ExportExhumations(ctx context.Context, actor *models.Principal, format export.Format, filter models.ExhumationFilter) (*ExportFile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	data := export.Dataset{Title: "Exhumation requests", Headers: exhumationExportHeaders}
	filter.Limit = exportExhumationPageSize
	for offset := 0; len(data.Rows) < exportMaxRows; offset += exportExhumationPageSize {
		filter.Offset = offset
		requests, err := s.exhumations.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exhumation requests")
		}
		for i := range requests {
			data.Rows = append(data.Rows, exhumationRow(&requests[i]))
		}
		if len(requests) < exportExhumationPageSize {
			break
		}
	}
	return s.render(format, "exhumations", data)
}

func (s *ExportService) render(format export.Format, name string, data export.Dataset) (*ExportFile, error) {
	var (
		content []byte
		err     error
	)
	switch format {
	case export.FormatCSV:
		content, err = s.csv.Render(data)
	case export.FormatPDF:
		content, err = s.pdf.Render(data)
	default:
		return nil, appErrors.Validation("format", "must be one of csv pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("%s-%s%s", name, s.now().UTC().Format("20060102-150405"), format.Extension())
	s.logger.Info("export rendered", zap.String("file", filename), zap.Int("rows", len(data.Rows)))
	return &ExportFile{Filename: filename, ContentType: format.ContentType(), Content: content, Rows: len(data.Rows)}, nil
}

func plotRow(p *models.Plot) map[string]string {
	row := map[string]string{
		"plot_id":           p.PlotID,
		"section":           p.Section,
		"level":             strconv.Itoa(p.Level),
		"plot_number":       p.PlotNumber,
		"status":            string(p.Status),
		"occupant_name":     p.OccupantName,
		"date_of_birth":     formatDate(p.DateOfBirth),
		"date_of_death":     formatDate(p.DateOfDeath),
		"date_of_interment": formatDate(p.DateOfInterment),
		"family_name":       p.FamilyName,
		"next_of_kin":       p.NextOfKin,
		"contact_number":    p.ContactNumber,
		"notes":             p.Notes,
	}
	if p.Age != nil {
		row["age"] = strconv.Itoa(*p.Age)
	}
	return row
}

func exhumationRow(r *models.ExhumationRequest) map[string]string {
	row := map[string]string{
		"id":              r.ID,
		"plot_id":         r.PlotID,
		"request_type":    string(r.RequestType),
		"status":          string(r.Status),
		"deceased_name":   r.DeceasedName,
		"requestor_name":  r.RequestorName,
		"requestor_email": r.RequestorEmail,
		"new_location":    r.NewLocation,
		"exhumation_date": formatDate(r.ExhumationDate),
		"created_at":      r.CreatedAt.UTC().Format(time.RFC3339),
		"reviewed_at":     formatTimestamp(r.ReviewedAt),
		"completed_at":    formatTimestamp(r.CompletedAt),
	}
	if r.DestinationPlotID != nil {
		row["destination_plot_id"] = *r.DestinationPlotID
	}
	return row
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
