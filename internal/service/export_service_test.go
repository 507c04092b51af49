package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/export"
)

func newExportServiceForTest() *ExportService {
	plots := newPlotStoreStub(occupiedPlot("rb-l3-k1", "Juan"), models.Plot{PlotID: "lb-2-a", Section: "lb", Level: 2, Status: models.PlotStatusAvailable})
	requests := newExhumationStoreStub(pendingExhumation("exh-1"))
	return NewExportService(plots, requests, nil, nil, zap.NewNop())
}

func TestExportPlotsCSV(t *testing.T) {
	svc := newExportServiceForTest()

	file, err := svc.ExportPlots(context.Background(), adminActor, export.FormatCSV, models.PlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, file.Rows)
	assert.True(t, strings.HasPrefix(file.Filename, "plots-"))
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "plot_id,section,level"))
	assert.True(t, strings.HasPrefix(lines[1], "lb-2-a,lb,2"))
	assert.Contains(t, lines[2], "Juan")
}

func TestExportExhumationsPDF(t *testing.T) {
	svc := newExportServiceForTest()

	file, err := svc.ExportExhumations(context.Background(), adminActor, export.FormatPDF, models.ExhumationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, file.Rows)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
}

func TestExportRequiresAdmin(t *testing.T) {
	svc := newExportServiceForTest()

	_, err := svc.ExportPlots(context.Background(), userActor, export.FormatCSV, models.PlotFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.ExportPlots(context.Background(), adminActor, export.Format("xlsx"), models.PlotFilter{})
	assert.Equal(t, "format", appErrors.FromError(err).Detail("field"))
}
