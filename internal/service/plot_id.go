package service

import (
	"strconv"
	"strings"

	"github.com/noah-isme/cemetery-api/internal/models"
)

const unknownPlotPart = "Unknown"

// NormalizePlotID canonicalises a plot key. Keys compare case-insensitively.
func NormalizePlotID(plotID string) string {
	return strings.ToLower(strings.TrimSpace(plotID))
}

// ParsePlotID decodes the SECTION-LEVEL-NUMBER convention ("RB-L3-K1" is section RB,
// level 3, number K1). Missing parts fall back to "Unknown" and level 1.
func ParsePlotID(plotID string) (section string, level int, number string) {
	parts := strings.Split(strings.TrimSpace(plotID), "-")

	section = strings.TrimSpace(parts[0])
	if section == "" {
		section = unknownPlotPart
	}

	level = 1
	if len(parts) > 1 {
		raw := strings.TrimLeft(strings.TrimSpace(parts[1]), "Ll")
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 {
			level = n
		}
	}

	number = unknownPlotPart
	if len(parts) > 2 {
		if joined := strings.TrimSpace(strings.Join(parts[2:], "-")); joined != "" {
			number = joined
		}
	}
	return section, level, number
}

// defaultPlot builds the unpersisted available plot returned for unregistered ids.
func defaultPlot(plotID string) *models.Plot {
	section, level, number := ParsePlotID(plotID)
	return &models.Plot{
		PlotID:     NormalizePlotID(plotID),
		Section:    section,
		Level:      level,
		PlotNumber: number,
		Status:     models.PlotStatusAvailable,
	}
}

// destinationFromLocation returns the plot token before the first " - " of a free-text
// location such as "lb-2-a - Left Block Row 2".
func destinationFromLocation(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}
	token := location
	if idx := strings.Index(location, " - "); idx >= 0 {
		token = location[:idx]
	}
	token = NormalizePlotID(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return ""
	}
	return token
}
