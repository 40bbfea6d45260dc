// Package logging renders headroom's console tables, CSV report, apply
// summary and debug log.
//
// This file contains the aligned table used by every console section.

package logging

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column describes one table column
type Column struct {
	Header string
	Right  bool // right-align values (numbers)
	Max    int  // truncate longer values with an ellipsis; 0 = no limit
}

// Table formats aligned columns. Widths are measured in terminal cells so
// non-ASCII filenames line up.
type Table struct {
	Columns []Column
	Rows    [][]string
}

// NewTable creates a table with the given columns
func NewTable(columns ...Column) *Table {
	return &Table{Columns: columns}
}

// AddRow appends a row of pre-formatted values. Missing trailing values
// render as MissingValue.
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// String renders the table with a header row and a dashed rule
func (t *Table) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	cells := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		cells[r] = make([]string, len(t.Columns))
		for c, col := range t.Columns {
			val := MissingValue
			if c < len(row) && row[c] != "" {
				val = row[c]
			}
			if col.Max > 0 {
				val = truncate(val, col.Max)
			}
			cells[r][c] = val
		}
	}

	widths := make([]int, len(t.Columns))
	for c, col := range t.Columns {
		widths[c] = lipgloss.Width(col.Header)
		for r := range cells {
			widths[c] = max(widths[c], lipgloss.Width(cells[r][c]))
		}
	}

	var sb strings.Builder
	writeRow := func(values []string) {
		for c, val := range values {
			if c > 0 {
				sb.WriteString("  ")
			}
			pad := strings.Repeat(" ", widths[c]-lipgloss.Width(val))
			if t.Columns[c].Right {
				sb.WriteString(pad + val)
			} else if c < len(values)-1 {
				sb.WriteString(val + pad)
			} else {
				sb.WriteString(val)
			}
		}
		sb.WriteString("\n")
	}

	headers := make([]string, len(t.Columns))
	rules := make([]string, len(t.Columns))
	for c, col := range t.Columns {
		headers[c] = col.Header
		rules[c] = strings.Repeat("-", widths[c])
	}
	writeRow(headers)
	writeRow(rules)
	for _, row := range cells {
		writeRow(row)
	}
	return sb.String()
}

// truncate shortens s to at most width cells, ending with "…"
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	if width < 1 {
		return ""
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// Filename column bounds
const (
	minNameWidth = 8
	maxNameWidth = 40
)

// nameWidth picks a filename column limit that fits the longest name,
// clamped to minNameWidth..maxNameWidth
func nameWidth(names []string) int {
	w := minNameWidth
	for _, n := range names {
		w = max(w, lipgloss.Width(n))
	}
	return min(w, maxNameWidth)
}

// =============================================================================
// Metric Formatting Helpers
// =============================================================================

// MissingValue is the placeholder for unavailable measurements
const MissingValue = "-"

// DigitalSilenceThreshold is the dBTP level below which a peak is treated as
// digital silence. FFmpeg reports -inf for true digital zero.
const DigitalSilenceThreshold = -120.0

// LUFSMeasurementFloor is the lowest reliable integrated loudness from loudnorm
const LUFSMeasurementFloor = -70.0

// formatMetric formats a numeric value with fixed decimals
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricDB formats a dB value, showing "< -120" for digital silence
func formatMetricDB(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 1) {
		return MissingValue
	}
	if math.IsInf(value, -1) || value <= DigitalSilenceThreshold {
		return "< -120"
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricLUFS formats integrated loudness, showing "< -70" below the
// measurement floor
func formatMetricLUFS(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 1) {
		return MissingValue
	}
	if value < LUFSMeasurementFloor {
		return "< -70"
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricSigned formats a value with an explicit sign, e.g. "+2.70"
func formatMetricSigned(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%+.*f", decimals, value)
}

// formatBitrate formats kbps, or MissingValue when unknown
func formatBitrate(kbps int) string {
	if kbps <= 0 {
		return MissingValue
	}
	return fmt.Sprintf("%d", kbps)
}
