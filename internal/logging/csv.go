package logging

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/linuxmatters/headroom/internal/gain"
)

// csvHeader lists the report columns
var csvHeader = []string{
	"filename", "format", "bitrate_kbps", "lufs", "true_peak_dbtp",
	"target_ceiling_dbtp", "headroom_db", "method", "effective_gain_db", "note",
}

// ReportFileName returns the CSV report name for a run started at t
func ReportFileName(t time.Time) string {
	return "headroom_report_" + t.Format("20060102_150405") + ".csv"
}

// WriteCSV writes one row per decision in the given order
func WriteCSV(w io.Writer, root string, decisions []gain.Decision) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, d := range decisions {
		m := d.Measurement
		bitrate := ""
		if m.HasBitrate() {
			bitrate = strconv.Itoa(m.BitrateKbps)
		}
		note := ""
		if d.Method() == gain.MethodSkip {
			note = skipReason(d)
		} else if a, ok := d.Action.(gain.Native); ok {
			note = fmt.Sprintf("%d steps", a.Steps)
		}

		record := []string{
			DisplayName(root, m.Path),
			m.Format.String(),
			bitrate,
			csvFloat(m.IntegratedLUFS),
			csvFloat(m.TruePeakDBTP),
			csvFloat(d.CeilingDBTP),
			csvFloat(d.HeadroomDB),
			d.Method().String(),
			csvFloat(d.EffectiveGainDB()),
			note,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the report into dir and returns its path
func WriteCSVFile(dir string, started time.Time, root string, decisions []gain.Decision) (string, error) {
	path := filepath.Join(dir, ReportFileName(started))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV report: %w", err)
	}
	if err := WriteCSV(f, root, decisions); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close CSV report: %w", err)
	}
	return path, nil
}

func csvFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "inf"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
