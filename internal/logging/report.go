// This file builds the per-method console sections shown before confirmation.

package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/headroom/internal/gain"
)

// Section is one titled table of the console report
type Section struct {
	Title string
	Note  string
	Table *Table
}

// DisplayName returns path relative to root, or its base name when it lies
// outside root
func DisplayName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// Sections splits the buckets into report sections: precise lossless gain,
// MP3 native steps, MP3 re-encode, AAC re-encode and skipped files. Empty
// sections are omitted.
func Sections(root string, b gain.Buckets) []Section {
	var precise, native, mp3, aac []gain.Decision
	for _, d := range b.Lossless {
		if d.Method() == gain.MethodNative {
			native = append(native, d)
		} else {
			precise = append(precise, d)
		}
	}
	for _, d := range b.Reencode {
		if d.Measurement.Format == gain.FormatMP3 {
			mp3 = append(mp3, d)
		} else {
			aac = append(aac, d)
		}
	}

	var out []Section
	if len(precise) > 0 {
		out = append(out, Section{
			Title: "Lossless: precise gain",
			Note:  "FLAC, AIFF and WAV are rewritten in their own codec with no quality loss.",
			Table: gainTable(root, precise, false, false),
		})
	}
	if len(native) > 0 {
		out = append(out, Section{
			Title: "MP3: native gain",
			Note:  fmt.Sprintf("Lossless global_gain edit in %.1f dB steps.", gain.StepDB),
			Table: gainTable(root, native, true, true),
		})
	}
	if len(mp3) > 0 {
		out = append(out, Section{
			Title: "MP3: re-encode",
			Note:  "Too close to the ceiling for a whole step; requires a lossy re-encode.",
			Table: gainTable(root, mp3, true, false),
		})
	}
	if len(aac) > 0 {
		out = append(out, Section{
			Title: "AAC: re-encode",
			Note:  "AAC has no lossless gain primitive; requires a lossy re-encode.",
			Table: gainTable(root, aac, true, false),
		})
	}
	if len(b.Skip) > 0 {
		out = append(out, Section{
			Title: "Skipped",
			Table: skipTable(root, b.Skip),
		})
	}
	return out
}

func names(root string, ds []gain.Decision) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = DisplayName(root, d.Measurement.Path)
	}
	return out
}

func gainTable(root string, ds []gain.Decision, bitrate, steps bool) *Table {
	files := names(root, ds)
	cols := []Column{{Header: "File", Max: nameWidth(files)}}
	if bitrate {
		cols = append(cols, Column{Header: "kbps", Right: true})
	}
	cols = append(cols,
		Column{Header: "LUFS", Right: true},
		Column{Header: "Peak", Right: true},
		Column{Header: "Target", Right: true},
	)
	if steps {
		cols = append(cols, Column{Header: "Steps", Right: true})
	}
	cols = append(cols, Column{Header: "Gain dB", Right: true})

	t := NewTable(cols...)
	for i, d := range ds {
		m := d.Measurement
		row := []string{files[i]}
		if bitrate {
			row = append(row, formatBitrate(m.BitrateKbps))
		}
		row = append(row,
			formatMetricLUFS(m.IntegratedLUFS, 1),
			formatMetricDB(m.TruePeakDBTP, 2),
			formatMetricDB(d.CeilingDBTP, 1),
		)
		if steps {
			if a, ok := d.Action.(gain.Native); ok {
				row = append(row, fmt.Sprintf("%d", a.Steps))
			} else {
				row = append(row, MissingValue)
			}
		}
		row = append(row, formatMetricSigned(d.EffectiveGainDB(), 2))
		t.AddRow(row...)
	}
	return t
}

func skipTable(root string, ds []gain.Decision) *Table {
	files := names(root, ds)
	t := NewTable(
		Column{Header: "File", Max: nameWidth(files)},
		Column{Header: "Format"},
		Column{Header: "Peak", Right: true},
		Column{Header: "Headroom", Right: true},
		Column{Header: "Reason"},
	)
	for i, d := range ds {
		t.AddRow(
			files[i],
			d.Measurement.Format.String(),
			formatMetricDB(d.Measurement.TruePeakDBTP, 2),
			formatMetric(d.HeadroomDB, 2),
			skipReason(d),
		)
	}
	return t
}

// skipReason describes why a decision was skipped; flagged skips carry the
// diagnostic error text
func skipReason(d gain.Decision) string {
	reason := "no headroom"
	if s, ok := d.Action.(gain.Skip); ok {
		reason = s.Reason.String()
	}
	if d.Err != nil {
		return reason + " (" + d.Err.Error() + ")"
	}
	return reason
}

// WritePlain writes sections without styling, for logs and non-terminal output
func WritePlain(w io.Writer, sections []Section) {
	for _, s := range sections {
		writeSection(w, s.Title)
		if s.Note != "" {
			fmt.Fprintln(w, s.Note)
		}
		fmt.Fprint(w, s.Table.String())
		fmt.Fprintln(w)
	}
}

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}
