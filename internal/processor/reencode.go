package processor

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/linuxmatters/headroom/internal/analyzer"
	"github.com/linuxmatters/headroom/internal/gain"
	"github.com/linuxmatters/headroom/internal/scanner"
)

// Reencoder applies arbitrary-precision gain by running the file through
// ffmpeg's volume filter and encoding back to the source codec
type Reencoder struct {
	FFmpeg string
	Run    analyzer.Runner
}

// volumeFilter formats gain for ffmpeg. The value is truncated to two
// decimals so the applied gain never exceeds the decided gain.
func volumeFilter(gainDB float64) string {
	g := math.Floor(gainDB*100+1e-9) / 100
	return "volume=" + strconv.FormatFloat(g, 'f', 2, 64) + "dB"
}

// codecArgs selects the encoder for a measurement's format
func codecArgs(m gain.Measurement) ([]string, error) {
	switch m.Format {
	case gain.FormatFLAC:
		return []string{"-c:a", "flac"}, nil
	case gain.FormatAIFF:
		return []string{"-c:a", "pcm_s24be"}, nil
	case gain.FormatWAV:
		return []string{"-c:a", "pcm_s24le"}, nil
	case gain.FormatMP3, gain.FormatAAC:
		if !m.HasBitrate() {
			return nil, fmt.Errorf("%s: %w", m.Format, gain.ErrMissingBitrate)
		}
		codec := "libmp3lame"
		if m.Format == gain.FormatAAC {
			codec = "aac"
		}
		return []string{"-c:a", codec, "-b:a", strconv.Itoa(m.BitrateKbps) + "k"}, nil
	default:
		return nil, fmt.Errorf("%s: %w", m.Path, gain.ErrUnsupportedFormat)
	}
}

// Args builds the ffmpeg command line that writes the gained file to out
func Args(m gain.Measurement, gainDB float64, out string) ([]string, error) {
	codec, err := codecArgs(m)
	if err != nil {
		return nil, err
	}
	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "error",
		"-y",
		"-i", m.Path,
		"-af", volumeFilter(gainDB),
		"-map_metadata", "0",
		"-c:v", "copy",
	}
	args = append(args, codec...)
	return append(args, out), nil
}

// Apply encodes m.Path with gainDB applied into a temporary file in the same
// directory and renames it over the original. On failure the original is
// left untouched.
func (e *Reencoder) Apply(ctx context.Context, m gain.Measurement, gainDB float64) error {
	tmp, err := os.CreateTemp(filepath.Dir(m.Path), scanner.TempPrefix+"*"+filepath.Ext(m.Path))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	args, err := Args(m, gainDB, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if _, stderr, err := e.Run(ctx, e.FFmpeg, args...); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ffmpeg failed: %w%s", err, lastLine(stderr))
	}

	if info, err := os.Stat(tmpPath); err != nil || info.Size() == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("ffmpeg produced no output for %s", filepath.Base(m.Path))
	}

	if err := replaceFile(tmpPath, m.Path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// lastLine returns the final non-empty line of tool output as an error suffix
func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	if len(lines) == 0 || len(lines[len(lines)-1]) == 0 {
		return ""
	}
	return ": " + string(bytes.TrimSpace(lines[len(lines)-1]))
}
