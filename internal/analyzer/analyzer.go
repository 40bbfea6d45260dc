// Package analyzer measures integrated loudness, true peak and bitrate with
// ffmpeg and ffprobe.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/linuxmatters/headroom/internal/gain"
	"github.com/linuxmatters/headroom/internal/scanner"
)

// ErrNoLoudnorm is returned when ffmpeg output carries no loudnorm JSON block
var ErrNoLoudnorm = errors.New("no loudnorm JSON in ffmpeg output")

// LoudnormStats is the JSON block loudnorm prints with print_format=json.
// Values are strings in ffmpeg's output, including "-inf" for silence.
type LoudnormStats struct {
	InputI            string `json:"input_i"`
	InputTP           string `json:"input_tp"`
	InputLRA          string `json:"input_lra"`
	InputThresh       string `json:"input_thresh"`
	OutputI           string `json:"output_i"`
	OutputTP          string `json:"output_tp"`
	OutputLRA         string `json:"output_lra"`
	OutputThresh      string `json:"output_thresh"`
	NormalizationType string `json:"normalization_type"`
	TargetOffset      string `json:"target_offset"`
}

// Analyzer is the measurement adapter
type Analyzer struct {
	FFmpeg  string
	FFprobe string
	Run     Runner
}

// New returns an Analyzer using the given binaries and os/exec
func New(ffmpeg, ffprobe string) *Analyzer {
	return &Analyzer{FFmpeg: ffmpeg, FFprobe: ffprobe, Run: ExecRunner}
}

// CheckTools verifies that ffmpeg and ffprobe can be executed
func (a *Analyzer) CheckTools(ctx context.Context) error {
	for _, bin := range []string{a.FFmpeg, a.FFprobe} {
		if _, _, err := a.Run(ctx, bin, "-version"); err != nil {
			return fmt.Errorf("%s not found or not runnable, please install ffmpeg: %w", bin, err)
		}
	}
	return nil
}

// Measure runs loudnorm and ffprobe for one file. A missing bitrate is not an
// error; the decision engine handles it.
func (a *Analyzer) Measure(ctx context.Context, f scanner.File) (gain.Measurement, error) {
	m := gain.Measurement{Path: f.Path, Format: f.Format}

	stats, err := a.loudnorm(ctx, f.Path)
	if err != nil {
		return m, err
	}
	if m.IntegratedLUFS, err = parseLevel(stats.InputI); err != nil {
		return m, fmt.Errorf("failed to parse input_i: %w", err)
	}
	if m.TruePeakDBTP, err = parseLevel(stats.InputTP); err != nil {
		return m, fmt.Errorf("failed to parse input_tp: %w", err)
	}

	if f.Format.RequiresBitrate() {
		m.BitrateKbps = a.bitrate(ctx, f.Path)
	}
	return m, nil
}

func (a *Analyzer) loudnorm(ctx context.Context, path string) (*LoudnormStats, error) {
	_, stderr, runErr := a.Run(ctx, a.FFmpeg,
		"-hide_banner", "-nostats", "-vn",
		"-i", path,
		"-af", "loudnorm=print_format=json",
		"-f", "null", "-",
	)
	stats, err := ParseLoudnorm(string(stderr))
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w", runErr)
		}
		return nil, err
	}
	return stats, nil
}

// ParseLoudnorm extracts the loudnorm JSON object from ffmpeg's stderr
func ParseLoudnorm(output string) (*LoudnormStats, error) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w (captured %d bytes)", ErrNoLoudnorm, len(output))
	}

	var stats LoudnormStats
	if err := json.Unmarshal([]byte(output[start:end+1]), &stats); err != nil {
		return nil, fmt.Errorf("failed to parse loudnorm JSON: %w", err)
	}
	return &stats, nil
}

// parseLevel parses a loudnorm value; "-inf" and "inf" parse to infinities
func parseLevel(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

type probeOutput struct {
	Streams []struct {
		BitRate string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		BitRate string `json:"bit_rate"`
	} `json:"format"`
}

// bitrate returns the first audio stream's bitrate in kbps, or 0 when unknown
func (a *Analyzer) bitrate(ctx context.Context, path string) int {
	stdout, _, err := a.Run(ctx, a.FFprobe,
		"-v", "quiet",
		"-select_streams", "a:0",
		"-show_entries", "stream=bit_rate:format=bit_rate",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0
	}
	return ParseBitrate(stdout)
}

// ParseBitrate reads ffprobe JSON and converts bps to kbps. The stream bitrate
// wins; the container bitrate is the fallback.
func ParseBitrate(data []byte) int {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0
	}
	candidates := []string{probe.Format.BitRate}
	if len(probe.Streams) > 0 {
		candidates = append([]string{probe.Streams[0].BitRate}, candidates...)
	}
	for _, s := range candidates {
		if bps, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil && bps > 0 {
			return int(bps / 1000)
		}
	}
	return 0
}
