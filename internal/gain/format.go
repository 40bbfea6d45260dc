// Package gain decides how much gain each audio file can take before reaching
// its True Peak ceiling, and which method should apply it.
package gain

import "strings"

// Format identifies the container/codec family of an audio file
type Format int

const (
	FormatUnknown Format = iota
	FormatFLAC
	FormatAIFF
	FormatWAV
	FormatMP3
	FormatAAC
)

var formatNames = map[Format]string{
	FormatUnknown: "Unknown",
	FormatFLAC:    "FLAC",
	FormatAIFF:    "AIFF",
	FormatWAV:     "WAV",
	FormatMP3:     "MP3",
	FormatAAC:     "AAC",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return formatNames[FormatUnknown]
}

// IsLossless reports whether gain can be applied at arbitrary precision
// without generational loss (uncompressed or lossless-compressed PCM).
func (f Format) IsLossless() bool {
	return f == FormatFLAC || f == FormatAIFF || f == FormatWAV
}

// RequiresBitrate reports whether the ceiling tier depends on the encoded bitrate
func (f Format) RequiresBitrate() bool {
	return f == FormatMP3 || f == FormatAAC
}

// HasNativeGain reports whether the format carries a lossless gain primitive
// in its bitstream (MP3 global_gain).
func (f Format) HasNativeGain() bool {
	return f == FormatMP3
}

// ParseFormat maps a case-insensitive name ("flac", "MP3", "aac") to a Format.
func ParseFormat(name string) Format {
	n := strings.ToUpper(strings.TrimSpace(name))
	for f, s := range formatNames {
		if f != FormatUnknown && s == n {
			return f
		}
	}
	return FormatUnknown
}

// Measurement is the per-file output of the loudness analyser.
// BitrateKbps is zero when the bitrate could not be determined.
type Measurement struct {
	Path           string
	Format         Format
	BitrateKbps    int
	IntegratedLUFS float64
	TruePeakDBTP   float64
}

// HasBitrate reports whether a bitrate was measured
func (m Measurement) HasBitrate() bool {
	return m.BitrateKbps > 0
}
