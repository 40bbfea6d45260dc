package gain

// StepDB is the MP3 global_gain quantisation step. One global_gain increment
// scales amplitude by 2^(1/4), which the format defines as a 1.5 dB step.
const StepDB = 1.5

// Path selects which apply path a ceiling is requested for
type Path int

const (
	// PathReencode is arbitrary-precision gain: ffmpeg volume into the same or a lossy codec
	PathReencode Path = iota
	// PathNative is quantised lossless gain written into the MP3 bitstream
	PathNative
)

// NativeCeilingMode selects how the native MP3 ceiling is derived
type NativeCeilingMode int

const (
	// NativeTiered offsets each bitrate tier's re-encode ceiling (-0.5 -> -2.0, -1.0 -> -2.5)
	NativeTiered NativeCeilingMode = iota
	// NativeFixed uses the high-tier native ceiling for every bitrate
	NativeFixed
)

// ParseNativeCeilingMode maps "tiered" / "fixed" to a mode; ok is false for anything else.
func ParseNativeCeilingMode(s string) (NativeCeilingMode, bool) {
	switch s {
	case "tiered":
		return NativeTiered, true
	case "fixed":
		return NativeFixed, true
	}
	return NativeTiered, false
}

func (m NativeCeilingMode) String() string {
	if m == NativeFixed {
		return "fixed"
	}
	return "tiered"
}

// Policy holds the ceiling table and the decision thresholds.
// All ceilings are in dBTP, all gains in dB.
type Policy struct {
	LosslessCeiling   float64 // FLAC/AIFF/WAV
	HighCeiling       float64 // lossy at or above ThresholdKbps
	LowCeiling        float64 // lossy below ThresholdKbps, and every table miss
	ThresholdKbps     int
	MinGainDB         float64 // headroom at or below this is skipped
	NativeMode        NativeCeilingMode
	FloorSafetyMargin float64 // native offset = StepDB * FloorSafetyMargin
}

// DefaultPolicy returns the AES TD1008 style two-tier policy
func DefaultPolicy() Policy {
	return Policy{
		LosslessCeiling:   -0.5,
		HighCeiling:       -0.5,
		LowCeiling:        -1.0,
		ThresholdKbps:     256,
		MinGainDB:         0.05,
		NativeMode:        NativeTiered,
		FloorSafetyMargin: 1.0,
	}
}

type tier int

const (
	tierLossless tier = iota
	tierHigh
	tierLow
)

// ceilings is the lookup table; every ceiling the policy can return comes from here.
func (p Policy) ceilings() map[tier]float64 {
	return map[tier]float64{
		tierLossless: p.LosslessCeiling,
		tierHigh:     p.HighCeiling,
		tierLow:      p.LowCeiling,
	}
}

// tierFor classifies a format/bitrate pair. Anything outside the table,
// including a lossy file with no bitrate, lands on the conservative tier.
func (p Policy) tierFor(f Format, kbps int) tier {
	switch {
	case f.IsLossless():
		return tierLossless
	case f.RequiresBitrate() && kbps > 0 && kbps >= p.ThresholdKbps:
		return tierHigh
	default:
		return tierLow
	}
}

// NativeOffsetDB is how far the native ceiling sits below the re-encode ceiling
func (p Policy) NativeOffsetDB() float64 {
	return StepDB * p.FloorSafetyMargin
}

// Ceiling returns the target True Peak ceiling for a file. The path hint only
// matters for formats with a native gain primitive.
func (p Policy) Ceiling(f Format, kbps int, path Path) float64 {
	table := p.ceilings()
	t := p.tierFor(f, kbps)
	ceiling := table[t]

	if path != PathNative || !f.HasNativeGain() {
		return ceiling
	}
	if p.NativeMode == NativeFixed {
		return table[tierHigh] - p.NativeOffsetDB()
	}
	return ceiling - p.NativeOffsetDB()
}
