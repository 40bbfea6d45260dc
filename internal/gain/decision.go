package gain

import (
	"errors"
	"fmt"
	"math"
)

// Method is the processing method a decision selects
type Method int

const (
	MethodSkip Method = iota
	MethodPrecise
	MethodNative
	MethodReencode
)

func (m Method) String() string {
	switch m {
	case MethodPrecise:
		return "precise"
	case MethodNative:
		return "native"
	case MethodReencode:
		return "re-encode"
	default:
		return "none"
	}
}

// ErrMissingBitrate is reported when a lossy file has no measured bitrate
var ErrMissingBitrate = errors.New("bitrate required but not measured")

// ErrInvalidMeasurement is reported when the analyser returned a non-finite peak
var ErrInvalidMeasurement = errors.New("true peak is not a finite value")

// ErrUnsupportedFormat is reported for files outside the format table
var ErrUnsupportedFormat = errors.New("unsupported format")

// Action is the method-specific payload of a Decision. It is one of
// Skip, Precise, Native or Reencode.
type Action interface {
	Method() Method
	// GainDB is the gain the action applies; never negative
	GainDB() float64
}

// SkipReason says why a file receives no gain
type SkipReason int

const (
	SkipNoHeadroom SkipReason = iota
	SkipMissingBitrate
	SkipInvalidMeasurement
	SkipUnsupportedFormat
)

func (r SkipReason) String() string {
	switch r {
	case SkipMissingBitrate:
		return "missing bitrate"
	case SkipInvalidMeasurement:
		return "invalid measurement"
	case SkipUnsupportedFormat:
		return "unsupported format"
	default:
		return "no headroom"
	}
}

// Skip leaves the file untouched
type Skip struct {
	Reason SkipReason
}

func (Skip) Method() Method  { return MethodSkip }
func (Skip) GainDB() float64 { return 0 }

// Precise applies arbitrary-precision gain to a lossless file
type Precise struct {
	Gain float64
}

func (Precise) Method() Method    { return MethodPrecise }
func (a Precise) GainDB() float64 { return a.Gain }

// Native applies whole global_gain steps to an MP3 bitstream
type Native struct {
	Steps int
}

func (Native) Method() Method    { return MethodNative }
func (a Native) GainDB() float64 { return float64(a.Steps) * StepDB }

// Reencode decodes, scales and re-encodes a lossy file
type Reencode struct {
	Gain float64
}

func (Reencode) Method() Method    { return MethodReencode }
func (a Reencode) GainDB() float64 { return a.Gain }

// Decision is the engine output for one file
type Decision struct {
	Measurement Measurement
	CeilingDBTP float64 // ceiling the selected action targets
	HeadroomDB  float64 // CeilingDBTP - true peak; negative when the file is already hot
	Action      Action
	Err         error // set for skips caused by missing or invalid input
}

// Method is shorthand for d.Action.Method(). A nil Action is a Skip.
func (d Decision) Method() Method {
	if d.Action == nil {
		return MethodSkip
	}
	return d.Action.Method()
}

// EffectiveGainDB is the gain that will actually be applied
func (d Decision) EffectiveGainDB() float64 {
	if d.Action == nil {
		return 0
	}
	return d.Action.GainDB()
}

// floorTolerance absorbs binary rounding in headroom/step so that an exact
// multiple such as 3.0/1.5 is not floored to one step short.
const floorTolerance = 1e-9

// overshootTolerance is the most a step total may exceed the headroom
const overshootTolerance = 1e-12

// QuantizeSteps returns the largest whole number of StepDB steps that fit in
// headroomDB. Never negative, and steps*StepDB never exceeds headroomDB.
func QuantizeSteps(headroomDB float64) int {
	if headroomDB <= 0 || math.IsNaN(headroomDB) {
		return 0
	}
	steps := int(math.Floor(headroomDB/StepDB + floorTolerance))
	for steps > 0 && float64(steps)*StepDB > headroomDB+overshootTolerance {
		steps--
	}
	return steps
}

// Decide computes the gain decision for one measurement. It is pure and safe
// for concurrent use.
func (p Policy) Decide(m Measurement) Decision {
	reencodeCeiling := p.Ceiling(m.Format, m.BitrateKbps, PathReencode)
	d := Decision{
		Measurement: m,
		CeilingDBTP: reencodeCeiling,
		HeadroomDB:  reencodeCeiling - m.TruePeakDBTP,
	}

	switch {
	case m.Format == FormatUnknown:
		return d.skip(SkipUnsupportedFormat, ErrUnsupportedFormat)
	case math.IsNaN(m.TruePeakDBTP) || math.IsInf(m.TruePeakDBTP, 0):
		d.HeadroomDB = 0
		return d.skip(SkipInvalidMeasurement, fmt.Errorf("%w: %v", ErrInvalidMeasurement, m.TruePeakDBTP))
	case m.Format.RequiresBitrate() && !m.HasBitrate():
		return d.skip(SkipMissingBitrate, fmt.Errorf("%s: %w", m.Format, ErrMissingBitrate))
	}

	if m.Format.HasNativeGain() {
		nativeCeiling := p.Ceiling(m.Format, m.BitrateKbps, PathNative)
		nativeHeadroom := nativeCeiling - m.TruePeakDBTP
		if nativeHeadroom > p.MinGainDB {
			if steps := QuantizeSteps(nativeHeadroom); steps >= 1 {
				d.CeilingDBTP = nativeCeiling
				d.HeadroomDB = nativeHeadroom
				d.Action = Native{Steps: steps}
				return d
			}
		}
	}

	if d.HeadroomDB <= p.MinGainDB {
		return d.skip(SkipNoHeadroom, nil)
	}
	if m.Format.IsLossless() {
		d.Action = Precise{Gain: d.HeadroomDB}
	} else {
		d.Action = Reencode{Gain: d.HeadroomDB}
	}
	return d
}

func (d Decision) skip(reason SkipReason, err error) Decision {
	d.Action = Skip{Reason: reason}
	d.Err = err
	return d
}

// DecideAll applies Decide to every measurement, preserving order
func (p Policy) DecideAll(ms []Measurement) []Decision {
	out := make([]Decision, len(ms))
	for i, m := range ms {
		out[i] = p.Decide(m)
	}
	return out
}
