package gain

// Buckets partitions decisions by apply path. Each bucket keeps scan order.
type Buckets struct {
	Lossless []Decision // Precise and Native
	Reencode []Decision
	Skip     []Decision
}

// Aggregate partitions decisions into buckets. Every decision lands in
// exactly one bucket.
func Aggregate(decisions []Decision) Buckets {
	var b Buckets
	for _, d := range decisions {
		switch d.Method() {
		case MethodPrecise, MethodNative:
			b.Lossless = append(b.Lossless, d)
		case MethodReencode:
			b.Reencode = append(b.Reencode, d)
		default:
			b.Skip = append(b.Skip, d)
		}
	}
	return b
}

// Total is the number of decisions across all buckets
func (b Buckets) Total() int {
	return len(b.Lossless) + len(b.Reencode) + len(b.Skip)
}

// HasLosslessWork gates the first confirmation stage
func (b Buckets) HasLosslessWork() bool {
	return len(b.Lossless) > 0
}

// HasReencodeWork gates the second confirmation stage
func (b Buckets) HasReencodeWork() bool {
	return len(b.Reencode) > 0
}

// Summary holds derived counts and gain sums for reporting
type Summary struct {
	Precise       int
	Native        int
	ReencodeMP3   int
	ReencodeOther int
	Skipped       int
	Flagged       int // skips caused by missing or invalid input

	LosslessGainDB float64 // sum of effective gain in the lossless bucket
	ReencodeGainDB float64
	MaxGainDB      float64
}

// Processable is the number of files with work to do
func (s Summary) Processable() int {
	return s.Precise + s.Native + s.ReencodeMP3 + s.ReencodeOther
}

// Summary derives report counts from the buckets
func (b Buckets) Summary() Summary {
	var s Summary
	for _, d := range b.Lossless {
		if d.Method() == MethodNative {
			s.Native++
		} else {
			s.Precise++
		}
		s.LosslessGainDB += d.EffectiveGainDB()
		s.MaxGainDB = max(s.MaxGainDB, d.EffectiveGainDB())
	}
	for _, d := range b.Reencode {
		if d.Measurement.Format == FormatMP3 {
			s.ReencodeMP3++
		} else {
			s.ReencodeOther++
		}
		s.ReencodeGainDB += d.EffectiveGainDB()
		s.MaxGainDB = max(s.MaxGainDB, d.EffectiveGainDB())
	}
	for _, d := range b.Skip {
		s.Skipped++
		if d.Err != nil {
			s.Flagged++
		}
	}
	return s
}
