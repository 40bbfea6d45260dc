package logging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/linuxmatters/headroom/internal/processor"
)

// ApplySummary counts the outcome of an apply run
type ApplySummary struct {
	Applied   int
	Failed    int
	Cancelled int
	GainDB    float64 // total gain applied across successful files
	Failures  []processor.Result
}

// SummarizeApply tallies apply results. Files never dispatched because the
// run was cancelled are counted separately from failures.
func SummarizeApply(results []processor.Result) ApplySummary {
	var s ApplySummary
	for _, r := range results {
		switch {
		case r.Err == nil:
			s.Applied++
			s.GainDB += r.Decision.EffectiveGainDB()
		case errors.Is(r.Err, context.Canceled) && r.Stage == processor.StagePending:
			s.Cancelled++
		default:
			s.Failed++
			s.Failures = append(s.Failures, r)
		}
	}
	return s
}

// WriteApplySummary writes the post-apply summary with one line per failure
func WriteApplySummary(w io.Writer, root string, s ApplySummary) {
	writeSection(w, "Apply summary")
	fmt.Fprintf(w, "Applied:   %d\n", s.Applied)
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed:    %d\n", s.Failed)
	}
	if s.Cancelled > 0 {
		fmt.Fprintf(w, "Cancelled: %d\n", s.Cancelled)
	}
	for _, r := range s.Failures {
		fmt.Fprintf(w, "  %s [%s]: %v\n", DisplayName(root, r.Decision.Measurement.Path), r.Stage, r.Err)
	}
}
