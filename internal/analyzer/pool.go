package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/headroom/internal/gain"
	"github.com/linuxmatters/headroom/internal/scanner"
)

// Result is the outcome of measuring one file
type Result struct {
	Index       int
	File        scanner.File
	Measurement gain.Measurement
	Err         error
}

// MeasureAll measures files on at most workers goroutines. Results keep scan
// order. Once ctx is cancelled no further files are dispatched and the
// remaining results carry ctx.Err(); files already started run to completion.
// onStart and onDone may be nil; they are called from worker goroutines.
func (a *Analyzer) MeasureAll(ctx context.Context, files []scanner.File, workers int, onStart func(i int), onDone func(Result)) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(files))
	for i, f := range files {
		results[i] = Result{Index: i, File: f}
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range files {
		if ctx.Err() != nil {
			for j := i; j < len(files); j++ {
				results[j].Err = ctx.Err()
			}
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			if onStart != nil {
				onStart(i)
			}
			m, err := a.Measure(context.WithoutCancel(ctx), files[i])
			results[i].Measurement = m
			results[i].Err = err
			if onDone != nil {
				onDone(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Succeeded returns the measurements of results without errors, in order
func Succeeded(results []Result) []gain.Measurement {
	var out []gain.Measurement
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Measurement)
		}
	}
	return out
}

// Failed returns results that carry an error
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
