// Package processor applies confirmed gain decisions: it backs up each file,
// then dispatches to the native MP3 gainer or the ffmpeg re-encoder.
package processor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/headroom/internal/analyzer"
	"github.com/linuxmatters/headroom/internal/gain"
)

// Stage is how far a file got through backup-then-overwrite
type Stage int

const (
	StagePending Stage = iota
	StageBackup
	StageApply
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageBackup:
		return "backup"
	case StageApply:
		return "apply"
	case StageDone:
		return "done"
	default:
		return "pending"
	}
}

// Result is the outcome of applying one decision. Stage is the last stage
// reached; when Err is set it names the stage that failed.
type Result struct {
	Index      int
	Decision   gain.Decision
	BackupPath string
	Stage      Stage
	Err        error
}

// Options configures a Processor
type Options struct {
	Root      string // scanned directory; backups mirror paths relative to it
	BackupDir string
	FFmpeg    string
	MP3Gain   string // external mp3gain binary; empty uses the in-process gainer
	Run       analyzer.Runner
	Logf      func(format string, args ...any)
}

// Processor is the apply orchestrator
type Processor struct {
	root      string
	backupDir string
	native    NativeGainer
	encoder   *Reencoder
	logf      func(format string, args ...any)
}

// New returns a Processor for opts. A nil Run uses os/exec.
func New(opts Options) *Processor {
	run := opts.Run
	if run == nil {
		run = analyzer.ExecRunner
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	var native NativeGainer = InProcessGainer{}
	if opts.MP3Gain != "" {
		native = ToolGainer{Bin: opts.MP3Gain, Run: run}
	}

	return &Processor{
		root:      opts.Root,
		backupDir: opts.BackupDir,
		native:    native,
		encoder:   &Reencoder{FFmpeg: opts.FFmpeg, Run: run},
		logf:      logf,
	}
}

// errNothingToApply is returned for Skip decisions
var errNothingToApply = errors.New("decision has no gain to apply")

// Process backs up and applies one decision. The original is only modified
// after its backup has been verified.
func (p *Processor) Process(ctx context.Context, d gain.Decision) Result {
	r := Result{Decision: d}
	path := d.Measurement.Path

	if d.Method() == gain.MethodSkip {
		r.Err = errNothingToApply
		return r
	}
	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}

	r.Stage = StageBackup
	r.BackupPath = BackupPath(p.root, p.backupDir, path)
	if err := Backup(path, r.BackupPath); err != nil {
		p.logf("[APPLY] backup failed for %s: %v", path, err)
		r.Err = fmt.Errorf("backup: %w", err)
		return r
	}
	p.logf("[APPLY] backed up %s -> %s", path, r.BackupPath)

	r.Stage = StageApply
	var err error
	switch a := d.Action.(type) {
	case gain.Native:
		err = p.native.ApplySteps(ctx, path, a.Steps)
	case gain.Precise:
		err = p.encoder.Apply(ctx, d.Measurement, a.Gain)
	case gain.Reencode:
		err = p.encoder.Apply(ctx, d.Measurement, a.Gain)
	default:
		err = errNothingToApply
	}
	if err != nil {
		p.logf("[APPLY] %s failed for %s: %v", d.Method(), path, err)
		r.Err = fmt.Errorf("%s: %w", d.Method(), err)
		return r
	}

	p.logf("[APPLY] %s +%.2f dB %s", d.Method(), d.EffectiveGainDB(), path)
	r.Stage = StageDone
	return r
}

// ProcessAll applies decisions on at most workers goroutines. Results keep
// input order. Once ctx is cancelled no further files are dispatched and the
// remaining results carry ctx.Err(); files already started run to completion.
// onStart and onDone may be nil; they are called from worker goroutines.
func (p *Processor) ProcessAll(ctx context.Context, decisions []gain.Decision, workers int, onStart func(i int), onDone func(Result)) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(decisions))
	for i, d := range decisions {
		results[i] = Result{Index: i, Decision: d}
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range decisions {
		if ctx.Err() != nil {
			for j := i; j < len(decisions); j++ {
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
			r := p.Process(context.WithoutCancel(ctx), decisions[i])
			r.Index = i
			results[i] = r
			if onDone != nil {
				onDone(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
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
