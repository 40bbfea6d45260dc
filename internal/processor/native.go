package processor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/linuxmatters/headroom/internal/analyzer"
	"github.com/linuxmatters/headroom/internal/mp3"
)

// NativeGainer applies whole global_gain steps to an MP3 file in place
type NativeGainer interface {
	ApplySteps(ctx context.Context, path string, steps int) error
}

// InProcessGainer rewrites global_gain fields with the mp3 package
type InProcessGainer struct{}

func (InProcessGainer) ApplySteps(ctx context.Context, path string, steps int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := mp3.ApplyGain(path, steps); err != nil {
		return err
	}
	return nil
}

// ToolGainer delegates to an external mp3gain binary
type ToolGainer struct {
	Bin string
	Run analyzer.Runner
}

func (g ToolGainer) ApplySteps(ctx context.Context, path string, steps int) error {
	// -c ignores clipping warnings
	_, stderr, err := g.Run(ctx, g.Bin, "-c", "-g", strconv.Itoa(steps), path)
	if err != nil {
		return fmt.Errorf("%s failed: %w%s", g.Bin, err, lastLine(stderr))
	}
	return nil
}
