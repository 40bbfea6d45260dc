package analyzer

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/linuxmatters/headroom/internal/gain"
	"github.com/linuxmatters/headroom/internal/scanner"
)

const loudnormStderr = `Input #0, flac, from 'a.flac':
  Duration: 00:03:12.00, start: 0.000000, bitrate: 912 kb/s
[Parsed_loudnorm_0 @ 0x600003a1c000]
{
	"input_i" : "-14.32",
	"input_tp" : "-3.20",
	"input_lra" : "6.10",
	"input_thresh" : "-24.60",
	"output_i" : "-24.02",
	"output_tp" : "-12.80",
	"output_lra" : "5.40",
	"output_thresh" : "-34.20",
	"normalization_type" : "dynamic",
	"target_offset" : "0.02"
}
`

// fakeTools maps a path to the stderr ffmpeg prints and the stdout ffprobe prints
type fakeTools struct {
	mu      sync.Mutex
	loud    map[string]string
	probe   map[string]string
	calls   []string
	failBin string
}

func (f *fakeTools) run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()

	if name == f.failBin {
		return nil, nil, errors.New("exec: not found")
	}
	path := args[len(args)-1]
	switch name {
	case "ffmpeg":
		for i, a := range args {
			if a == "-i" {
				path = args[i+1]
			}
		}
		if out, ok := f.loud[path]; ok {
			return nil, []byte(out), nil
		}
		return nil, []byte("a.flac: Invalid data found when processing input"), errors.New("exit status 1")
	case "ffprobe":
		return []byte(f.probe[path]), nil, nil
	}
	return nil, nil, nil
}

func newFakeAnalyzer(f *fakeTools) *Analyzer {
	a := New("ffmpeg", "ffprobe")
	a.Run = f.run
	return a
}

func TestParseLoudnorm(t *testing.T) {
	stats, err := ParseLoudnorm(loudnormStderr)
	if err != nil {
		t.Fatalf("ParseLoudnorm() error: %v", err)
	}
	if stats.InputI != "-14.32" || stats.InputTP != "-3.20" || stats.NormalizationType != "dynamic" {
		t.Errorf("ParseLoudnorm() = %+v", stats)
	}

	if _, err := ParseLoudnorm("no json here"); !errors.Is(err, ErrNoLoudnorm) {
		t.Errorf("ParseLoudnorm(no json) error = %v, want ErrNoLoudnorm", err)
	}
	if _, err := ParseLoudnorm("{ not json }"); err == nil {
		t.Error("ParseLoudnorm(bad json) returned nil error")
	}
}

func TestParseBitrate(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int
	}{
		{"stream bitrate", `{"streams":[{"bit_rate":"320000"}],"format":{"bit_rate":"321000"}}`, 320},
		{"format fallback", `{"streams":[{}],"format":{"bit_rate":"256000"}}`, 256},
		{"vbr rounding down", `{"streams":[{"bit_rate":"191999"}]}`, 191},
		{"missing", `{"streams":[{}],"format":{}}`, 0},
		{"not applicable", `{"streams":[{"bit_rate":"N/A"}]}`, 0},
		{"not json", `garbage`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseBitrate([]byte(tt.json)); got != tt.want {
				t.Errorf("ParseBitrate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeasure(t *testing.T) {
	silent := strings.NewReplacer(`"-3.20"`, `"-inf"`, `"-14.32"`, `"-inf"`).Replace(loudnormStderr)
	tools := &fakeTools{
		loud: map[string]string{
			"a.flac":    loudnormStderr,
			"b.mp3":     loudnormStderr,
			"quiet.wav": silent,
		},
		probe: map[string]string{"b.mp3": `{"streams":[{"bit_rate":"320000"}]}`},
	}
	a := newFakeAnalyzer(tools)
	ctx := context.Background()

	m, err := a.Measure(ctx, scanner.File{Path: "a.flac", Format: gain.FormatFLAC})
	if err != nil {
		t.Fatalf("Measure(flac) error: %v", err)
	}
	if m.IntegratedLUFS != -14.32 || m.TruePeakDBTP != -3.2 || m.BitrateKbps != 0 {
		t.Errorf("Measure(flac) = %+v", m)
	}
	for _, c := range tools.calls {
		if strings.HasPrefix(c, "ffprobe") {
			t.Errorf("lossless file should not be probed for bitrate: %s", c)
		}
	}

	m, err = a.Measure(ctx, scanner.File{Path: "b.mp3", Format: gain.FormatMP3})
	if err != nil {
		t.Fatalf("Measure(mp3) error: %v", err)
	}
	if m.BitrateKbps != 320 || m.Format != gain.FormatMP3 || m.Path != "b.mp3" {
		t.Errorf("Measure(mp3) = %+v", m)
	}

	m, err = a.Measure(ctx, scanner.File{Path: "quiet.wav", Format: gain.FormatWAV})
	if err != nil {
		t.Fatalf("Measure(silent) error: %v", err)
	}
	if !math.IsInf(m.TruePeakDBTP, -1) {
		t.Errorf("silent true peak = %v, want -Inf", m.TruePeakDBTP)
	}

	if _, err := a.Measure(ctx, scanner.File{Path: "broken.flac", Format: gain.FormatFLAC}); err == nil {
		t.Error("Measure(broken) returned nil error")
	}
}

func TestCheckTools(t *testing.T) {
	a := newFakeAnalyzer(&fakeTools{})
	if err := a.CheckTools(context.Background()); err != nil {
		t.Errorf("CheckTools() error: %v", err)
	}

	a = newFakeAnalyzer(&fakeTools{failBin: "ffprobe"})
	err := a.CheckTools(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ffprobe") {
		t.Errorf("CheckTools() error = %v, want ffprobe failure", err)
	}
}

func TestMeasureAllKeepsOrder(t *testing.T) {
	tools := &fakeTools{loud: map[string]string{}}
	var files []scanner.File
	for _, name := range []string{"1.flac", "2.flac", "3.flac", "4.flac", "5.flac", "6.flac"} {
		files = append(files, scanner.File{Path: name, Rel: name, Format: gain.FormatFLAC})
		if name != "4.flac" {
			tools.loud[name] = loudnormStderr
		}
	}

	var mu sync.Mutex
	started, done := 0, 0
	results := newFakeAnalyzer(tools).MeasureAll(context.Background(), files, 3,
		func(int) { mu.Lock(); started++; mu.Unlock() },
		func(Result) { mu.Lock(); done++; mu.Unlock() },
	)

	if len(results) != len(files) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(files))
	}
	for i, r := range results {
		if r.Index != i || r.File.Path != files[i].Path {
			t.Errorf("results[%d] = %s (index %d)", i, r.File.Path, r.Index)
		}
	}
	if results[3].Err == nil {
		t.Error("results[3] should carry the ffmpeg failure")
	}
	if got := len(Succeeded(results)); got != 5 {
		t.Errorf("Succeeded() = %d, want 5", got)
	}
	if got := len(Failed(results)); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
	if started != 6 || done != 6 {
		t.Errorf("callbacks started=%d done=%d, want 6 and 6", started, done)
	}
}

func TestMeasureAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []scanner.File{{Path: "a.flac", Format: gain.FormatFLAC}, {Path: "b.flac", Format: gain.FormatFLAC}}
	tools := &fakeTools{loud: map[string]string{"a.flac": loudnormStderr, "b.flac": loudnormStderr}}
	results := newFakeAnalyzer(tools).MeasureAll(ctx, files, 2, nil, nil)

	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s Err = %v, want context.Canceled", r.File.Path, r.Err)
		}
	}
	if len(tools.calls) != 0 {
		t.Errorf("no tool should run after cancellation, got %v", tools.calls)
	}
}

func TestMeasureAllCancelFinishesInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	a := New("ffmpeg", "ffprobe")
	a.Run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		once.Do(func() { close(started) })
		select {
		case <-ctx.Done():
			return nil, nil, errors.New("signal: killed")
		case <-release:
		}
		return nil, []byte(loudnormStderr), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files := []scanner.File{{Path: "a.flac", Format: gain.FormatFLAC}, {Path: "b.flac", Format: gain.FormatFLAC}}
	done := make(chan []Result)
	go func() {
		done <- a.MeasureAll(ctx, files, 1, nil, nil)
	}()

	<-started
	cancel()
	close(release)
	results := <-done

	if results[0].Err != nil {
		t.Errorf("in-flight file Err = %v, want nil", results[0].Err)
	}
	if results[0].Measurement.TruePeakDBTP != -3.2 {
		t.Errorf("in-flight TruePeakDBTP = %v, want -3.2", results[0].Measurement.TruePeakDBTP)
	}
	if !errors.Is(results[1].Err, context.Canceled) {
		t.Errorf("queued file Err = %v, want context.Canceled", results[1].Err)
	}
}
