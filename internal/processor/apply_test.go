package processor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/linuxmatters/headroom/internal/gain"
)

// fakeTools stands in for ffmpeg and mp3gain. ffmpeg writes "gained" to its
// output argument unless fail is set.
type fakeTools struct {
	mu    sync.Mutex
	calls [][]string
	fail  bool
}

func (f *fakeTools) run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.fail {
		return nil, []byte("Input/output error\nConversion failed!\n"), errors.New("exit status 1")
	}
	if name == "ffmpeg" {
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("gained"), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func (f *fakeTools) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c[0] == name {
			n++
		}
	}
	return n
}

// silentFrame is one MPEG-1 Layer III 128 kbps frame
func silentFrame() []byte {
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
	return frame
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func newTestProcessor(root string, tools *fakeTools, mp3gain string) *Processor {
	return New(Options{
		Root:      root,
		BackupDir: filepath.Join(root, "backup"),
		FFmpeg:    "ffmpeg",
		MP3Gain:   mp3gain,
		Run:       tools.run,
	})
}

func TestProcessPrecise(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "album", "01.flac")
	writeFile(t, path, []byte("original flac"))

	tools := &fakeTools{}
	p := newTestProcessor(root, tools, "")
	d := gain.DefaultPolicy().Decide(gain.Measurement{Path: path, Format: gain.FormatFLAC, TruePeakDBTP: -3.2})

	r := p.Process(context.Background(), d)
	if r.Err != nil {
		t.Fatalf("Process() error: %v", r.Err)
	}
	if r.Stage != StageDone {
		t.Errorf("Stage = %v, want done", r.Stage)
	}

	wantBackup := filepath.Join(root, "backup", "album", "01.flac")
	if r.BackupPath != wantBackup {
		t.Errorf("BackupPath = %q, want %q", r.BackupPath, wantBackup)
	}
	if got := readFile(t, wantBackup); string(got) != "original flac" {
		t.Errorf("backup content = %q", got)
	}
	if got := readFile(t, path); string(got) != "gained" {
		t.Errorf("original content = %q, want re-encoded output", got)
	}
	if info, _ := os.Stat(path); info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	args := strings.Join(tools.calls[0], " ")
	for _, want := range []string{"-i " + path, "volume=2.70dB", "-c:a flac", "-map_metadata 0"} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args %q missing %q", args, want)
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("album dir has %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestProcessNativeInProcess(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "song.mp3")
	original := silentFrame()
	writeFile(t, path, original)

	tools := &fakeTools{}
	p := newTestProcessor(root, tools, "")
	d := gain.DefaultPolicy().Decide(gain.Measurement{
		Path: path, Format: gain.FormatMP3, BitrateKbps: 128, TruePeakDBTP: -6,
	})
	if d.Method() != gain.MethodNative {
		t.Fatalf("test decision method = %v, want native", d.Method())
	}

	r := p.Process(context.Background(), d)
	if r.Err != nil {
		t.Fatalf("Process() error: %v", r.Err)
	}
	if len(tools.calls) != 0 {
		t.Errorf("in-process gainer ran external tools: %v", tools.calls)
	}
	if got := readFile(t, r.BackupPath); !bytes.Equal(got, original) {
		t.Error("backup differs from original")
	}
	got := readFile(t, path)
	if len(got) != len(original) {
		t.Errorf("length changed: %d -> %d", len(original), len(got))
	}
	if bytes.Equal(got, original) {
		t.Error("native gain did not modify the file")
	}
}

func TestProcessNativeTool(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "song.mp3")
	writeFile(t, path, silentFrame())

	tools := &fakeTools{}
	p := newTestProcessor(root, tools, "mp3gain")
	d := gain.DefaultPolicy().Decide(gain.Measurement{
		Path: path, Format: gain.FormatMP3, BitrateKbps: 320, TruePeakDBTP: -5.5,
	})

	r := p.Process(context.Background(), d)
	if r.Err != nil {
		t.Fatalf("Process() error: %v", r.Err)
	}
	want := []string{"mp3gain", "-c", "-g", "2", path}
	if len(tools.calls) != 1 || strings.Join(tools.calls[0], " ") != strings.Join(want, " ") {
		t.Errorf("calls = %v, want %v", tools.calls, want)
	}
}

func TestProcessApplyFailureLeavesOriginal(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "track.m4a")
	writeFile(t, path, []byte("original aac"))

	tools := &fakeTools{fail: true}
	p := newTestProcessor(root, tools, "")
	d := gain.DefaultPolicy().Decide(gain.Measurement{
		Path: path, Format: gain.FormatAAC, BitrateKbps: 256, TruePeakDBTP: -4.5,
	})

	r := p.Process(context.Background(), d)
	if r.Err == nil {
		t.Fatal("Process() succeeded with failing ffmpeg")
	}
	if r.Stage != StageApply {
		t.Errorf("Stage = %v, want apply", r.Stage)
	}
	if !strings.Contains(r.Err.Error(), "Conversion failed!") {
		t.Errorf("error %q does not carry ffmpeg stderr", r.Err)
	}
	if got := readFile(t, path); string(got) != "original aac" {
		t.Errorf("original modified: %q", got)
	}
	if got := readFile(t, r.BackupPath); string(got) != "original aac" {
		t.Errorf("backup content = %q", got)
	}
	entries, _ := os.ReadDir(root)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".headroom-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestProcessBackupFailureSkipsApply(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.wav")
	writeFile(t, path, []byte("original wav"))
	// A regular file where the backup directory should be
	writeFile(t, filepath.Join(root, "backup"), []byte("in the way"))

	tools := &fakeTools{}
	p := newTestProcessor(root, tools, "")
	d := gain.DefaultPolicy().Decide(gain.Measurement{Path: path, Format: gain.FormatWAV, TruePeakDBTP: -6})

	r := p.Process(context.Background(), d)
	if r.Err == nil {
		t.Fatal("Process() succeeded without a backup")
	}
	if r.Stage != StageBackup {
		t.Errorf("Stage = %v, want backup", r.Stage)
	}
	if tools.count("ffmpeg") != 0 {
		t.Error("ffmpeg ran although the backup failed")
	}
	if got := readFile(t, path); string(got) != "original wav" {
		t.Errorf("original modified: %q", got)
	}
}

func TestProcessSkip(t *testing.T) {
	p := newTestProcessor(t.TempDir(), &fakeTools{}, "")
	d := gain.DefaultPolicy().Decide(gain.Measurement{Path: "x.flac", Format: gain.FormatFLAC, TruePeakDBTP: 0})

	r := p.Process(context.Background(), d)
	if !errors.Is(r.Err, errNothingToApply) {
		t.Errorf("Err = %v, want errNothingToApply", r.Err)
	}
	if r.Stage != StagePending {
		t.Errorf("Stage = %v, want pending", r.Stage)
	}
}

func TestProcessAll(t *testing.T) {
	root := t.TempDir()
	policy := gain.DefaultPolicy()
	var decisions []gain.Decision
	for _, name := range []string{"c.flac", "a.flac", "b.flac", "d.flac"} {
		path := filepath.Join(root, name)
		writeFile(t, path, []byte(name))
		decisions = append(decisions, policy.Decide(gain.Measurement{Path: path, Format: gain.FormatFLAC, TruePeakDBTP: -6}))
	}

	tools := &fakeTools{}
	p := newTestProcessor(root, tools, "")

	var mu sync.Mutex
	started, done := 0, 0
	results := p.ProcessAll(context.Background(), decisions, 3,
		func(int) { mu.Lock(); started++; mu.Unlock() },
		func(Result) { mu.Lock(); done++; mu.Unlock() },
	)

	if started != 4 || done != 4 {
		t.Errorf("callbacks started=%d done=%d, want 4 and 4", started, done)
	}
	for i, r := range results {
		if r.Index != i || r.Decision.Measurement.Path != decisions[i].Measurement.Path {
			t.Errorf("results[%d] = %s (index %d), out of order", i, r.Decision.Measurement.Path, r.Index)
		}
		if r.Err != nil {
			t.Errorf("results[%d] error: %v", i, r.Err)
		}
	}
	if len(Failed(results)) != 0 {
		t.Errorf("Failed() = %d, want 0", len(Failed(results)))
	}
}

func TestProcessAllCancelled(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.flac")
	writeFile(t, path, []byte("original"))
	d := gain.DefaultPolicy().Decide(gain.Measurement{Path: path, Format: gain.FormatFLAC, TruePeakDBTP: -6})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tools := &fakeTools{}
	results := newTestProcessor(root, tools, "").ProcessAll(ctx, []gain.Decision{d, d}, 2, nil, nil)

	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("results[%d].Err = %v, want context.Canceled", i, r.Err)
		}
	}
	if len(tools.calls) != 0 {
		t.Error("tools ran after cancellation")
	}
	if got := readFile(t, path); string(got) != "original" {
		t.Error("file modified after cancellation")
	}
	if len(Failed(results)) != 2 {
		t.Errorf("Failed() = %d, want 2", len(Failed(results)))
	}
}

// blockingTools holds ffmpeg until release is closed. Like exec.CommandContext
// it gives up when its context is done.
type blockingTools struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingTools) run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-ctx.Done():
		return nil, nil, errors.New("signal: killed")
	case <-b.release:
	}
	return nil, nil, os.WriteFile(args[len(args)-1], []byte("gained"), 0o600)
}

func TestProcessAllCancelFinishesInFlight(t *testing.T) {
	root := t.TempDir()
	policy := gain.DefaultPolicy()
	var decisions []gain.Decision
	for _, name := range []string{"a.flac", "b.flac"} {
		path := filepath.Join(root, name)
		writeFile(t, path, []byte(name))
		decisions = append(decisions, policy.Decide(gain.Measurement{Path: path, Format: gain.FormatFLAC, TruePeakDBTP: -6}))
	}

	tools := &blockingTools{started: make(chan struct{}), release: make(chan struct{})}
	p := New(Options{Root: root, BackupDir: filepath.Join(root, "backup"), FFmpeg: "ffmpeg", Run: tools.run})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan []Result)
	go func() {
		done <- p.ProcessAll(ctx, decisions, 1, nil, nil)
	}()

	<-tools.started
	cancel()
	close(tools.release)
	results := <-done

	if results[0].Err != nil || results[0].Stage != StageDone {
		t.Errorf("in-flight file: stage=%v err=%v, want done without error", results[0].Stage, results[0].Err)
	}
	if got := readFile(t, decisions[0].Measurement.Path); string(got) != "gained" {
		t.Errorf("in-flight file content = %q, want gained", got)
	}
	if !errors.Is(results[1].Err, context.Canceled) || results[1].Stage != StagePending {
		t.Errorf("queued file: stage=%v err=%v, want pending with context.Canceled", results[1].Stage, results[1].Err)
	}
	if got := readFile(t, decisions[1].Measurement.Path); string(got) != "b.flac" {
		t.Errorf("queued file modified: %q", got)
	}
}
