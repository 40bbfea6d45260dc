package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/headroom/internal/analyzer"
	"github.com/linuxmatters/headroom/internal/cli"
	"github.com/linuxmatters/headroom/internal/config"
	"github.com/linuxmatters/headroom/internal/gain"
	"github.com/linuxmatters/headroom/internal/logging"
	"github.com/linuxmatters/headroom/internal/processor"
	"github.com/linuxmatters/headroom/internal/scanner"
	"github.com/linuxmatters/headroom/internal/ui"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version       bool     `short:"v" help:"Show version information"`
	Config        string   `short:"c" type:"existingfile" placeholder:"file" help:"Path to YAML config file (default: <directory>/.headroom.yaml)"`
	Workers       int      `short:"j" placeholder:"n" help:"Parallel workers for analysis and apply (default: CPU count)"`
	Yes           bool     `short:"y" help:"Confirm lossless-path changes without asking"`
	Reencode      bool     `help:"Confirm lossy MP3/AAC re-encodes without asking"`
	DryRun        bool     `short:"n" help:"Analyze and report only, never modify files"`
	CSV           bool     `name:"csv" negatable:"" default:"true" help:"Write a CSV report into the directory"`
	Exclude       []string `short:"x" placeholder:"glob" help:"Skip files matching a doublestar glob (repeatable)"`
	NativeCeiling string   `placeholder:"mode" help:"Native MP3 ceiling: tiered or fixed"`
	Dir           string   `arg:"" name:"directory" optional:"" type:"existingdir" help:"Directory to analyze (prompted when omitted)"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("headroom"),
		kong.Description("Raise audio files to a safe True Peak ceiling with the least lossy method"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	// Handle version flag
	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	os.Exit(run(ctx, cliArgs))
}

// run executes one headroom session and returns the process exit code
func run(kctx *kong.Context, cliArgs *CLI) int {
	started := time.Now()

	// Open debug log file
	debugLog := logging.OpenDebugLog(logging.DebugLogName)
	defer debugLog.Close()
	log := debugLog.Logf

	dir, err := resolveDir(cliArgs.Dir)
	if err != nil {
		if errors.Is(err, ui.ErrPromptCancelled) {
			return 1
		}
		cli.PrintError(err.Error())
		kctx.PrintUsage(false)
		return 1
	}

	cfg, err := loadConfig(dir, cliArgs)
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}
	backupDir := cfg.BackupPath(dir)
	log("[MAIN] dir=%s backup=%s workers=%d native_ceiling=%s", dir, backupDir, cfg.Workers, cfg.NativeCeiling)

	cli.PrintBanner(version, dir)

	// Ctrl-C outside the TUI arrives as a signal; inside it arrives as a key
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	an := analyzer.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
	if err := an.CheckTools(runCtx); err != nil {
		log("[MAIN] tool check failed: %v", err)
		cli.PrintError(err.Error())
		return 1
	}

	files, err := scanner.Scan(dir, scanner.Options{Exclude: cfg.Exclude, SkipDir: backupDir})
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}
	log("[MAIN] scanned %d file(s)", len(files))
	if len(files) == 0 {
		cli.PrintInfo("No supported audio files found (" + strings.Join(scanner.SupportedExtensions(), ", ") + ")")
		return 0
	}
	fmt.Println()

	// Analysis
	measured := analyze(runCtx, cancel, an, files, cfg.Workers, log)
	failed := analyzer.Failed(measured)
	for _, r := range failed {
		log("[ANALYZE] %s: %v", r.File.Rel, r.Err)
		if !errors.Is(r.Err, context.Canceled) {
			cli.PrintWarning(fmt.Sprintf("%s: %v", r.File.Rel, r.Err))
		}
	}
	if runCtx.Err() != nil {
		cli.PrintError("Cancelled")
		return 1
	}

	// Decide and report
	decisions := cfg.Policy().DecideAll(analyzer.Succeeded(measured))
	buckets := gain.Aggregate(decisions)
	sections := logging.Sections(dir, buckets)

	fmt.Println()
	cli.PrintSections(os.Stdout, sections)
	printSummary(buckets.Summary(), len(failed))

	var plain strings.Builder
	logging.WritePlain(&plain, sections)
	log("[MAIN] report:\n%s", plain.String())

	if cliArgs.CSV {
		path, err := logging.WriteCSVFile(dir, started, dir, decisions)
		if err != nil {
			cli.PrintWarning(err.Error())
		} else {
			cli.PrintKeyValue("Report:", path)
		}
	}

	exit := 0
	if len(failed) > 0 {
		exit = 1
	}

	if cliArgs.DryRun {
		cli.PrintInfo("Dry run: no files modified")
		return exit
	}

	toApply, err := confirm(buckets, cliArgs)
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}
	if len(toApply) == 0 {
		cli.PrintInfo("Nothing applied")
		return exit
	}

	// Apply
	proc := processor.New(processor.Options{
		Root:      dir,
		BackupDir: backupDir,
		FFmpeg:    cfg.Tools.FFmpeg,
		MP3Gain:   cfg.Tools.MP3Gain,
		Logf:      log,
	})
	results := apply(runCtx, cancel, proc, dir, toApply, cfg.Workers)

	fmt.Println()
	summary := logging.SummarizeApply(results)
	logging.WriteApplySummary(os.Stdout, dir, summary)
	log("[MAIN] applied=%d failed=%d cancelled=%d", summary.Applied, summary.Failed, summary.Cancelled)

	if summary.Failed > 0 || summary.Cancelled > 0 {
		return 1
	}
	if exit == 0 {
		cli.PrintSuccess(fmt.Sprintf("Backups are in %s", backupDir))
	}
	return exit
}

// resolveDir returns the absolute target directory, prompting when none was given
func resolveDir(arg string) (string, error) {
	if arg == "" {
		answer, err := ui.PromptDirectory()
		if err != nil {
			return "", err
		}
		arg = answer
	}

	dir, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("invalid directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("cannot open directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return dir, nil
}

// loadConfig reads the config file and applies CLI overrides
func loadConfig(dir string, cliArgs *CLI) (config.Config, error) {
	cfg, err := config.LoadForDir(dir, cliArgs.Config)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	if cliArgs.Workers > 0 {
		cfg.Workers = cliArgs.Workers
	}
	if cliArgs.NativeCeiling != "" {
		if _, ok := gain.ParseNativeCeilingMode(cliArgs.NativeCeiling); !ok {
			return cfg, fmt.Errorf("invalid --native-ceiling %q (want tiered or fixed)", cliArgs.NativeCeiling)
		}
		cfg.NativeCeiling = cliArgs.NativeCeiling
	}
	cfg.Exclude = append(cfg.Exclude, cliArgs.Exclude...)

	return cfg.Normalized(), nil
}

// runBatch shows the progress UI while work runs in the background. work
// receives a send function for progress messages and must return once all
// dispatched files are finished.
func runBatch(cancel context.CancelFunc, title string, names []string, work func(send func(tea.Msg))) {
	p := tea.NewProgram(ui.NewModel(title, names, cancel))

	done := make(chan struct{})
	go func() {
		defer close(done)
		work(p.Send)
		p.Send(ui.AllCompleteMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cli.PrintError(fmt.Sprintf("UI error: %v", err))
	}
	<-done
}

func analyze(ctx context.Context, cancel context.CancelFunc, an *analyzer.Analyzer, files []scanner.File, workers int, log func(string, ...any)) []analyzer.Result {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Rel
	}

	var results []analyzer.Result
	runBatch(cancel, "Analyzing", names, func(send func(tea.Msg)) {
		results = an.MeasureAll(ctx, files, workers,
			func(i int) {
				send(ui.FileStartMsg{FileIndex: i})
			},
			func(r analyzer.Result) {
				summary := ""
				if r.Err == nil {
					m := r.Measurement
					summary = fmt.Sprintf("%.1f LUFS  %.2f dBTP", m.IntegratedLUFS, m.TruePeakDBTP)
					log("[ANALYZE] %s: I=%.2f TP=%.2f kbps=%d", r.File.Rel, m.IntegratedLUFS, m.TruePeakDBTP, m.BitrateKbps)
				}
				send(ui.FileCompleteMsg{FileIndex: r.Index, Summary: summary, Error: r.Err})
			},
		)
	})
	return results
}

func apply(ctx context.Context, cancel context.CancelFunc, proc *processor.Processor, root string, decisions []gain.Decision, workers int) []processor.Result {
	names := make([]string, len(decisions))
	for i, d := range decisions {
		names[i] = logging.DisplayName(root, d.Measurement.Path)
	}

	var results []processor.Result
	runBatch(cancel, "Applying", names, func(send func(tea.Msg)) {
		results = proc.ProcessAll(ctx, decisions, workers,
			func(i int) {
				send(ui.FileStartMsg{FileIndex: i})
			},
			func(r processor.Result) {
				summary := fmt.Sprintf("%+.2f dB %s", r.Decision.EffectiveGainDB(), r.Decision.Method())
				send(ui.FileCompleteMsg{FileIndex: r.Index, Summary: summary, Error: r.Err})
			},
		)
	})
	return results
}

// confirm runs the two confirmation stages and returns the decisions to apply.
// Stage 1 covers lossless-path work, stage 2 lossy re-encodes; both default to no.
func confirm(b gain.Buckets, cliArgs *CLI) ([]gain.Decision, error) {
	var out []gain.Decision

	if b.HasLosslessWork() {
		ok := cliArgs.Yes
		if !ok {
			var err error
			ok, err = ui.Confirm(fmt.Sprintf("Apply lossless gain to %d file(s)?", len(b.Lossless)), "", false)
			if err != nil {
				return nil, err
			}
		}
		if ok {
			out = append(out, b.Lossless...)
		}
	}

	if b.HasReencodeWork() {
		ok := cliArgs.Reencode
		if !ok {
			var err error
			ok, err = ui.Confirm(
				fmt.Sprintf("Re-encode %d lossy file(s)?", len(b.Reencode)),
				"Re-encoding MP3/AAC decodes and encodes again: each pass adds generational loss.",
				false,
			)
			if err != nil {
				return nil, err
			}
		}
		if ok {
			out = append(out, b.Reencode...)
		}
	}

	return out, nil
}

func printSummary(s gain.Summary, failed int) {
	cli.PrintKeyValue("Lossless:", fmt.Sprintf("%d precise, %d native MP3", s.Precise, s.Native))
	cli.PrintKeyValue("Re-encode:", fmt.Sprintf("%d MP3, %d AAC", s.ReencodeMP3, s.ReencodeOther))
	skipped := fmt.Sprintf("%d", s.Skipped)
	if s.Flagged > 0 {
		skipped += fmt.Sprintf(" (%d flagged)", s.Flagged)
	}
	cli.PrintKeyValue("Skipped:", skipped)
	if failed > 0 {
		cli.PrintKeyValue("Failed:", fmt.Sprintf("%d could not be analyzed", failed))
	}
	if s.Processable() > 0 {
		cli.PrintKeyValue("Max gain:", fmt.Sprintf("%+.2f dB", s.MaxGainDB))
	}
	fmt.Println()
}
