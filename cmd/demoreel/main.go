package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/v0xg/demoreel/internal/browser"
	"github.com/v0xg/demoreel/internal/config"
	"github.com/v0xg/demoreel/internal/executor"
	"github.com/v0xg/demoreel/internal/observability"
	"github.com/v0xg/demoreel/internal/overlay"
	"github.com/v0xg/demoreel/internal/playback"
	"github.com/v0xg/demoreel/internal/recorder"
	"github.com/v0xg/demoreel/internal/workflow"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgFile     string
	profile     string
	record      bool
	gifPreview  bool
	width       int
	height      int
	headless    bool
	overlayPath string
	logLevel    string
	chromeDir   string
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "demoreel [workflow]",
		Short: "Play back a scripted browser demo with on-page narration",
		Long: `demoreel opens a browser, plays a workflow script step by step and shows
each step's subtitle in an on-page overlay. The overlay's pause button holds
playback until it is pressed again. Failing steps are logged and skipped.

Example:
  demoreel demo/workflow.json
  demoreel --record --gif --profile retina demo/workflow.yaml`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is ./config.yaml)")
	rootCmd.Flags().StringVar(&profile, "profile", config.DefaultProfile, "Named window/timing profile from the config")
	rootCmd.Flags().BoolVar(&record, "record", false, "Record the run into the recordings directory")
	rootCmd.Flags().BoolVar(&gifPreview, "gif", false, "Also render a GIF preview of the recording (implies --record)")
	rootCmd.Flags().IntVar(&width, "width", 0, "Viewport width (overrides config)")
	rootCmd.Flags().IntVar(&height, "height", 0, "Viewport height (overrides config)")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "Run without a visible browser window")
	rootCmd.Flags().StringVar(&overlayPath, "overlay", "", "Replacement overlay script")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&chromeDir, "chrome-profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")

	rootCmd.AddCommand(newGIFCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the demoreel version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "demoreel %s\n", version)
		},
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	if err := play(cmd.Context(), cfg, logger); err != nil {
		logger.Error("Playback aborted", zap.Error(err))
		return err
	}
	return nil
}

// play is the whole run: load the script, open the browser, play, tear down.
func play(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	wf, err := workflow.Load(cfg.Playback.Workflow)
	if err != nil {
		return err
	}
	script, err := overlay.LoadScript(cfg.Playback.OverlayScript)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	launchOpts := browserOptions(cfg, script, runID)
	if launchOpts.Record != nil {
		logger.Info("Screen recording enabled", zap.String("dir", cfg.Record.Dir), zap.String("run_id", runID))
	}

	open := func(ctx context.Context) (playback.Session, error) {
		s, err := browser.Launch(ctx, launchOpts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	player := playback.New(open, playbackOptions(cfg, script),
		playback.WithLogger(logger),
		playback.WithRunID(runID))

	summary, err := player.Run(ctx, wf)
	if errors.Is(err, context.Canceled) {
		logger.Info("Playback interrupted", zap.Duration("after", summary.Duration))
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("Demo complete",
		zap.Int("steps", summary.Steps),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
	return nil
}

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyProfile(profile); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if len(args) == 1 {
		cfg.Playback.Workflow = args[0]
	}
	if flags.Changed("width") {
		cfg.Browser.Width = width
	}
	if flags.Changed("height") {
		cfg.Browser.Height = height
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if flags.Changed("overlay") {
		cfg.Playback.OverlayScript = overlayPath
	}
	if flags.Changed("chrome-profile") {
		cfg.Browser.ProfileDir = chromeDir
	}
	if flags.Changed("log-level") {
		cfg.Logger.Level = logLevel
	}
	if record || gifPreview {
		cfg.Record.Enabled = true
	}
	if gifPreview {
		cfg.Record.GIF = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func browserOptions(cfg *config.Config, script, runID string) browser.Options {
	opts := browser.Options{
		Headless:          cfg.Browser.Headless,
		Width:             cfg.Browser.Width,
		Height:            cfg.Browser.Height,
		DeviceScaleFactor: cfg.Browser.DeviceScaleFactor,
		Maximized:         cfg.Browser.Maximized,
		Stealth:           cfg.Browser.Stealth,
		Bin:               cfg.Browser.Bin,
		ProfileDir:        cfg.Browser.ProfileDir,
		OverlayScript:     script,
	}
	if cfg.Record.Enabled {
		opts.Record = &recorder.Options{
			Dir:           cfg.Record.Dir,
			RunID:         runID,
			JPEGQuality:   cfg.Record.JPEGQuality,
			ViewportWidth: cfg.Browser.Width,
			GIF:           cfg.Record.GIF,
			GIFMaxWidth:   cfg.Record.GIFMaxWidth,
		}
	}
	return opts
}

func playbackOptions(cfg *config.Config, script string) playback.Options {
	return playback.Options{
		Executor: executor.Options{
			ClickTimeout:      cfg.Playback.ClickTimeout,
			ElementTimeout:    cfg.Playback.ElementTimeout,
			NavigationTimeout: cfg.Playback.NavigationTimeout,
			ScrollDelta:       cfg.Playback.ScrollDelta,
		},
		PollInterval:  cfg.Playback.PollInterval,
		DrainDelay:    cfg.Playback.DrainDelay,
		OverlayScript: script,
	}
}
