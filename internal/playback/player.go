package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/v0xg/demoreel/internal/clock"
	"github.com/v0xg/demoreel/internal/executor"
	"github.com/v0xg/demoreel/internal/overlay"
	"github.com/v0xg/demoreel/internal/workflow"
	"go.uber.org/zap"
)

// DefaultDrainDelay lets the last subtitle and recording frames settle before teardown
const DefaultDrainDelay = 2 * time.Second

// Session is the browser page the player owns for one run
type Session interface {
	executor.Driver
	overlay.Evaluator
	Close() error
}

// Opener acquires a session. The player calls it once per run and always closes what it returns.
type Opener func(ctx context.Context) (Session, error)

// Summary describes a finished run. It is informational; failed steps do not
// make a run fail.
type Summary struct {
	RunID    string
	Steps    int
	Failed   int
	Skipped  int
	Duration time.Duration
}

// Options configures the player
type Options struct {
	Executor      executor.Options
	PollInterval  time.Duration
	DrainDelay    time.Duration
	OverlayScript string // empty uses overlay.Script
}

// Player runs workflows one step at a time against a single page
type Player struct {
	open    Opener
	opts    Options
	sleeper clock.Sleeper
	logger  *zap.Logger
	runID   string
}

// Option customizes a Player
type Option func(*Player)

// WithSleeper replaces the wall-clock sleeper, mostly for tests.
func WithSleeper(s clock.Sleeper) Option {
	return func(p *Player) { p.sleeper = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(p *Player) { p.runID = id }
}

// New creates a player that opens its session through open.
func New(open Opener, opts Options, options ...Option) *Player {
	p := &Player{
		open:    open,
		opts:    opts,
		sleeper: clock.Real{},
		logger:  zap.NewNop(),
	}
	for _, o := range options {
		o(p)
	}
	if p.opts.OverlayScript == "" {
		p.opts.OverlayScript = overlay.Script
	}
	if p.opts.DrainDelay < 0 {
		p.opts.DrainDelay = 0
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	return p
}

// RunID identifies this player's run in logs and recordings
func (p *Player) RunID() string { return p.runID }

// Run plays wf from the first step to the last. Step failures are logged and
// skipped. The returned error is either the session open failure or ctx.Err()
// when the run is interrupted; the session is closed in every case.
func (p *Player) Run(ctx context.Context, wf *workflow.Workflow) (summary Summary, err error) {
	start := time.Now()
	log := p.logger.Named("playback").With(zap.String("run_id", p.runID))
	summary = Summary{RunID: p.runID, Steps: len(wf.Steps)}

	sess, err := p.open(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("Failed to close browser session", zap.Error(cerr))
		}
		summary.Duration = time.Since(start)
	}()

	liaison := overlay.NewLiaison(sess, p.opts.OverlayScript, log)
	gate := overlay.NewPauseGate(sess, p.opts.PollInterval, p.sleeper, log)
	exec := executor.New(sess, p.opts.Executor, p.sleeper)

	log.Info("Starting playback", zap.Int("steps", len(wf.Steps)), zap.String("base_url", wf.Settings.BaseURL))

	for i, step := range wf.Steps {
		if err := gate.WaitWhilePaused(ctx); err != nil {
			return summary, err
		}

		liaison.EnsurePresent(ctx)

		log.Info("Executing step",
			zap.Int("step", i+1),
			zap.Int("of", len(wf.Steps)),
			zap.Stringer("action", step.Action),
			zap.String("subtitle", step.Subtitle))

		if step.Subtitle != "" {
			liaison.SetSubtitle(ctx, step.Subtitle)
		}

		res := exec.Execute(ctx, i, step, wf.Settings)
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p.report(log, step, res, &summary)

		if err := p.sleeper.Sleep(ctx, clock.Millis(step.WaitAfterOr(wf.Settings))); err != nil {
			return summary, err
		}
	}

	log.Info("Playback finished",
		zap.Int("steps", summary.Steps),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	if err := p.sleeper.Sleep(ctx, p.opts.DrainDelay); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *Player) report(log *zap.Logger, step workflow.Step, res executor.Result, summary *Summary) {
	switch {
	case res.Err != nil:
		summary.Failed++
		log.Warn("Step failed, continuing",
			zap.Int("step", res.Index+1),
			zap.String("action", step.Describe()),
			zap.Error(res.Err))
	case res.Skipped:
		summary.Skipped++
		log.Warn("Skipping unrecognized action",
			zap.Int("step", res.Index+1),
			zap.String("action", step.RawAction))
	default:
		log.Debug("Step done", zap.Int("step", res.Index+1), zap.Duration("elapsed", res.Elapsed))
	}
}
