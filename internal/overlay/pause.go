package overlay

import (
	"context"
	"time"

	"github.com/v0xg/demoreel/internal/clock"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often the pause flag is read
const DefaultPollInterval = 500 * time.Millisecond

// PauseGate holds playback while the page's pause flag is set. There is no
// timeout: a paused demo waits for the operator.
type PauseGate struct {
	eval     Evaluator
	interval time.Duration
	sleeper  clock.Sleeper
	logger   *zap.Logger
}

// NewPauseGate creates a gate polling every interval (DefaultPollInterval if <= 0).
func NewPauseGate(eval Evaluator, interval time.Duration, sleeper clock.Sleeper, logger *zap.Logger) *PauseGate {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PauseGate{eval: eval, interval: interval, sleeper: sleeper, logger: logger.Named("pause")}
}

// WaitWhilePaused returns once the flag reads false. A failed read counts as
// not paused. The only error is ctx.Err().
func (g *PauseGate) WaitWhilePaused(ctx context.Context) error {
	paused := false
	var since time.Time
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !g.paused(ctx) {
			if paused {
				g.logger.Info("Playback resumed", zap.Duration("paused_for", time.Since(since)))
			}
			return nil
		}
		if !paused {
			paused = true
			since = time.Now()
			g.logger.Info("Playback paused by operator")
		}
		if err := g.sleeper.Sleep(ctx, g.interval); err != nil {
			return err
		}
	}
}

func (g *PauseGate) paused(ctx context.Context) bool {
	v, err := g.eval.EvalBool(ctx, pausedJS)
	if err != nil {
		g.logger.Debug("Pause flag unreadable", zap.Error(err))
		return false
	}
	return v
}
