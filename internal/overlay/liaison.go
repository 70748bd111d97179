package overlay

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Script is the built-in overlay payload. It mounts the subtitle HUD and the
// pause button and exposes window.demoPaused and window.setDemoSubtitle.
//
//go:embed overlay.js
var Script string

const (
	presenceJS = `() => !!document.getElementById('demo-subtitle-hud') && typeof window.setDemoSubtitle === 'function'`
	subtitleJS = `(text) => window.setDemoSubtitle(text)`
	pausedJS   = `() => window.demoPaused === true`
)

// Evaluator runs JavaScript in the live page
type Evaluator interface {
	EvalBool(ctx context.Context, js string) (bool, error)
	Call(ctx context.Context, js string, args ...any) error
}

// LoadScript returns the overlay payload at path, or the built-in one when path is empty.
func LoadScript(path string) (string, error) {
	if path == "" {
		return Script, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read overlay script: %w", err)
	}
	return string(data), nil
}

// Liaison keeps the overlay alive in the page and pushes narration into it.
// None of its methods fail the caller: a broken overlay costs narration, not the run.
type Liaison struct {
	eval   Evaluator
	inject string
	logger *zap.Logger
}

// NewLiaison creates a liaison that re-injects script when the overlay goes missing.
func NewLiaison(eval Evaluator, script string, logger *zap.Logger) *Liaison {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Liaison{
		eval:   eval,
		inject: "() => {\n" + script + "\n}",
		logger: logger.Named("overlay"),
	}
}

// IsPresent reports whether the HUD and the subtitle setter exist. Any
// evaluation error counts as absent.
func (l *Liaison) IsPresent(ctx context.Context) bool {
	ok, err := l.eval.EvalBool(ctx, presenceJS)
	if err != nil {
		l.logger.Debug("Overlay presence check failed", zap.Error(err))
		return false
	}
	return ok
}

// EnsurePresent re-injects the overlay if it is missing. Safe to call before every step.
func (l *Liaison) EnsurePresent(ctx context.Context) {
	if l.IsPresent(ctx) {
		return
	}
	l.logger.Info("Overlay missing, re-injecting")
	if err := l.reinject(ctx); err != nil {
		l.logger.Warn("Overlay re-injection failed", zap.Error(err))
	}
}

// SetSubtitle shows text in the HUD. On failure it re-injects once and
// retries; a second failure is logged and dropped.
func (l *Liaison) SetSubtitle(ctx context.Context, text string) {
	err := l.eval.Call(ctx, subtitleJS, text)
	if err == nil {
		return
	}
	l.logger.Debug("Subtitle update failed, repairing overlay", zap.Error(err))

	if ierr := l.reinject(ctx); ierr != nil {
		l.logger.Debug("Overlay re-injection failed", zap.Error(ierr))
	}
	if err := l.eval.Call(ctx, subtitleJS, text); err != nil {
		l.logger.Warn("Subtitle lost", zap.String("subtitle", text), zap.Error(err))
	}
}

func (l *Liaison) reinject(ctx context.Context) error {
	return l.eval.Call(ctx, l.inject)
}
