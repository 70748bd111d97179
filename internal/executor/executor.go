package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/v0xg/demoreel/internal/clock"
	"github.com/v0xg/demoreel/internal/workflow"
)

// Options configures execution behavior
type Options struct {
	ClickTimeout      time.Duration // visibility wait + click
	ElementTimeout    time.Duration // fill and hover lookups
	NavigationTimeout time.Duration
	ScrollDelta       float64 // wheel units per scroll step
}

// DefaultOptions mirrors the built-in playback config
func DefaultOptions() Options {
	return Options{
		ClickTimeout:      5 * time.Second,
		ElementTimeout:    10 * time.Second,
		NavigationTimeout: 30 * time.Second,
		ScrollDelta:       1500,
	}
}

// Executor maps a single step to a single browser interaction
type Executor struct {
	driver  Driver
	opts    Options
	sleeper clock.Sleeper
}

// New creates an executor. Zero option fields fall back to DefaultOptions.
func New(driver Driver, opts Options, sleeper clock.Sleeper) *Executor {
	def := DefaultOptions()
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = def.ClickTimeout
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = def.ElementTimeout
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = def.NavigationTimeout
	}
	if opts.ScrollDelta == 0 {
		opts.ScrollDelta = def.ScrollDelta
	}
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	return &Executor{driver: driver, opts: opts, sleeper: sleeper}
}

// Execute runs step index i. It never panics and never returns an error
// directly; see Result.Err.
func (e *Executor) Execute(ctx context.Context, i int, step workflow.Step, settings workflow.Settings) (res Result) {
	start := time.Now()
	res = Result{Index: i, Action: step.Action}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("driver panic: %v", r)
		}
		if res.Err != nil {
			res.Err = &StepError{Step: i + 1, Action: actionLabel(step), Err: res.Err}
		}
		res.Elapsed = time.Since(start)
	}()

	switch step.Action {
	case workflow.ActionGoto:
		res.Err = e.bounded(ctx, e.opts.NavigationTimeout, func(ctx context.Context) error {
			return e.driver.Navigate(ctx, settings.BaseURL+step.URL)
		})
	case workflow.ActionClick:
		res.Err = e.bounded(ctx, e.opts.ClickTimeout, func(ctx context.Context) error {
			return e.driver.Click(ctx, step.Selector)
		})
	case workflow.ActionFill:
		res.Err = e.bounded(ctx, e.opts.ElementTimeout, func(ctx context.Context) error {
			return e.driver.Fill(ctx, step.Selector, step.Value)
		})
	case workflow.ActionHover:
		res.Err = e.bounded(ctx, e.opts.ElementTimeout, func(ctx context.Context) error {
			return e.driver.Hover(ctx, step.Selector)
		})
	case workflow.ActionScroll:
		delta := e.opts.ScrollDelta
		if step.Direction == workflow.DirectionUp {
			delta = -delta
		}
		res.Err = e.driver.Scroll(ctx, delta)
	case workflow.ActionWait:
		res.Err = e.sleeper.Sleep(ctx, clock.Millis(step.WaitDuration()))
	case workflow.ActionUnknown:
		res.Skipped = true
	}

	return res
}

func (e *Executor) bounded(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func actionLabel(step workflow.Step) string {
	if step.Action == workflow.ActionUnknown && step.RawAction != "" {
		return step.RawAction
	}
	return step.Action.String()
}
