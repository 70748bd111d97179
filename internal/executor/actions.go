package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/v0xg/demoreel/internal/workflow"
)

// Driver is the slice of the browser the executor needs
type Driver interface {
	Navigate(ctx context.Context, url string) error // returns after the load event
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Hover(ctx context.Context, selector string) error
	Scroll(ctx context.Context, deltaY float64) error
}

// Result is the outcome of one step. Failures are carried here instead of
// being returned, so the player can log them and move on.
type Result struct {
	Index   int // 0-based position in the script
	Action  workflow.Action
	Skipped bool // unknown action, nothing dispatched
	Err     error
	Elapsed time.Duration
}

// OK reports whether the step ran without error
func (r Result) OK() bool { return r.Err == nil }

// StepError is a step-local failure with its position in the script
type StepError struct {
	Step   int // 1-based
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
