package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/demoreel/internal/workflow"
)

type call struct {
	method   string
	arg      string
	value    string
	delta    float64
	deadline time.Duration // remaining budget when the call arrived
}

type fakeDriver struct {
	calls []call
	err   error
	panic bool
}

func (f *fakeDriver) record(ctx context.Context, c call) error {
	if dl, ok := ctx.Deadline(); ok {
		c.deadline = time.Until(dl)
	}
	f.calls = append(f.calls, c)
	if f.panic {
		panic("cdp connection lost")
	}
	return f.err
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	return f.record(ctx, call{method: "navigate", arg: url})
}
func (f *fakeDriver) Click(ctx context.Context, sel string) error {
	return f.record(ctx, call{method: "click", arg: sel})
}
func (f *fakeDriver) Fill(ctx context.Context, sel, value string) error {
	return f.record(ctx, call{method: "fill", arg: sel, value: value})
}
func (f *fakeDriver) Hover(ctx context.Context, sel string) error {
	return f.record(ctx, call{method: "hover", arg: sel})
}
func (f *fakeDriver) Scroll(ctx context.Context, dy float64) error {
	return f.record(ctx, call{method: "scroll", delta: dy})
}

type recordingSleeper struct{ slept []time.Duration }

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return ctx.Err()
}

func intPtr(v int) *int { return &v }

func TestExecute_Dispatch(t *testing.T) {
	settings := workflow.Settings{BaseURL: "http://x", DefaultWaitAfter: 100}

	tests := []struct {
		name string
		step workflow.Step
		want call
	}{
		{"goto joins base url", workflow.Step{Action: workflow.ActionGoto, URL: "/a"}, call{method: "navigate", arg: "http://x/a"}},
		{"click", workflow.Step{Action: workflow.ActionClick, Selector: "#save"}, call{method: "click", arg: "#save"}},
		{"fill", workflow.Step{Action: workflow.ActionFill, Selector: "#q", Value: "acme"}, call{method: "fill", arg: "#q", value: "acme"}},
		{"hover", workflow.Step{Action: workflow.ActionHover, Selector: ".card"}, call{method: "hover", arg: ".card"}},
		{"scroll down", workflow.Step{Action: workflow.ActionScroll}, call{method: "scroll", delta: 1500}},
		{"scroll up", workflow.Step{Action: workflow.ActionScroll, Direction: workflow.DirectionUp}, call{method: "scroll", delta: -1500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDriver{}
			e := New(d, Options{}, &recordingSleeper{})
			res := e.Execute(context.Background(), 0, tt.step, settings)
			require.True(t, res.OK(), "unexpected error: %v", res.Err)
			require.Len(t, d.calls, 1)
			got := d.calls[0]
			got.deadline = 0
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecute_Timeouts(t *testing.T) {
	d := &fakeDriver{}
	e := New(d, Options{ClickTimeout: 5 * time.Second, ElementTimeout: 10 * time.Second, NavigationTimeout: 30 * time.Second}, nil)
	ctx := context.Background()

	e.Execute(ctx, 0, workflow.Step{Action: workflow.ActionClick, Selector: "a"}, workflow.Settings{})
	e.Execute(ctx, 1, workflow.Step{Action: workflow.ActionFill, Selector: "a"}, workflow.Settings{})
	e.Execute(ctx, 2, workflow.Step{Action: workflow.ActionGoto}, workflow.Settings{})

	require.Len(t, d.calls, 3)
	assert.InDelta(t, float64(5*time.Second), float64(d.calls[0].deadline), float64(time.Second))
	assert.InDelta(t, float64(10*time.Second), float64(d.calls[1].deadline), float64(time.Second))
	assert.InDelta(t, float64(30*time.Second), float64(d.calls[2].deadline), float64(time.Second))
}

func TestExecute_Wait(t *testing.T) {
	d := &fakeDriver{}
	s := &recordingSleeper{}
	e := New(d, Options{}, s)

	res := e.Execute(context.Background(), 0, workflow.Step{Action: workflow.ActionWait, Duration: intPtr(50)}, workflow.Settings{})
	assert.True(t, res.OK())
	res = e.Execute(context.Background(), 1, workflow.Step{Action: workflow.ActionWait}, workflow.Settings{})
	assert.True(t, res.OK())

	assert.Empty(t, d.calls)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, time.Second}, s.slept)
}

func TestExecute_UnknownAction(t *testing.T) {
	d := &fakeDriver{}
	e := New(d, Options{}, &recordingSleeper{})
	res := e.Execute(context.Background(), 3, workflow.Step{Action: workflow.ActionUnknown, RawAction: "teleport"}, workflow.Settings{})
	assert.True(t, res.OK())
	assert.True(t, res.Skipped)
	assert.Equal(t, 3, res.Index)
	assert.Empty(t, d.calls)
}

func TestExecute_FailureIsCaptured(t *testing.T) {
	notFound := errors.New("element not found: #missing")
	d := &fakeDriver{err: notFound}
	e := New(d, Options{}, nil)

	res := e.Execute(context.Background(), 4, workflow.Step{Action: workflow.ActionFill, Selector: "#missing"}, workflow.Settings{})
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err, notFound)

	var se *StepError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, 5, se.Step)
	assert.Equal(t, "fill", se.Action)
	assert.Equal(t, "step 5 (fill): element not found: #missing", se.Error())
}

func TestExecute_PanicIsCaptured(t *testing.T) {
	d := &fakeDriver{panic: true}
	e := New(d, Options{}, nil)

	var res Result
	assert.NotPanics(t, func() {
		res = e.Execute(context.Background(), 0, workflow.Step{Action: workflow.ActionHover, Selector: "a"}, workflow.Settings{})
	})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "cdp connection lost")
}

func TestExecute_CustomScrollDelta(t *testing.T) {
	d := &fakeDriver{}
	e := New(d, Options{ScrollDelta: 2000}, nil)
	e.Execute(context.Background(), 0, workflow.Step{Action: workflow.ActionScroll, Direction: workflow.DirectionUp}, workflow.Settings{})
	require.Len(t, d.calls, 1)
	assert.Equal(t, -2000.0, d.calls[0].delta)
}
