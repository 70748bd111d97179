package workflow

import (
	"fmt"
	"strings"
)

// DefaultWaitAfter is the settle time used when a script has no settings.defaultWaitAfter.
const DefaultWaitAfter = 2000

// DefaultWaitDuration is the length of a wait step without a duration.
const DefaultWaitDuration = 1000

// Workflow is a loaded demo script. It is not modified after Load.
type Workflow struct {
	Settings Settings
	Steps    []Step
}

// Settings holds script-wide defaults
type Settings struct {
	BaseURL          string
	DefaultWaitAfter int // ms
}

// Step is one declarative browser action plus its narration and timing
type Step struct {
	Action    Action
	RawAction string // tag as written in the script, kept for logging unknown actions

	URL       string    // goto
	Selector  string    // click, fill, hover
	Value     string    // fill
	Direction Direction // scroll
	Duration  *int      // wait, ms

	Subtitle  string
	WaitAfter *int // ms, overrides Settings.DefaultWaitAfter
}

// WaitAfterOr returns the settle time for the step in milliseconds. Negative
// values mean no wait.
func (s Step) WaitAfterOr(settings Settings) int {
	ms := settings.DefaultWaitAfter
	if s.WaitAfter != nil {
		ms = *s.WaitAfter
	}
	return max(ms, 0)
}

// WaitDuration returns how long a wait step suspends, in milliseconds.
// Negative values mean no wait.
func (s Step) WaitDuration() int {
	if s.Duration != nil {
		return max(*s.Duration, 0)
	}
	return DefaultWaitDuration
}

// Describe returns a short label for log lines
func (s Step) Describe() string {
	switch s.Action {
	case ActionGoto:
		return fmt.Sprintf("goto %s", s.URL)
	case ActionClick, ActionHover:
		return fmt.Sprintf("%s %s", s.Action, s.Selector)
	case ActionFill:
		return fmt.Sprintf("fill %s (%d chars)", s.Selector, len(s.Value))
	case ActionScroll:
		return fmt.Sprintf("scroll %s", s.Direction)
	case ActionWait:
		return fmt.Sprintf("wait %dms", s.WaitDuration())
	case ActionUnknown:
		return fmt.Sprintf("unknown action %q", s.RawAction)
	}
	return s.Action.String()
}

// Action is the closed set of step kinds
type Action int

const (
	// ActionUnknown covers any tag the player does not recognize. Such steps
	// still get narration and a settle delay but perform nothing.
	ActionUnknown Action = iota
	ActionGoto
	ActionClick
	ActionFill
	ActionHover
	ActionScroll
	ActionWait
)

var actionNames = map[Action]string{
	ActionUnknown: "unknown",
	ActionGoto:    "goto",
	ActionClick:   "click",
	ActionFill:    "fill",
	ActionHover:   "hover",
	ActionScroll:  "scroll",
	ActionWait:    "wait",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps a script tag to an Action. Unrecognized tags yield ActionUnknown.
func ParseAction(tag string) Action {
	t := strings.ToLower(strings.TrimSpace(tag))
	for a, name := range actionNames {
		if a != ActionUnknown && name == t {
			return a
		}
	}
	return ActionUnknown
}

// Direction is the sign of a scroll step
type Direction int

const (
	DirectionDown Direction = iota
	DirectionUp
)

func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}
	return "down"
}

// ParseDirection returns DirectionUp only for "up"; everything else scrolls down.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "up") {
		return DirectionUp
	}
	return DirectionDown
}
