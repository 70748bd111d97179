package workflow

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParse_JSON(t *testing.T) {
	data := []byte(`{
		"settings": {"baseUrl": "http://x", "defaultWaitAfter": 100},
		"steps": [
			{"action": "goto", "url": "/a", "subtitle": "Open the dashboard"},
			{"action": "click", "selector": "#login", "waitAfter": 500},
			{"action": "fill", "selector": "input[name=q]", "value": "acme"},
			{"action": "hover", "selector": ".card"},
			{"action": "scroll", "direction": "up"},
			{"action": "scroll"},
			{"action": "wait", "duration": 50},
			{"action": "wait"},
			{"action": "teleport"},
			{"action": 5, "subtitle": "numeric tag"},
			{"action": null},
			{"action": "wait", "duration": -5, "waitAfter": -1}
		]
	}`)

	wf, err := Parse(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "http://x", wf.Settings.BaseURL)
	assert.Equal(t, 100, wf.Settings.DefaultWaitAfter)
	require.Len(t, wf.Steps, 12)

	assert.Equal(t, ActionGoto, wf.Steps[0].Action)
	assert.Equal(t, "/a", wf.Steps[0].URL)
	assert.Equal(t, "Open the dashboard", wf.Steps[0].Subtitle)

	assert.Equal(t, ActionClick, wf.Steps[1].Action)
	assert.Equal(t, 500, wf.Steps[1].WaitAfterOr(wf.Settings))

	assert.Equal(t, ActionFill, wf.Steps[2].Action)
	assert.Equal(t, "acme", wf.Steps[2].Value)

	assert.Equal(t, ActionHover, wf.Steps[3].Action)

	assert.Equal(t, DirectionUp, wf.Steps[4].Direction)
	assert.Equal(t, DirectionDown, wf.Steps[5].Direction)

	assert.Equal(t, 50, wf.Steps[6].WaitDuration())
	assert.Equal(t, DefaultWaitDuration, wf.Steps[7].WaitDuration())

	assert.Equal(t, ActionUnknown, wf.Steps[8].Action)
	assert.Equal(t, "teleport", wf.Steps[8].RawAction)

	assert.Equal(t, ActionUnknown, wf.Steps[9].Action)
	assert.Equal(t, "5", wf.Steps[9].RawAction)
	assert.Equal(t, "numeric tag", wf.Steps[9].Subtitle)
	assert.Equal(t, ActionUnknown, wf.Steps[10].Action)
	assert.Equal(t, "", wf.Steps[10].RawAction)

	assert.Equal(t, ActionWait, wf.Steps[11].Action)
	assert.Equal(t, 0, wf.Steps[11].WaitDuration(), "negative duration means no wait")
	assert.Equal(t, 0, wf.Steps[11].WaitAfterOr(wf.Settings), "negative waitAfter means no wait")
}

func TestParse_YAMLNonStringAction(t *testing.T) {
	data := []byte(`
steps:
  - action: 5
  - action: [goto]
  - action: "5"
  - action: wait
`)
	wf, err := Parse(data, FormatYAML)
	require.NoError(t, err)
	require.Len(t, wf.Steps, 4)
	assert.Equal(t, ActionUnknown, wf.Steps[0].Action)
	assert.Equal(t, "5", wf.Steps[0].RawAction)
	assert.Equal(t, ActionUnknown, wf.Steps[1].Action)
	assert.Equal(t, ActionUnknown, wf.Steps[2].Action)
	assert.Equal(t, "5", wf.Steps[2].RawAction)
	assert.Equal(t, ActionWait, wf.Steps[3].Action)
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
settings:
  baseUrl: http://localhost:5173
  defaultWaitAfter: 1500
steps:
  - action: goto
    url: /login
    subtitle: Sign in
  - action: fill
    selector: "#email"
    value: demo@example.com
    waitAfter: 0
`)

	wf, err := Parse(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173", wf.Settings.BaseURL)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "demo@example.com", wf.Steps[1].Value)
	// An explicit zero overrides the default.
	assert.Equal(t, 0, wf.Steps[1].WaitAfterOr(wf.Settings))
	assert.Equal(t, 1500, wf.Steps[0].WaitAfterOr(wf.Settings))
}

func TestParse_Defaults(t *testing.T) {
	t.Run("missing settings and steps", func(t *testing.T) {
		wf, err := Parse([]byte(`{}`), FormatJSON)
		require.NoError(t, err)
		assert.Empty(t, wf.Steps)
		assert.Equal(t, "", wf.Settings.BaseURL)
		assert.Equal(t, DefaultWaitAfter, wf.Settings.DefaultWaitAfter)
	})

	t.Run("settings without defaultWaitAfter", func(t *testing.T) {
		wf, err := Parse([]byte(`{"settings":{"baseUrl":"http://x"}}`), FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, DefaultWaitAfter, wf.Settings.DefaultWaitAfter)
	})

	t.Run("explicit zero defaultWaitAfter", func(t *testing.T) {
		wf, err := Parse([]byte(`{"settings":{"defaultWaitAfter":0}}`), FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, 0, wf.Settings.DefaultWaitAfter)
	})
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"malformed json", `{"steps": [`, FormatJSON},
		{"empty json", `   `, FormatJSON},
		{"empty yaml", "\n  \n", FormatYAML},
		{"malformed yaml", "steps:\n  - action: [", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(dir, "workflow.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"steps":[{"action":"wait","duration":10}]}`), 0o644))
		wf, err := Load(path)
		require.NoError(t, err)
		require.Len(t, wf.Steps, 1)
		assert.Equal(t, 10, wf.Steps[0].WaitDuration())
	})

	t.Run("yml file", func(t *testing.T) {
		path := filepath.Join(dir, "workflow.yml")
		require.NoError(t, os.WriteFile(path, []byte("steps:\n  - action: hover\n    selector: nav a\n"), 0o644))
		wf, err := Load(path)
		require.NoError(t, err)
		require.Len(t, wf.Steps, 1)
		assert.Equal(t, ActionHover, wf.Steps[0].Action)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.json"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoad_SampleWorkflow(t *testing.T) {
	wf, err := Load(filepath.Join("..", "..", "demo", "workflow.json"))
	require.NoError(t, err)
	require.NotEmpty(t, wf.Steps)

	for i, step := range wf.Steps {
		assert.NotEqual(t, ActionUnknown, step.Action, "step %d", i+1)
		if step.Action != ActionGoto {
			continue
		}
		u, err := url.Parse(wf.Settings.BaseURL + step.URL)
		require.NoError(t, err, "step %d", i+1)
		assert.Equal(t, "https", u.Scheme, "step %d", i+1)
		assert.Equal(t, "example.com", u.Host, "step %d", i+1)
	}
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionGoto, ParseAction("goto"))
	assert.Equal(t, ActionClick, ParseAction(" Click "))
	assert.Equal(t, ActionUnknown, ParseAction(""))
	assert.Equal(t, ActionUnknown, ParseAction("navigate"))
	assert.Equal(t, ActionUnknown, ParseAction("unknown"))
}

func TestStep_WaitAfterOr(t *testing.T) {
	settings := Settings{DefaultWaitAfter: 2000}
	assert.Equal(t, 2000, Step{}.WaitAfterOr(settings))
	assert.Equal(t, 500, Step{WaitAfter: intPtr(500)}.WaitAfterOr(settings))
	assert.Equal(t, 0, Step{}.WaitAfterOr(Settings{DefaultWaitAfter: -100}))
}

func TestStep_Describe(t *testing.T) {
	assert.Equal(t, "goto /a", Step{Action: ActionGoto, URL: "/a"}.Describe())
	assert.Equal(t, "click #x", Step{Action: ActionClick, Selector: "#x"}.Describe())
	assert.Equal(t, "scroll up", Step{Action: ActionScroll, Direction: DirectionUp}.Describe())
	assert.Equal(t, "wait 1000ms", Step{Action: ActionWait}.Describe())
	assert.Equal(t, `unknown action "jump"`, Step{RawAction: "jump"}.Describe())
}
