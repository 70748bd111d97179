package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a script
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the encoding from the file extension. JSON is the default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type rawWorkflow struct {
	Settings *rawSettings `json:"settings" yaml:"settings"`
	Steps    []rawStep    `json:"steps" yaml:"steps"`
}

type rawSettings struct {
	BaseURL          string `json:"baseUrl" yaml:"baseUrl"`
	DefaultWaitAfter *int   `json:"defaultWaitAfter" yaml:"defaultWaitAfter"`
}

type rawStep struct {
	Action    actionTag `json:"action" yaml:"action"`
	URL       string `json:"url" yaml:"url"`
	Selector  string `json:"selector" yaml:"selector"`
	Value     string `json:"value" yaml:"value"`
	Direction string `json:"direction" yaml:"direction"`
	Duration  *int   `json:"duration" yaml:"duration"`
	Subtitle  string `json:"subtitle" yaml:"subtitle"`
	WaitAfter *int   `json:"waitAfter" yaml:"waitAfter"`
}

// actionTag accepts any scalar for a step's action. Non-string values are
// kept as their literal text and never match a known action.
type actionTag struct {
	text   string
	isText bool
}

func (a *actionTag) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &a.text); err == nil {
		a.isText = true
		return nil
	}
	a.text = string(bytes.TrimSpace(data))
	if a.text == "null" {
		a.text = ""
	}
	return nil
}

func (a *actionTag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		out, err := yaml.Marshal(node)
		if err != nil {
			return err
		}
		a.text = strings.TrimSpace(string(out))
		return nil
	}
	switch node.ShortTag() {
	case "!!str":
		a.text, a.isText = node.Value, true
	case "!!null":
		a.text = ""
	default:
		a.text = node.Value
	}
	return nil
}

func (a actionTag) action() Action {
	if !a.isText {
		return ActionUnknown
	}
	return ParseAction(a.text)
}

// Load reads and parses a workflow script. A missing or malformed file is
// returned as an error; the caller has nothing to play back without it.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	wf, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow %s: %w", path, err)
	}
	return wf, nil
}

// Parse decodes a script. Missing settings and steps default to empty values;
// a document with no content at all is an error in either format.
func Parse(data []byte, format Format) (*Workflow, error) {
	var raw rawWorkflow

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty workflow document")
	}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}

	wf := &Workflow{
		Settings: Settings{DefaultWaitAfter: DefaultWaitAfter},
		Steps:    make([]Step, 0, len(raw.Steps)),
	}
	if raw.Settings != nil {
		wf.Settings.BaseURL = raw.Settings.BaseURL
		if raw.Settings.DefaultWaitAfter != nil {
			wf.Settings.DefaultWaitAfter = *raw.Settings.DefaultWaitAfter
		}
	}

	for _, rs := range raw.Steps {
		wf.Steps = append(wf.Steps, Step{
			Action:    rs.Action.action(),
			RawAction: rs.Action.text,
			URL:       rs.URL,
			Selector:  rs.Selector,
			Value:     rs.Value,
			Direction: ParseDirection(rs.Direction),
			Duration:  rs.Duration,
			Subtitle:  rs.Subtitle,
			WaitAfter: rs.WaitAfter,
		})
	}

	return wf, nil
}
