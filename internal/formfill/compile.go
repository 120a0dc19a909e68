package formfill

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Key names understood by every Injector.
const (
	KeyTab   = "tab"
	KeyEnter = "enter"
)

func knownKey(k string) bool {
	switch strings.ToLower(k) {
	case KeyTab, KeyEnter:
		return true
	}
	return false
}

// StepKind is the type of a compiled Step.
type StepKind string

const (
	StepTab  StepKind = "tab"
	StepType StepKind = "type"
	StepKey  StepKind = "key"
	StepWait StepKind = "wait"
)

// Step is one primitive injection.
type Step struct {
	Kind  StepKind
	Label string // field or action it belongs to
	N     int    // tab presses
	Key   string
	Text  string
	Dur   time.Duration
}

func (s Step) String() string {
	switch s.Kind {
	case StepTab:
		return fmt.Sprintf("%s: tab x%d", s.Label, s.N)
	case StepType:
		return fmt.Sprintf("%s: type %q", s.Label, s.Text)
	case StepKey:
		return fmt.Sprintf("%s: key %s", s.Label, s.Key)
	case StepWait:
		return fmt.Sprintf("%s: wait %s", s.Label, s.Dur)
	}
	return string(s.Kind)
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Render substitutes {var} placeholders in tmpl. Unknown names are an error.
// Substituted values are not scanned again.
func Render(tmpl string, p Params) (string, error) {
	vars := p.vars()
	var missing []string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("formfill: unknown template variable %q", missing[0])
	}
	return out, nil
}

// Compile expands layout into steps for p.
func Compile(layout Layout, p Params) ([]Step, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	steps := make([]Step, 0, 2*len(layout.Fields)+3*len(layout.Actions))
	for _, f := range layout.Fields {
		text, err := Render(f.Value, p)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if f.Tabs > 0 {
			steps = append(steps, Step{Kind: StepTab, Label: f.Name, N: f.Tabs})
		}
		steps = append(steps, Step{Kind: StepType, Label: f.Name, Text: text})
	}
	for _, a := range layout.Actions {
		if a.Tabs > 0 {
			steps = append(steps, Step{Kind: StepTab, Label: a.Name, N: a.Tabs})
		}
		steps = append(steps, Step{Kind: StepKey, Label: a.Name, Key: strings.ToLower(a.Key)})
		if a.WaitAfter > 0 {
			steps = append(steps, Step{Kind: StepWait, Label: a.Name, Dur: a.WaitAfter})
		}
	}
	return steps, nil
}
