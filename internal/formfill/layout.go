// Package formfill drives the PIV batch form through synthetic keystrokes.
//
// A Layout names each form field by the number of Tab presses that reach it from the
// previous one. Compile turns a Layout plus Params into a flat list of Steps, and a
// Filler replays those Steps through an Injector.
package formfill

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultFrameOffset is added to the final frame number to get the frame count the
// form expects.
const DefaultFrameOffset = -1

// DefaultLoadWait is the pause after the load action before the start action.
const DefaultLoadWait = 3 * time.Second

// Field is a text input reached after Tabs presses of Tab.
type Field struct {
	Name  string `mapstructure:"name" toml:"name"`
	Tabs  int    `mapstructure:"tabs" toml:"tabs"`
	Value string `mapstructure:"value" toml:"value"` // template, e.g. "{source}"
}

// Action is a button reached after Tabs presses of Tab and activated with Key.
type Action struct {
	Name      string        `mapstructure:"name" toml:"name"`
	Tabs      int           `mapstructure:"tabs" toml:"tabs"`
	Key       string        `mapstructure:"key" toml:"key"`
	WaitAfter time.Duration `mapstructure:"wait_after" toml:"wait_after"`
}

// Layout is the ordered form script. Fields are filled before actions run.
type Layout struct {
	Fields  []Field  `mapstructure:"fields" toml:"fields"`
	Actions []Action `mapstructure:"actions" toml:"actions"`
}

// DefaultLayout is the tab order of the PIV batch dialog.
func DefaultLayout() Layout {
	return Layout{
		Fields: []Field{
			{Name: "source", Tabs: 3, Value: "{source}"},
			{Name: "name", Tabs: 2, Value: "{name}"},
			{Name: "first_number", Tabs: 3, Value: "{first_number}"},
			{Name: "frame_count", Tabs: 1, Value: "{frame_count}"},
			{Name: "destination", Tabs: 7, Value: "{destination}"},
		},
		Actions: []Action{
			{Name: "load", Tabs: 3, Key: KeyEnter, WaitAfter: DefaultLoadWait},
			{Name: "start", Tabs: 4, Key: KeyEnter},
		},
	}
}

// Validate rejects negative tab counts and unknown keys.
func (l Layout) Validate() error {
	if len(l.Fields) == 0 && len(l.Actions) == 0 {
		return errors.New("formfill: empty layout")
	}
	for _, f := range l.Fields {
		if f.Tabs < 0 {
			return fmt.Errorf("formfill: field %q: negative tabs", f.Name)
		}
	}
	for _, a := range l.Actions {
		if a.Tabs < 0 {
			return fmt.Errorf("formfill: action %q: negative tabs", a.Name)
		}
		if !knownKey(a.Key) {
			return fmt.Errorf("formfill: action %q: unknown key %q", a.Name, a.Key)
		}
		if a.WaitAfter < 0 {
			return fmt.Errorf("formfill: action %q: negative wait", a.Name)
		}
	}
	return nil
}

// Params are the values typed into the form for one folder.
type Params struct {
	Source      string
	Name        string
	FirstNumber string
	FinalNum    int
	Destination string
	FrameOffset int
}

// FrameCount is the value entered in the frame_count field.
func (p Params) FrameCount() int { return p.FinalNum + p.FrameOffset }

func (p Params) vars() map[string]string {
	return map[string]string{
		"source":       p.Source,
		"name":         p.Name,
		"first_number": p.FirstNumber,
		"frame_count":  strconv.Itoa(p.FrameCount()),
		"final_num":    strconv.Itoa(p.FinalNum),
		"destination":  p.Destination,
	}
}
