package formfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParams() Params {
	return Params{
		Source:      `D:\in\shotA`,
		Name:        "shotA",
		FirstNumber: "1",
		FinalNum:    50,
		Destination: `D:\out\shotA`,
		FrameOffset: DefaultFrameOffset,
	}
}

func TestCompile_DefaultLayoutChoreography(t *testing.T) {
	steps, err := Compile(DefaultLayout(), sampleParams())
	require.NoError(t, err)
	want := []Step{
		{Kind: StepTab, Label: "source", N: 3},
		{Kind: StepType, Label: "source", Text: `D:\in\shotA`},
		{Kind: StepTab, Label: "name", N: 2},
		{Kind: StepType, Label: "name", Text: "shotA"},
		{Kind: StepTab, Label: "first_number", N: 3},
		{Kind: StepType, Label: "first_number", Text: "1"},
		{Kind: StepTab, Label: "frame_count", N: 1},
		{Kind: StepType, Label: "frame_count", Text: "49"},
		{Kind: StepTab, Label: "destination", N: 7},
		{Kind: StepType, Label: "destination", Text: `D:\out\shotA`},
		{Kind: StepTab, Label: "load", N: 3},
		{Kind: StepKey, Label: "load", Key: KeyEnter},
		{Kind: StepWait, Label: "load", Dur: 3 * time.Second},
		{Kind: StepTab, Label: "start", N: 4},
		{Kind: StepKey, Label: "start", Key: KeyEnter},
	}
	assert.Equal(t, want, steps)
}

func TestParams_FrameCount(t *testing.T) {
	p := sampleParams()
	assert.Equal(t, 49, p.FrameCount())
	p.FrameOffset = 0
	assert.Equal(t, 50, p.FrameCount())
}

func TestRender(t *testing.T) {
	p := sampleParams()
	got, err := Render("{name}-{first_number}", p)
	require.NoError(t, err)
	assert.Equal(t, "shotA-1", got)

	// substituted values are not expanded again
	p.Name = "{source}"
	got, err = Render("{name}", p)
	require.NoError(t, err)
	assert.Equal(t, "{source}", got)

	_, err = Render("{nope}", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")

	got, err = Render("no vars {Upper}", p)
	require.NoError(t, err)
	assert.Equal(t, "no vars {Upper}", got)
}

func TestLayoutValidate(t *testing.T) {
	cases := map[string]Layout{
		"empty":         {},
		"negative tabs": {Fields: []Field{{Name: "x", Tabs: -1}}},
		"unknown key":   {Actions: []Action{{Name: "go", Key: "space"}}},
		"negative wait": {Actions: []Action{{Name: "go", Key: KeyEnter, WaitAfter: -time.Second}}},
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(l, sampleParams())
			require.Error(t, err)
		})
	}
}

func TestFiller_RecorderSeesExactInputs(t *testing.T) {
	steps, err := Compile(DefaultLayout(), sampleParams())
	require.NoError(t, err)
	rec := &Recorder{}
	var waited []time.Duration
	f := &Filler{Injector: rec, Sleep: func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}}
	require.NoError(t, f.Run(context.Background(), steps))

	assert.Equal(t, []Input{
		{Key: KeyTab, N: 3}, {Text: `D:\in\shotA`},
		{Key: KeyTab, N: 2}, {Text: "shotA"},
		{Key: KeyTab, N: 3}, {Text: "1"},
		{Key: KeyTab, N: 1}, {Text: "49"},
		{Key: KeyTab, N: 7}, {Text: `D:\out\shotA`},
		{Key: KeyTab, N: 3}, {Key: KeyEnter, N: 1},
		{Key: KeyTab, N: 4}, {Key: KeyEnter, N: 1},
	}, rec.Inputs)
	assert.Equal(t, []time.Duration{3 * time.Second}, waited)
	assert.Equal(t, []string{`D:\in\shotA`, "shotA", "1", "49", `D:\out\shotA`}, rec.Typed())
}

func TestFiller_StopsAtFirstError(t *testing.T) {
	steps, err := Compile(DefaultLayout(), sampleParams())
	require.NoError(t, err)
	boom := errors.New("window lost focus")
	rec := &Recorder{FailAt: 3, Fail: boom}
	f := &Filler{Injector: rec, Sleep: func(context.Context, time.Duration) error { return nil }}

	err = f.Run(context.Background(), steps)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Index)
	assert.Equal(t, "name", se.Step.Label)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Inputs, 3)
}

func TestFiller_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Filler{Injector: &Recorder{}}
	err := f.Run(ctx, []Step{{Kind: StepType, Text: "x"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFixedDelay(t *testing.T) {
	start := time.Now()
	require.NoError(t, FixedDelay(10*time.Millisecond).Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, FixedDelay(time.Hour).Wait(ctx), context.Canceled)
}

func TestNewInjector(t *testing.T) {
	inj, err := NewInjector("dryrun", Options{})
	require.NoError(t, err)
	require.IsType(t, &DryRun{}, inj)
	require.NoError(t, inj.TypeText(context.Background(), "x"))

	inj, err = NewInjector("XDOTOOL", Options{})
	require.NoError(t, err)
	require.IsType(t, &Xdotool{}, inj)

	_, err = NewInjector("carrier-pigeon", Options{})
	require.Error(t, err)
}

func TestXdotoolArgs(t *testing.T) {
	var calls [][]string
	x := NewXdotool(Options{TypeDelay: 12 * time.Millisecond})
	x.run = func(_ context.Context, bin string, args ...string) error {
		calls = append(calls, append([]string{bin}, args...))
		return nil
	}
	ctx := context.Background()
	require.NoError(t, x.PressKey(ctx, KeyTab, 3))
	require.NoError(t, x.PressKey(ctx, "Enter", 1))
	require.NoError(t, x.TypeText(ctx, "-rf"))
	require.NoError(t, x.TypeText(ctx, ""))
	require.NoError(t, x.PressKey(ctx, KeyTab, 0))
	require.Error(t, x.PressKey(ctx, "f13", 1))

	assert.Equal(t, [][]string{
		{"xdotool", "key", "--repeat", "3", "--delay", "12", "Tab"},
		{"xdotool", "key", "--repeat", "1", "--delay", "12", "Return"},
		{"xdotool", "type", "--delay", "12", "--", "-rf"},
	}, calls)
}
