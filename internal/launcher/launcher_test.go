package launcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/pivbatch/internal/detector"
	"github.com/loykin/pivbatch/internal/env"
	"github.com/loykin/pivbatch/internal/formfill"
	"github.com/loykin/pivbatch/internal/history"
	"github.com/loykin/pivbatch/internal/process"
	"github.com/loykin/pivbatch/internal/registry"
)

type fakeDetector bool

func (f fakeDetector) Alive() (bool, error) { return bool(f), nil }
func (f fakeDetector) Describe() string     { return "fake" }

func aliveSet(pids ...int) detector.Factory {
	set := map[int]bool{}
	for _, p := range pids {
		set[p] = true
	}
	return func(pid int, _ int64) detector.Detector { return fakeDetector(set[pid]) }
}

type fakeStarter struct {
	pid   int
	err   error
	specs []process.Spec
}

func (f *fakeStarter) Start(s process.Spec) (*process.Started, error) {
	f.specs = append(f.specs, s)
	if f.err != nil {
		return nil, f.err
	}
	return &process.Started{PID: f.pid, StartUnix: 1700000000}, nil
}

type fixture struct {
	store   *registry.MemoryStore
	rec     *formfill.Recorder
	starter *fakeStarter
	sink    *history.Memory
	root    string
	l       *Launcher
}

func newFixture(t *testing.T, initial registry.Instances, alive ...int) *fixture {
	t.Helper()
	f := &fixture{
		store:   registry.NewMemoryStore(initial),
		rec:     &formfill.Recorder{},
		starter: &fakeStarter{pid: 4242},
		sink:    &history.Memory{},
		root:    t.TempDir(),
	}
	reg := registry.NewManager(f.store, registry.WithDetector(aliveSet(alive...)))
	f.l = New(reg, f.rec,
		WithApp(process.Spec{Args: []string{"piv"}, Env: []string{"PIV_MODE=batch"}}),
		WithEnv(env.New().FromList([]string{"PATH=/bin", "TEMP=/old"})),
		WithTempRoot(f.root),
		WithWaiter(formfill.FixedDelay(0)),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
		WithHistory(f.sink),
		WithStarter(f.starter.Start),
	)
	return f
}

func job() Job {
	return Job{Source: "/in/shotA", Name: "shotA", FinalNum: 50, Destination: "/out/shotA", FirstNumber: "1"}
}

func TestLaunch_RegistersAndFillsForm(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.l.Launch(context.Background(), job())
	require.NoError(t, err)

	assert.Equal(t, 4242, res.PID)
	assert.Equal(t, f.root, filepath.Dir(res.Key))
	assert.DirExists(t, res.Key)
	assert.Len(t, res.Steps, 15)

	got, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, got, res.Key)
	assert.Equal(t, registry.Record{PID: 4242, Source: "/in/shotA", Name: "shotA", FinalNum: 50, Destination: "/out/shotA", StartUnix: 1700000000}, got[res.Key])

	assert.Equal(t, []string{"/in/shotA", "shotA", "1", "49", "/out/shotA"}, f.rec.Typed())

	require.Len(t, f.starter.specs, 1)
	spec := f.starter.specs[0]
	assert.Equal(t, []string{"piv"}, spec.Args)
	assert.Equal(t, filepath.Base(res.Key), spec.Name)
	for _, k := range env.TempVars {
		v, ok := envValue(spec.Env, k)
		require.True(t, ok, k)
		assert.Equal(t, res.Key, v)
	}
	v, _ := envValue(spec.Env, "PIV_MODE")
	assert.Equal(t, "batch", v)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, history.EventLaunch, events[0].Type)
	assert.Equal(t, res.Key, events[0].Record.Key)
}

func TestLaunch_PrunesDeadInstancesFirst(t *testing.T) {
	initial := registry.Instances{
		"/t/PIV_dead":  {PID: 1},
		"/t/PIV_alive": {PID: 2},
	}
	f := newFixture(t, initial, 2, 4242)
	res, err := f.l.Launch(context.Background(), job())
	require.NoError(t, err)

	got, _ := f.store.Load(context.Background())
	assert.Len(t, got, 2)
	assert.Contains(t, got, "/t/PIV_alive")
	assert.Contains(t, got, res.Key)
	assert.NotContains(t, got, "/t/PIV_dead")
}

func TestLaunch_RegistryWriteFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SaveErr = errors.New("disk full")
	res, err := f.l.Launch(context.Background(), job())
	require.ErrorIs(t, err, ErrRegistryWrite)
	assert.Contains(t, err.Error(), "pid 4242")
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 4242, res.PID)
	assert.Empty(t, f.rec.Inputs, "no keystrokes after a failed registration")

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, history.EventRegistryFailed, events[0].Type)
}

func TestLaunch_InjectionFailureKeepsEntry(t *testing.T) {
	f := newFixture(t, nil)
	f.rec.FailAt = 2
	f.rec.Fail = errors.New("focus lost")
	res, err := f.l.Launch(context.Background(), job())
	require.ErrorIs(t, err, ErrInjection)
	var se *formfill.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Index)

	got, _ := f.store.Load(context.Background())
	assert.Contains(t, got, res.Key)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, history.EventInjectFailed, events[0].Type)
	assert.Contains(t, events[0].Record.Error, "focus lost")
}

func TestLaunch_StartFailureLeavesRegistryAlone(t *testing.T) {
	f := newFixture(t, nil)
	f.starter.err = errors.New("exec: not found")
	_, err := f.l.Launch(context.Background(), job())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInjection)
	got, _ := f.store.Load(context.Background())
	assert.Empty(t, got)
}

func TestLaunch_BadLayoutStartsNothing(t *testing.T) {
	f := newFixture(t, nil)
	WithLayout(formfill.Layout{Fields: []formfill.Field{{Name: "x", Value: "{bogus}"}}})(f.l)
	_, err := f.l.Launch(context.Background(), job())
	require.Error(t, err)
	assert.Empty(t, f.starter.specs)
}

func TestLaunch_CancelledWhileWaiting(t *testing.T) {
	f := newFixture(t, nil)
	WithWaiter(formfill.FixedDelay(time.Hour))(f.l)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := f.l.Launch(ctx, job())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.rec.Inputs)
}

func TestLaunch_FrameOffsetConfigurable(t *testing.T) {
	f := newFixture(t, nil)
	WithFrameOffset(0)(f.l)
	_, err := f.l.Launch(context.Background(), job())
	require.NoError(t, err)
	assert.Equal(t, "50", f.rec.Typed()[3])
}

func envValue(kvs []string, k string) (string, bool) {
	for _, kv := range kvs {
		if key, v, ok := strings.Cut(kv, "="); ok && key == k {
			return v, true
		}
	}
	return "", false
}
