package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/loykin/pivbatch/internal/detector"
	"github.com/loykin/pivbatch/internal/logger"
)

// KeyPrefix prefixes every generated instance directory name.
const KeyPrefix = "PIV_"

// Manager wraps a Store with liveness-aware bookkeeping.
type Manager struct {
	store  Store
	detect detector.Factory
	newID  func() string
	logger *slog.Logger
	onSize func(int)
}

// Option configures a Manager.
type Option func(*Manager)

// WithDetector overrides how liveness is probed.
func WithDetector(f detector.Factory) Option { return func(m *Manager) { m.detect = f } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithIDSource overrides the random id generator.
func WithIDSource(f func() string) Option { return func(m *Manager) { m.newID = f } }

// WithSizeObserver is called with the entry count after every successful save.
func WithSizeObserver(f func(int)) Option { return func(m *Manager) { m.onSize = f } }

func NewManager(s Store, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		detect: detector.ForPID,
		newID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		logger: logger.Discard(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

func (m *Manager) Load(ctx context.Context) (Instances, error) { return m.store.Load(ctx) }

func (m *Manager) Save(ctx context.Context, in Instances) error { return m.store.Save(ctx, in) }

// Update runs load, fn and save as one cycle, holding the store lock when supported.
// Nothing is saved when fn returns an error.
func (m *Manager) Update(ctx context.Context, fn func(Instances) error) error {
	if l, ok := m.store.(Locker); ok {
		unlock, err := l.Lock(ctx)
		if err != nil {
			return fmt.Errorf("lock registry: %w", err)
		}
		defer unlock()
	}
	in, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(in); err != nil {
		return err
	}
	if err := m.store.Save(ctx, in); err != nil {
		return err
	}
	if m.onSize != nil {
		m.onSize(len(in))
	}
	return nil
}

// Register records an instance under key.
func (m *Manager) Register(ctx context.Context, key string, rec Record) error {
	return m.Update(ctx, func(in Instances) error {
		in[key] = rec
		return nil
	})
}

// Remove deletes key; removing an unknown key is not an error.
func (m *Manager) Remove(ctx context.Context, key string) error {
	return m.Update(ctx, func(in Instances) error {
		delete(in, key)
		return nil
	})
}

// Alive reports whether rec still names a running process. Probe errors count as not running.
func (m *Manager) Alive(rec Record) bool {
	d := m.detect(rec.PID, rec.StartUnix)
	ok, err := d.Alive()
	if err != nil {
		m.logger.Debug("liveness probe failed", "detector", d.Describe(), "error", err)
		return false
	}
	return ok
}

// Prune drops every entry whose process is gone, persists the result and returns the
// removed keys in sorted order.
func (m *Manager) Prune(ctx context.Context) ([]string, error) {
	var removed []string
	err := m.Update(ctx, func(in Instances) error {
		for _, k := range in.Keys() {
			if !m.Alive(in[k]) {
				delete(in, k)
				removed = append(removed, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, k := range removed {
		m.logger.Debug("pruned finished instance", "key", k)
	}
	return removed, nil
}

// NewKey returns root/PIV_<hex> that is not a key of the current mapping.
func (m *Manager) NewKey(ctx context.Context, root string) (string, error) {
	in, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return m.KeyFor(root, in), nil
}

// KeyFor generates a key under root that does not collide with existing.
func (m *Manager) KeyFor(root string, existing Instances) string {
	for {
		k := filepath.Join(root, KeyPrefix+m.newID())
		if _, taken := existing[k]; !taken {
			return k
		}
	}
}

// Entry is one registry row with its liveness.
type Entry struct {
	Key    string `json:"key"`
	Record Record `json:"record"`
	Alive  bool   `json:"alive"`
}

// List returns all entries sorted by key without modifying the registry.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	in, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(in))
	for _, k := range in.Keys() {
		rec := in[k]
		out = append(out, Entry{Key: k, Record: rec, Alive: m.Alive(rec)})
	}
	return out, nil
}
