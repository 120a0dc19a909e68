// Package registry keeps track of launched PIV instances.
//
// The registry maps a unique temp-directory path to the parameters the instance was
// launched with. It is persisted through a Store so tests can substitute memory.
package registry

import (
	"context"
	"errors"
	"sort"
)

// DefaultPath is the registry file used when none is configured.
const DefaultPath = "running_instances.json"

// ErrCorrupt is returned when persisted state cannot be decoded. Load never resets
// corrupt state, so running instances are not forgotten.
var ErrCorrupt = errors.New("registry state is corrupt")

// Record describes one launched instance.
type Record struct {
	PID         int    `json:"pid"`
	Source      string `json:"bpass"`
	Name        string `json:"name"`
	FinalNum    int    `json:"final_num"`
	Destination string `json:"b_savefolder_pass"`
	StartUnix   int64  `json:"start_unix,omitempty"`
}

// Instances is keyed by the instance temp-directory path.
type Instances map[string]Record

// Keys returns the keys in sorted order.
func (in Instances) Keys() []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (in Instances) Clone() Instances {
	out := make(Instances, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Store is the persistence port of the registry.
type Store interface {
	// Load returns the persisted mapping, or an empty one when none exists yet.
	Load(ctx context.Context) (Instances, error)
	// Save replaces the persisted mapping.
	Save(ctx context.Context, in Instances) error
	Close() error
}

// Locker is implemented by stores that can serialize read-modify-write cycles across
// processes. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}
