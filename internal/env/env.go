// Package env composes the environment handed to each launched instance.
package env

import (
	"os"
	"runtime"
	"sort"
	"strings"
)

// TempVars are the variables redirected to an instance's private scratch directory.
// TEMP and TMP are what Windows applications read; TMPDIR covers Unix builds.
var TempVars = []string{"TEMP", "TMP", "TMPDIR"}

type Var map[string]string

type Env struct {
	Var  Var // global variables (K->V)
	base Var // base environment; nil means os.Environ on first Merge
	fold bool
}

func New() *Env {
	return &Env{Var: make(Var), fold: runtime.GOOS == "windows"}
}

// FromList replaces the base environment with kvs instead of the OS environment.
func (e *Env) FromList(kvs []string) *Env {
	e.base = parse(kvs)
	return e
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() *Env { return e.FromList(os.Environ()) }

// caseInsensitive makes keys compare without case, as Windows does.
func (e *Env) caseInsensitive(v bool) *Env {
	e.fold = v
	return e
}

// WithSet sets a global variable K=V and returns e.
func (e *Env) WithSet(k, v string) *Env {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
	return e
}

// Merge composes the final environment: base, then globals, then perProc "K=V" overrides.
// ${VAR} references are expanded against the composed map (single pass, no recursion)
// and the result is sorted by key.
func (e *Env) Merge(perProc []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Var)+len(perProc))
	keys := make(map[string]string) // canonical -> spelling in use
	put := func(k, v string) {
		if k == "" {
			return
		}
		c := e.canon(k)
		if old, ok := keys[c]; ok && old != k {
			delete(m, old)
		}
		keys[c] = k
		m[k] = v
	}
	for k, v := range e.base {
		put(k, v)
	}
	for k, v := range e.Var {
		put(k, v)
	}
	for k, v := range parse(perProc) {
		put(k, v)
	}

	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	sort.Strings(out)
	return out
}

// TempOverrides returns the "K=V" pairs that point every temp variable at dir.
func TempOverrides(dir string) []string {
	out := make([]string, 0, len(TempVars))
	for _, k := range TempVars {
		out = append(out, k+"="+dir)
	}
	return out
}

// lookup returns the value of k in a "K=V" list, honouring case folding when fold is set.
func lookup(kvs []string, k string, fold bool) (string, bool) {
	for i := len(kvs) - 1; i >= 0; i-- {
		key, v, ok := strings.Cut(kvs[i], "=")
		if !ok {
			continue
		}
		if key == k || (fold && strings.EqualFold(key, k)) {
			return v, true
		}
	}
	return "", false
}

func (e *Env) canon(k string) string {
	if e.fold {
		return strings.ToUpper(k)
	}
	return k
}

func parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
