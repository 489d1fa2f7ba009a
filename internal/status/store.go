// Package status records the lifecycle outcome of every declared module.
//
// The store is written by the manager as modules start and terminate, and
// read concurrently by the health server. It uses sync.Map because each
// module's entry is written independently and the key space is fixed once
// the topology is instantiated.
package status

import (
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle state of one module.
type Status string

const (
	Declared  Status = "declared"
	NotRouted Status = "not_routed"
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == NotRouted || s == Completed || s == Failed
}

// Entry is a point-in-time view of one module.
type Entry struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Transport  string    `json:"transport"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Store is an in-memory, thread-safe record of module entries.
type Store struct {
	entries sync.Map // Key: module name, Value: Entry
}

// New creates a new, empty store.
func New() *Store {
	return &Store{}
}

// Declare records a freshly instantiated module.
func (s *Store) Declare(name, typeName, transport string) {
	s.entries.Store(name, Entry{Name: name, Type: typeName, Transport: transport, Status: Declared})
}

// Set transitions name to st, recording err when non-nil. Unknown names are
// declared on the fly.
func (s *Store) Set(name string, st Status, err error) {
	e, _ := s.Get(name)
	e.Name = name
	e.Status = st
	now := time.Now()
	switch st {
	case Running:
		e.StartedAt = now
	case Completed, Failed:
		e.FinishedAt = now
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.entries.Store(name, e)
}

// Get returns the entry for name.
func (s *Store) Get(name string) (Entry, bool) {
	v, ok := s.entries.Load(name)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Snapshot returns every entry sorted by name.
func (s *Store) Snapshot() []Entry {
	var out []Entry
	s.entries.Range(func(_, v any) bool {
		out = append(out, v.(Entry))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Counts returns the number of modules in each status.
func (s *Store) Counts() map[Status]int {
	out := make(map[Status]int)
	s.entries.Range(func(_, v any) bool {
		out[v.(Entry).Status]++
		return true
	})
	return out
}
