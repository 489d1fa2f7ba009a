package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Topology is the unified, format-agnostic representation of a topology
// document: the declared modules and the routes between them.
//
// Modules and Routes are kept as ordered slices rather than maps so that a
// repeated name survives decoding and can be reported by the manager.
type Topology struct {
	StageID uuid.UUID
	Version string
	Modules []*ModuleDescriptor
	Routes  []*RouteDescriptor
}

// NewTopology returns an empty topology with a fresh stage ID.
func NewTopology() *Topology {
	return &Topology{StageID: uuid.New()}
}

// Merge appends the modules and routes of other into t.
func (t *Topology) Merge(other *Topology) {
	if other == nil {
		return
	}
	if t.Version == "" {
		t.Version = other.Version
	}
	t.Modules = append(t.Modules, other.Modules...)
	t.Routes = append(t.Routes, other.Routes...)
}

// ModuleDescriptor is the format-agnostic representation of a `module` block.
type ModuleDescriptor struct {
	// ID is assigned at load time and is stable for the life of the process.
	ID          uuid.UUID
	Name        string
	Type        string
	Description string
	Address     AddressType
	Settings    Settings
}

// NewModuleDescriptor returns a managed descriptor with a fresh ID.
func NewModuleDescriptor(name, typ string, settings Settings) *ModuleDescriptor {
	return &ModuleDescriptor{
		ID:       uuid.New(),
		Name:     name,
		Type:     typ,
		Address:  Managed(),
		Settings: settings,
	}
}

// RouteDescriptor is the format-agnostic representation of a `route` block.
type RouteDescriptor struct {
	Name string
	From Cardinality
	To   Cardinality
	// Capacity bounds each receiver's buffer. Zero selects the default.
	Capacity int
}

// Cardinality is one side of a route: a single module name or a list.
type Cardinality struct {
	names    []string
	multiple bool
}

// Single refers to exactly one module.
func Single(name string) Cardinality {
	return Cardinality{names: []string{name}}
}

// Multiple refers to a list of modules.
func Multiple(names ...string) Cardinality {
	return Cardinality{names: append([]string(nil), names...), multiple: true}
}

// IsMultiple reports whether the cardinality was declared as a list.
func (c Cardinality) IsMultiple() bool { return c.multiple }

// Names expands the cardinality into a set of module names. Duplicates are
// dropped; declaration order is kept.
func (c Cardinality) Names() []string {
	seen := make(map[string]struct{}, len(c.names))
	out := make([]string, 0, len(c.names))
	for _, n := range c.names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (c Cardinality) String() string {
	if !c.multiple && len(c.names) == 1 {
		return fmt.Sprintf("Single(%s)", c.names[0])
	}
	return fmt.Sprintf("Multiple([%s])", strings.Join(c.names, ", "))
}

// AddressKind is the closed set of ways a module can be addressed.
type AddressKind int

const (
	// AddressManaged modules are instantiated and run by this process.
	AddressManaged AddressKind = iota
	// AddressLocalPeer modules are run by another process on this host.
	AddressLocalPeer
	// AddressRemotePeer modules are run by a process on another host.
	AddressRemotePeer
)

// AddressType says who is responsible for running a module.
type AddressType struct {
	Kind AddressKind
	Peer string
}

func Managed() AddressType { return AddressType{Kind: AddressManaged} }
func LocalPeerManaged(id string) AddressType { return AddressType{Kind: AddressLocalPeer, Peer: id} }
func RemotePeerManaged(id string) AddressType { return AddressType{Kind: AddressRemotePeer, Peer: id} }

func (a AddressType) String() string {
	switch a.Kind {
	case AddressLocalPeer:
		return "local_peer:" + a.Peer
	case AddressRemotePeer:
		return "remote_peer:" + a.Peer
	default:
		return "managed"
	}
}

// ParseAddressType parses "managed", "local_peer:<id>" or "remote_peer:<id>".
// An empty string means managed.
func ParseAddressType(s string) (AddressType, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "managed") {
		return Managed(), nil
	}
	kind, peer, ok := strings.Cut(s, ":")
	if !ok || peer == "" {
		return AddressType{}, fmt.Errorf("invalid address_type %q: expected managed, local_peer:<id> or remote_peer:<id>", s)
	}
	switch strings.ToLower(kind) {
	case "local_peer":
		return LocalPeerManaged(peer), nil
	case "remote_peer":
		return RemotePeerManaged(peer), nil
	}
	return AddressType{}, fmt.Errorf("invalid address_type %q: unknown kind %q", s, kind)
}
