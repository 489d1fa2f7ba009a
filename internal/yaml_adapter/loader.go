// Package yaml_adapter loads topology documents written in YAML.
//
// The document mirrors the HCL format: a `modules` mapping and a `routes`
// mapping, both keyed by name, with the same record fields. Mappings are
// walked node by node so declaration order and repeated names are kept.
package yaml_adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new YAML topology loader.
func NewLoader() *Loader {
	return &Loader{}
}

type document struct {
	StageID string    `yaml:"stage_id"`
	Version string    `yaml:"version"`
	Modules yaml.Node `yaml:"modules"`
	Routes  yaml.Node `yaml:"routes"`
}

type moduleRecord struct {
	Module         string         `yaml:"module"`
	Description    string         `yaml:"description"`
	AddressType    string         `yaml:"address_type"`
	ID             string         `yaml:"id"`
	ModuleSettings map[string]any `yaml:"module_settings"`
}

type routeRecord struct {
	From     endpoints `yaml:"from"`
	To       endpoints `yaml:"to"`
	Capacity int       `yaml:"capacity"`
}

// endpoints accepts either a scalar module name or a sequence of names.
type endpoints struct {
	config.Cardinality
	set bool
}

func (e *endpoints) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		e.Cardinality, e.set = config.Single(name), true
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		e.Cardinality, e.set = config.Multiple(names...), true
		return nil
	}
	return fmt.Errorf("line %d: expected a module name or a list of module names", value.Line)
}

// Load parses every .yaml or .yml file found under paths and merges them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Topology, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .yaml files in %v", config.ErrNoDocuments, paths)
	}

	topo := config.NewTopology()
	explicitID := false
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		part, err := l.decode(src)
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
		}
		topo.Merge(part)
		if part.StageID != uuid.Nil && !explicitID {
			topo.StageID = part.StageID
			explicitID = true
		}
	}

	logger.Debug("YAML loading complete.", "modules", len(topo.Modules), "routes", len(topo.Routes))
	return topo, nil
}

// LoadBytes decodes a single in-memory YAML document.
func (l *Loader) LoadBytes(_ context.Context, src []byte) (*config.Topology, error) {
	topo, err := l.decode(src)
	if err != nil {
		return nil, err
	}
	if topo.StageID == uuid.Nil {
		topo.StageID = uuid.New()
	}
	return topo, nil
}

func (l *Loader) decode(src []byte) (*config.Topology, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	topo := &config.Topology{Version: doc.Version}
	if doc.StageID != "" {
		id, err := uuid.Parse(doc.StageID)
		if err != nil {
			return nil, fmt.Errorf("invalid stage_id %q: %w", doc.StageID, err)
		}
		topo.StageID = id
	}

	err := eachEntry(&doc.Modules, "modules", func(name string, node *yaml.Node) error {
		var rec moduleRecord
		if err := node.Decode(&rec); err != nil {
			return fmt.Errorf("module '%s': %w", name, err)
		}
		md, err := translateModule(name, &rec)
		if err != nil {
			return err
		}
		topo.Modules = append(topo.Modules, md)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(&doc.Routes, "routes", func(name string, node *yaml.Node) error {
		var rec routeRecord
		if err := node.Decode(&rec); err != nil {
			return fmt.Errorf("route '%s': %w", name, err)
		}
		if !rec.From.set || !rec.To.set {
			return fmt.Errorf("route '%s': both 'from' and 'to' are required", name)
		}
		topo.Routes = append(topo.Routes, &config.RouteDescriptor{
			Name:     name,
			From:     rec.From.Cardinality,
			To:       rec.To.Cardinality,
			Capacity: rec.Capacity,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topo, nil
}

// eachEntry walks a mapping node in document order.
func eachEntry(node *yaml.Node, field string, fn func(name string, value *yaml.Node) error) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: '%s' must be a mapping keyed by name", node.Line, field)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func translateModule(name string, rec *moduleRecord) (*config.ModuleDescriptor, error) {
	if rec.Module == "" {
		return nil, fmt.Errorf("module '%s': the 'module' field is required", name)
	}
	settings, err := config.SettingsFromMap(rec.ModuleSettings)
	if err != nil {
		return nil, fmt.Errorf("module '%s': %w", name, err)
	}
	md := config.NewModuleDescriptor(name, rec.Module, settings)
	md.Description = rec.Description
	if rec.ID != "" {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("module '%s': invalid id %q: %w", name, rec.ID, err)
		}
		md.ID = id
	}
	addr, err := config.ParseAddressType(rec.AddressType)
	if err != nil {
		return nil, fmt.Errorf("module '%s': %w", name, err)
	}
	md.Address = addr
	return md, nil
}
