package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/hcl_adapter"
	"github.com/vk/gridrouter/internal/yaml_adapter"
)

// formatLoader dispatches each path to the loader for its format. Files are
// routed by extension; directories are scanned by every format and merged.
type formatLoader struct {
	hcl  config.Loader
	yaml config.Loader
}

func newFormatLoader() *formatLoader {
	return &formatLoader{hcl: hcl_adapter.NewLoader(), yaml: yaml_adapter.NewLoader()}
}

// Load implements config.Loader.
func (l *formatLoader) Load(ctx context.Context, paths ...string) (*config.Topology, error) {
	topo := config.NewTopology()
	found := false

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		var loaders []config.Loader
		switch {
		case info.IsDir():
			loaders = []config.Loader{l.hcl, l.yaml}
		case filepath.Ext(path) == ".yaml", filepath.Ext(path) == ".yml":
			loaders = []config.Loader{l.yaml}
		case filepath.Ext(path) == ".hcl":
			loaders = []config.Loader{l.hcl}
		default:
			return nil, fmt.Errorf("unsupported topology file %s: expected .hcl, .yaml or .yml", path)
		}

		for _, loader := range loaders {
			part, err := loader.Load(ctx, path)
			if errors.Is(err, config.ErrNoDocuments) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !found {
				topo.StageID = part.StageID
			}
			found = true
			topo.Merge(part)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w in %v", config.ErrNoDocuments, paths)
	}
	return topo, nil
}
