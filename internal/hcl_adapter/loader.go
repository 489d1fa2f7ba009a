package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/vk/gridrouter/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL topology loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found under paths and merges them into one
// topology. Module and route blocks keep their file order, so repeated names
// survive to be reported by the manager.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Topology, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := fsutil.FindFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("%w: no .hcl files in %v", config.ErrNoDocuments, paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	evalCtx := evalContext()
	topo := config.NewTopology()
	explicitID := false

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		part, err := l.decodeBody(ctx, hclFile.Body, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
		topo.Merge(part)
		if part.StageID != uuid.Nil && !explicitID {
			topo.StageID = part.StageID
			explicitID = true
		}
	}

	logger.Debug("HCL loading complete.", "modules", len(topo.Modules), "routes", len(topo.Routes))
	return topo, nil
}

// LoadBytes decodes a single in-memory HCL document. filename is used only
// in diagnostics.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Topology, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	topo, err := l.decodeBody(ctx, hclFile.Body, evalContext())
	if err != nil {
		return nil, fmt.Errorf("failed to decode HCL %s: %w", filename, err)
	}
	if topo.StageID == uuid.Nil {
		topo.StageID = uuid.New()
	}
	return topo, nil
}

func (l *Loader) decodeBody(ctx context.Context, body hcl.Body, evalCtx *hcl.EvalContext) (*config.Topology, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalCtx, &root); diags.HasErrors() {
		return nil, diags
	}
	return l.translate(ctx, &root, evalCtx)
}
