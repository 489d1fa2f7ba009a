// This file translates decoded HCL blocks into the format-agnostic topology
// model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/gridrouter/internal/config"
	"github.com/vk/gridrouter/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

func (l *Loader) translate(ctx context.Context, root *fileRoot, evalCtx *hcl.EvalContext) (*config.Topology, error) {
	topo := &config.Topology{}
	if root.StageID != nil {
		id, err := uuid.Parse(*root.StageID)
		if err != nil {
			return nil, fmt.Errorf("invalid stage_id %q: %w", *root.StageID, err)
		}
		topo.StageID = id
	}
	if root.Version != nil {
		topo.Version = *root.Version
	}

	for _, mb := range root.Modules {
		md, err := l.translateModule(ctx, mb, evalCtx)
		if err != nil {
			return nil, err
		}
		topo.Modules = append(topo.Modules, md)
	}
	for _, rb := range root.Routes {
		rd, err := l.translateRoute(rb, evalCtx)
		if err != nil {
			return nil, err
		}
		topo.Routes = append(topo.Routes, rd)
	}
	return topo, nil
}

// translateModule converts the HCL module block into the agnostic descriptor.
func (l *Loader) translateModule(ctx context.Context, mb *ModuleBlock, evalCtx *hcl.EvalContext) (*config.ModuleDescriptor, error) {
	logger := ctxlog.FromContext(ctx).With("module", mb.Name, "type", mb.Type)
	logger.Debug("Translating HCL module block.")

	md := &config.ModuleDescriptor{
		ID:      uuid.New(),
		Name:    mb.Name,
		Type:    mb.Type,
		Address: config.Managed(),
	}
	if mb.Description != nil {
		md.Description = *mb.Description
	}
	if mb.ID != nil {
		id, err := uuid.Parse(*mb.ID)
		if err != nil {
			return nil, fmt.Errorf("module '%s': invalid id %q: %w", mb.Name, *mb.ID, err)
		}
		md.ID = id
	}
	if mb.AddressType != nil {
		addr, err := config.ParseAddressType(*mb.AddressType)
		if err != nil {
			return nil, fmt.Errorf("module '%s': %w", mb.Name, err)
		}
		md.Address = addr
	}

	if isExprDefined(ctx, mb.Settings, "module_settings") {
		val, diags := mb.Settings.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("module '%s': invalid module_settings: %w", mb.Name, diags)
		}
		settings, err := config.NewSettings(val)
		if err != nil {
			return nil, fmt.Errorf("module '%s': %w", mb.Name, err)
		}
		md.Settings = settings
	}
	return md, nil
}

// translateRoute converts the HCL route block into the agnostic descriptor.
func (l *Loader) translateRoute(rb *RouteBlock, evalCtx *hcl.EvalContext) (*config.RouteDescriptor, error) {
	from, err := cardinality(rb.From, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("route '%s': in 'from': %w", rb.Name, err)
	}
	to, err := cardinality(rb.To, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("route '%s': in 'to': %w", rb.Name, err)
	}
	rd := &config.RouteDescriptor{Name: rb.Name, From: from, To: to}
	if rb.Capacity != nil {
		rd.Capacity = *rb.Capacity
	}
	return rd, nil
}

// cardinality evaluates a route endpoint: a string is Single, a list or
// tuple of strings is Multiple.
func cardinality(expr hcl.Expression, evalCtx *hcl.EvalContext) (config.Cardinality, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return config.Cardinality{}, diags
	}
	if val.IsNull() || !val.IsKnown() {
		return config.Cardinality{}, fmt.Errorf("expected a module name or a list of module names")
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return config.Single(val.AsString()), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var names []string
		it := val.ElementIterator()
		for it.Next() {
			_, ev := it.Element()
			if ev.IsNull() || ev.Type() != cty.String {
				return config.Cardinality{}, fmt.Errorf("list elements must be module names, got %s", ev.Type().FriendlyName())
			}
			names = append(names, ev.AsString())
		}
		return config.Multiple(names...), nil
	}
	return config.Cardinality{}, fmt.Errorf("expected a module name or a list of module names, got %s", ty.FriendlyName())
}
