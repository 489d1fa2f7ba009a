package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode every top-level construct a topology file may
// contain.
type fileRoot struct {
	StageID *string        `hcl:"stage_id,optional"`
	Version *string        `hcl:"version,optional"`
	Modules []*ModuleBlock `hcl:"module,block"`
	Routes  []*RouteBlock  `hcl:"route,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

// ModuleBlock is the HCL shape of a `module "<name>" { ... }` block.
type ModuleBlock struct {
	Name        string         `hcl:"name,label"`
	Type        string         `hcl:"module"`
	Description *string        `hcl:"description,optional"`
	AddressType *string        `hcl:"address_type,optional"`
	ID          *string        `hcl:"id,optional"`
	Settings    hcl.Expression `hcl:"module_settings,optional"`
}

// RouteBlock is the HCL shape of a `route "<name>" { ... }` block. From and To
// accept either a string or a list of strings.
type RouteBlock struct {
	Name     string         `hcl:"name,label"`
	From     hcl.Expression `hcl:"from"`
	To       hcl.Expression `hcl:"to"`
	Capacity *int           `hcl:"capacity,optional"`
}
