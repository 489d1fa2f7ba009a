// Package config defines the format-agnostic topology model consumed by the
// routing core, along with the Loader interface implemented by the concrete
// configuration formats.
//
// The `config.Topology` is the single source of truth for the `topology` and
// `manager` packages. Concrete loaders, such as for HCL or YAML, are provided
// in separate packages and only ever produce this model.
package config
