// Package registry maps the module type tags used in topology documents to
// the Go factories that construct them.
//
// The table is built explicitly: each module package exposes a value with a
// Register method, and the application lists those values in one place. No
// registration happens as a side effect of importing a package.
package registry
