// Package config defines the run configuration of drawqueue and loads it from
// an optional HCL file.
//
// Values are layered: Default supplies the original project layout, a file
// read by Load overrides it, and the CLI applies explicitly set flags last.
// Relative paths stay relative until Resolved against the project root, so
// nothing depends on the process working directory.
package config
