// Package app contains the core application logic. It wires the scanner, the
// build gate and the scheduler for one run, decoupled from any specific
// entrypoint like a CLI.
package app
