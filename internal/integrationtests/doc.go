// Package integrationtests drives complete runs against a scripted stand-in
// for the real executable.
package integrationtests
