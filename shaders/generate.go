// Package shaders holds the GLSL sources for the triangle. Run go generate to
// rebuild the SPIR-V the presenter loads at startup.
package shaders

//go:generate ./compile.sh
