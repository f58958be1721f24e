// Package translator converts the stack-based VM language into Hack
// assembly.
//
// Pipeline: VM source (per unit) → Parse → Merge (unit order) → Generate → Render
//
// Parsing is pure and may run concurrently; generation is a single pass over
// the merged program through one Context.
package translator
