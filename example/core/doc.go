// Package core holds the example "note" document schema: a pure, storage-free
// document instance that knows how to apply its own operations. It exercises
// the registry, the applicator and the codec without any I/O.
package core
