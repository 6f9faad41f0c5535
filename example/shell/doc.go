// Package shell wires the example note application to storage and the
// reconstruction engine. It owns the change-commit workflow: building changes
// from operations, appending them with optimistic concurrency, and requesting
// snapshots for freshly committed versions.
package shell
