// Package doubles provides hand-written in-memory test doubles for the engine
// collaborators. The store doubles count their calls, so tests can prove not
// only what a reconstruction returned but which collaborators it touched.
package doubles
