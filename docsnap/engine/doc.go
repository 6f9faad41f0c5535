// Package engine implements the snapshot reconstruction engine: given a
// document id and an optional target version, it materializes the document
// state at that version from the change log, seeded from the nearest cached
// snapshot when a snapshot store is configured.
//
// # Workflow
//
// GetSnapshot resolves the target version through the metadata store, then
// selects a reconstruction strategy:
//  1. Incremental (snapshot store configured, version > 0): load the closest
//     snapshot at or before the target, return it unchanged on an exact hit,
//     otherwise import it into a fresh instance and replay only the delta.
//  2. Full replay (no snapshot store, or version 0): replay the complete
//     history onto an empty instance.
//
// Both strategies export the resulting instance through the codec; the cache
// is observationally transparent.
//
// RequestSnapshot is the admission control for snapshot persistence: the
// commit workflow calls it once per committed change, and it only materializes
// and persists a snapshot when a snapshot store is configured and the
// committed version is a multiple of the configured frequency.
//
// # Usage
//
//	eng, err := engine.New(store, store, registry,
//		engine.WithSnapshotStore(store),
//		engine.WithSnapshotFrequency(10),
//	)
//	if err != nil {
//		return err
//	}
//
//	snap, err := eng.GetSnapshot(ctx, docID)            // latest version
//	snap, err = eng.GetSnapshotAt(ctx, docID, 20)       // specific version
//	err = eng.RequestSnapshot(ctx, docID, committedVer) // after each commit
//
// The engine is stateless beyond its construction-time configuration; calls
// may run concurrently for the same or different documents without engine
// level locking.
package engine
