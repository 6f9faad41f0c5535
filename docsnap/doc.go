// Package docsnap provides core abstractions and types for reconstructing
// versioned document snapshots from an append-only change log.
//
// A document's full mutation history lives in a change log as ordered,
// immutable Change records, one per version. This package defines the
// fundamental value types and contracts shared by all engine and store
// implementations:
//   - Change / Operation: one committed mutation and its atomic instructions
//   - Snapshot: a cached, fully materialized document export at a version
//   - DocumentRecord: a document's schema name and current version pointer
//   - Schema / SchemaRegistry / DocumentInstance: the document factory
//   - Codec: lossless import/export between live instances and snapshot data
//
// The reconstruction engine itself lives in the engine subpackage; storage
// backends live in postgresengine and sqliteengine.
//
// Common usage pattern:
//
//	registry := docsnap.NewSchemaRegistry().Register(noteSchema)
//
//	op, _ := docsnap.BuildOperation("set_title", []byte(`{"title":"groceries"}`))
//	change, _ := docsnap.BuildChange(docID, 1, time.Now(), op)
//
//	err := store.AppendChange(ctx, change, 0)
//	if err != nil {
//		// handle version conflict or storage failure
//	}
package docsnap
