package engine

import (
	"context"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// MetadataStore reads the per-document metadata record holding the schema
// name and the current (latest) committed version.
type MetadataStore interface {
	// GetDocument fails with docsnap.ErrDocumentNotFound if the document id
	// is unknown.
	GetDocument(ctx context.Context, documentID string) (docsnap.DocumentRecord, error)
}

// ChangeLog is the append-only, per-document, version-ordered store of
// committed changes.
type ChangeLog interface {
	// GetChanges returns all changes for the document with version in
	// (sinceVersion, toVersion], ordered by ascending version.
	// docsnap.ToLatest as toVersion means "through the latest version".
	// The result must be a consistent, gap-free view of committed changes at
	// the time of the call.
	GetChanges(ctx context.Context, documentID string, sinceVersion, toVersion docsnap.Version) (docsnap.Changes, error)
}

// SnapshotStore persists and retrieves materialized snapshots keyed by
// (documentID, version).
type SnapshotStore interface {
	// LoadSnapshot returns the snapshot at exactly the given version, or -
	// with findClosest - the one with the highest version at or before it.
	// Absence is a valid, non-error result: (nil, nil).
	LoadSnapshot(ctx context.Context, documentID string, version docsnap.Version, findClosest bool) (*docsnap.Snapshot, error)

	// SaveSnapshot persists the snapshot, idempotent for equivalent payloads.
	// Concurrent saves for the same (documentID, version) may race; last
	// write wins, which is harmless since equivalent-by-invariant payloads
	// are required for the same key.
	SaveSnapshot(ctx context.Context, snapshot docsnap.Snapshot) error
}
