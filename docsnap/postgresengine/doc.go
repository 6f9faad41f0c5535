// Package postgresengine implements document metadata, change log, and
// snapshot storage on PostgreSQL.
//
// The Store satisfies the engine package's MetadataStore, ChangeLog and
// SnapshotStore interfaces, so a single Store instance can back a complete
// reconstruction engine. It supports multiple database libraries (pgx, sql.DB,
// sqlx) through internal adapters and keeps SQL building in goqu.
//
// Appends are guarded by optimistic concurrency without advisory locks or
// serializable transactions: a CTE reads the document's current maximum change
// version and the insert only takes effect while that maximum still equals the
// caller's expected version. A lost race surfaces as
// docsnap.ErrVersionConflict.
//
// Expected schema (table names are configurable via options):
//
//	CREATE TABLE documents (
//	    document_id TEXT PRIMARY KEY,
//	    schema_name TEXT NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE document_changes (
//	    document_id TEXT NOT NULL REFERENCES documents (document_id),
//	    version     BIGINT NOT NULL CHECK (version > 0),
//	    ops         JSONB NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (document_id, version)
//	);
//
//	CREATE TABLE document_snapshots (
//	    document_id TEXT NOT NULL,
//	    version     BIGINT NOT NULL,
//	    data        JSONB NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (document_id, version)
//	);
package postgresengine
