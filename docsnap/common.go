package docsnap

import (
	"errors"
)

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyChangesTableName = errors.New("empty changesTableName supplied")
var ErrEmptySnapshotsTableName = errors.New("empty snapshotsTableName supplied")
var ErrEmptyDocumentsTableName = errors.New("empty documentsTableName supplied")
var ErrVersionConflict = errors.New("version conflict, no rows were affected")

// Shared storage failure sentinels, joined with the driver cause by the
// engine implementations.
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingChangesFailed = errors.New("querying changes failed")
var ErrQueryingDocumentFailed = errors.New("querying document record failed")
var ErrSavingDocumentFailed = errors.New("saving document record failed")
var ErrAppendingChangeFailed = errors.New("appending change failed")
var ErrScanningDBRowFailed = errors.New("scanning database row failed")
var ErrBuildingChangeFailed = errors.New("building change from database row failed")
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected count failed")

// Version is the position of a change within one document's history.
// Version 0 denotes the empty document state with no changes applied.
// Versions are strictly increasing per document and never reused.
type Version = uint

// ToLatest is the sentinel for an open-ended version range query, meaning
// "through the latest committed version". Version 0 can never bound a
// non-empty range, so the zero value is unambiguous here.
const ToLatest Version = 0
