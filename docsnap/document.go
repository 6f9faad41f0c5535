package docsnap

import (
	"errors"
)

// ErrDocumentNotFound is returned by metadata stores when no record exists
// for the requested document id.
var ErrDocumentNotFound = errors.New("document not found")

// ErrDocumentAlreadyExists is returned when registering a document id that
// already has a metadata record.
var ErrDocumentAlreadyExists = errors.New("document already exists")

// DocumentRecord is the metadata pointer describing a document's current
// state: which schema created it and the latest committed version. Stores
// derive Version from the change log, so it can never lag behind or run
// ahead of the committed changes.
type DocumentRecord struct {
	DocumentID string
	SchemaName string
	Version    Version
}
