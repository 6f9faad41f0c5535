package docsnap

import (
	"encoding/json"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrInvalidSnapshotJSON is returned when snapshot data is malformed or invalid JSON.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")

	// ErrSavingSnapshotFailed is returned when the snapshot save operation fails.
	ErrSavingSnapshotFailed = errors.New("saving snapshot failed")

	// ErrLoadingSnapshotFailed is returned when the snapshot load operation fails.
	ErrLoadingSnapshotFailed = errors.New("loading snapshot failed")

	// ErrDeletingSnapshotFailed is returned when the snapshot delete operation fails.
	ErrDeletingSnapshotFailed = errors.New("deleting snapshot failed")
)

// Snapshot is a cached, fully materialized document export at a specific
// version. It is a derived artifact: always reconstructible from the change
// log alone, never a source of truth, and immutable once stored.
type Snapshot struct {
	DocumentID string          // The document this snapshot belongs to
	Version    Version         // Version of the last change reflected in Data
	Data       json.RawMessage // Codec export of the materialized document
	CreatedAt  time.Time       // When this snapshot was created
}

// Validate ensures the snapshot has valid data for storage operations.
func (s Snapshot) Validate() error {
	if s.DocumentID == "" {
		return ErrEmptyDocumentID
	}

	if !jsoniter.ConfigFastest.Valid(s.Data) {
		return ErrInvalidSnapshotJSON
	}

	return nil
}

// BuildSnapshot creates a new Snapshot with validation.
func BuildSnapshot(
	documentID string,
	version Version,
	data json.RawMessage,
) (Snapshot, error) {
	snapshot := Snapshot{
		DocumentID: documentID,
		Version:    version,
		Data:       data,
		CreatedAt:  time.Now(),
	}

	if err := snapshot.Validate(); err != nil {
		return Snapshot{}, err
	}

	return snapshot, nil
}
