// Package helper provides small shared helpers for arranging test data.
package helper

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// GivenUniqueID returns a fresh time-ordered document id.
func GivenUniqueID(t testing.TB) string {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id.String()
}

// GivenOperation builds an operation, failing the test on builder errors.
func GivenOperation(t testing.TB, opType string, payloadJSON string) docsnap.Operation {
	op, err := docsnap.BuildOperation(opType, []byte(payloadJSON))
	assert.NoError(t, err, "error in arranging test data")

	return op
}

// GivenChange builds a single-operation change, failing the test on builder errors.
func GivenChange(t testing.TB, documentID string, version docsnap.Version, op docsnap.Operation) docsnap.Change {
	change, err := docsnap.BuildChange(documentID, version, time.Now(), op)
	assert.NoError(t, err, "error in arranging test data")

	return change
}

// GivenSnapshot builds a snapshot, failing the test on builder errors.
func GivenSnapshot(t testing.TB, documentID string, version docsnap.Version, dataJSON string) docsnap.Snapshot {
	snapshot, err := docsnap.BuildSnapshot(documentID, version, []byte(dataJSON))
	assert.NoError(t, err, "error in arranging test data")

	return snapshot
}
