package docsnap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

func Test_BuildSnapshot(t *testing.T) {
	// act
	snapshot, err := docsnap.BuildSnapshot("doc-1", 3, []byte(`{"title":"Notes","lines":[]}`))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "doc-1", snapshot.DocumentID)
	assert.Equal(t, docsnap.Version(3), snapshot.Version)
	assert.JSONEq(t, `{"title":"Notes","lines":[]}`, string(snapshot.Data))
	assert.False(t, snapshot.CreatedAt.IsZero())
}

func Test_BuildSnapshot_IfDocumentIDIsEmpty(t *testing.T) {
	// act
	_, err := docsnap.BuildSnapshot("", 3, []byte(`{}`))

	// assert
	assert.ErrorIs(t, err, docsnap.ErrEmptyDocumentID)
}

func Test_BuildSnapshot_IfDataIsNotValidJSON(t *testing.T) {
	// act
	_, err := docsnap.BuildSnapshot("doc-1", 3, []byte(`{"title":`))

	// assert
	assert.ErrorIs(t, err, docsnap.ErrInvalidSnapshotJSON)
}

func Test_Snapshot_Validate_AcceptsAnyValidJSONDocument(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"object", `{"count":1}`},
		{"array", `[1,2,3]`},
		{"scalar", `42`},
		{"null", `null`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			snapshot := docsnap.Snapshot{DocumentID: "doc-1", Version: 1, Data: []byte(tc.data)}

			// act + assert
			assert.NoError(t, snapshot.Validate())
		})
	}
}
