package docsnap_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

func Test_BuildOperation(t *testing.T) {
	// act
	op, err := docsnap.BuildOperation("set_title", []byte(`{"title":"Notes"}`))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "set_title", op.OpType)
	assert.JSONEq(t, `{"title":"Notes"}`, string(op.PayloadJSON))
}

func Test_BuildOperation_IfOpTypeIsEmpty(t *testing.T) {
	// act
	_, err := docsnap.BuildOperation("", []byte(`{}`))

	// assert
	assert.ErrorIs(t, err, docsnap.ErrEmptyOpType)
}

func Test_BuildOperation_IfPayloadIsNotValidJSON(t *testing.T) {
	// act
	_, err := docsnap.BuildOperation("set_title", []byte(`{"title":`))

	// assert
	assert.ErrorIs(t, err, docsnap.ErrInvalidOperationJSON)
}

func Test_BuildChange(t *testing.T) {
	// arrange
	recordedAt := time.Now()
	first := givenOperation(t, "set_title", `{"title":"Notes"}`)
	second := givenOperation(t, "insert_line", `{"index":0,"text":"first"}`)

	// act
	change, err := docsnap.BuildChange("doc-1", 1, recordedAt, first, second)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "doc-1", change.DocumentID)
	assert.Equal(t, docsnap.Version(1), change.Version)
	assert.Equal(t, recordedAt, change.RecordedAt)
	assert.Equal(t, []docsnap.Operation{first, second}, change.Ops, "operations must keep their given order")
}

func Test_BuildChange_IfDocumentIDIsEmpty(t *testing.T) {
	// act
	_, err := docsnap.BuildChange("", 1, time.Now(), givenOperation(t, "set_title", `{}`))

	// assert
	assert.ErrorIs(t, err, docsnap.ErrEmptyDocumentID)
}

func Test_BuildChange_IfVersionIsZero(t *testing.T) {
	// act
	_, err := docsnap.BuildChange("doc-1", 0, time.Now(), givenOperation(t, "set_title", `{}`))

	// assert
	assert.ErrorIs(t, err, docsnap.ErrZeroChangeVersion)
}

func givenOperation(t *testing.T, opType string, payloadJSON string) docsnap.Operation {
	op, err := docsnap.BuildOperation(opType, []byte(payloadJSON))
	assert.NoError(t, err, "error in arranging test data")

	return op
}
