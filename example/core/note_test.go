package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
	"github.com/docsnapkit/document-snapshots-go/example/core"
)

func Test_Note_Apply_SetTitle(t *testing.T) {
	// arrange
	note := givenEmptyNote()

	// act
	applyErr := note.Apply(givenSetTitleOp(t, "Shopping"))

	// assert
	assert.NoError(t, applyErr)
	assert.Equal(t, "Shopping", note.Title)
}

func Test_Note_Apply_InsertLine(t *testing.T) {
	// arrange
	note := givenEmptyNote()

	// act
	assert.NoError(t, note.Apply(givenInsertLineOp(t, 0, "milk")))
	assert.NoError(t, note.Apply(givenInsertLineOp(t, 1, "bread")))
	assert.NoError(t, note.Apply(givenInsertLineOp(t, 1, "eggs")))

	// assert
	assert.Equal(t, []string{"milk", "eggs", "bread"}, note.Lines)
}

func Test_Note_Apply_InsertLine_AtTheEndAppends(t *testing.T) {
	// arrange
	note := givenEmptyNote()
	assert.NoError(t, note.Apply(givenInsertLineOp(t, 0, "milk")))

	// act
	applyErr := note.Apply(givenInsertLineOp(t, len(note.Lines), "bread"))

	// assert
	assert.NoError(t, applyErr)
	assert.Equal(t, []string{"milk", "bread"}, note.Lines)
}

func Test_Note_Apply_DeleteLine(t *testing.T) {
	// arrange
	note := givenEmptyNote()
	assert.NoError(t, note.Apply(givenInsertLineOp(t, 0, "milk")))
	assert.NoError(t, note.Apply(givenInsertLineOp(t, 1, "bread")))

	// act
	op, err := core.BuildDeleteLineOp(0)
	assert.NoError(t, err)
	applyErr := note.Apply(op)

	// assert
	assert.NoError(t, applyErr)
	assert.Equal(t, []string{"bread"}, note.Lines)
}

func Test_Note_Apply_IfLineIndexIsOutOfRange(t *testing.T) {
	// arrange
	note := givenEmptyNote()

	deleteOp, err := core.BuildDeleteLineOp(0)
	assert.NoError(t, err)

	testCases := []struct {
		name string
		op   docsnap.Operation
	}{
		{"insert beyond the end", givenInsertLineOp(t, 1, "milk")},
		{"insert at a negative index", givenInsertLineOp(t, -1, "milk")},
		{"delete from an empty note", deleteOp},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			applyErr := note.Apply(tc.op)

			// assert
			assert.ErrorIs(t, applyErr, core.ErrLineIndexOutOfRange)
		})
	}
}

func Test_Note_Apply_IfOpTypeIsUnknown(t *testing.T) {
	// arrange
	note := givenEmptyNote()
	op, err := docsnap.BuildOperation("rotate_page", []byte(`{}`))
	assert.NoError(t, err, "error in arranging test data")

	// act
	applyErr := note.Apply(op)

	// assert
	assert.ErrorIs(t, applyErr, core.ErrUnknownOpType)
	assert.ErrorContains(t, applyErr, "rotate_page", "the error must name the unknown type")
}

func Test_Note_SnapshotRoundTripIsLossless(t *testing.T) {
	// arrange
	codec := docsnap.NewJSONCodec()

	note := givenEmptyNote()
	assert.NoError(t, note.Apply(givenSetTitleOp(t, "Shopping")))
	assert.NoError(t, note.Apply(givenInsertLineOp(t, 0, "milk")))

	// act
	data, exportErr := codec.ExportDocument(note)
	assert.NoError(t, exportErr)

	restored := core.NoteSchema{}.NewInstance()
	importErr := codec.ImportDocument(restored, data)

	// assert
	assert.NoError(t, importErr)
	assert.Equal(t, note, restored)
}

func givenEmptyNote() *core.Note {
	return core.NoteSchema{}.NewInstance().(*core.Note)
}

func givenSetTitleOp(t *testing.T, title string) docsnap.Operation {
	op, err := core.BuildSetTitleOp(title)
	assert.NoError(t, err, "error in arranging test data")

	return op
}

func givenInsertLineOp(t *testing.T, index int, text string) docsnap.Operation {
	op, err := core.BuildInsertLineOp(index, text)
	assert.NoError(t, err, "error in arranging test data")

	return op
}
