package core

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// NoteSchemaName is the schema name identifier for note documents.
const NoteSchemaName = "note"

// Operation type identifiers for note documents.
const (
	SetTitleOpType   = "set_title"
	InsertLineOpType = "insert_line"
	DeleteLineOpType = "delete_line"
)

var (
	// ErrUnknownOpType is returned when a note is asked to apply an
	// operation type it does not know.
	ErrUnknownOpType = errors.New("unknown operation type for note schema")

	// ErrLineIndexOutOfRange is returned when an operation addresses a line
	// that does not exist.
	ErrLineIndexOutOfRange = errors.New("line index out of range")
)

var marshaler = jsoniter.ConfigFastest

// NoteSchema implements docsnap.Schema for note documents.
type NoteSchema struct{}

// Name returns the schema name identifier.
func (NoteSchema) Name() string {
	return NoteSchemaName
}

// NewInstance returns a fresh, empty note.
func (NoteSchema) NewInstance() docsnap.DocumentInstance {
	return &Note{Lines: []string{}}
}

var _ docsnap.Schema = NoteSchema{}

// Note is a titled list of text lines. Its exported fields define the codec
// export shape, so a snapshot of a note is just this struct as JSON.
type Note struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

type setTitlePayload struct {
	Title string `json:"title"`
}

type insertLinePayload struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type deleteLinePayload struct {
	Index int `json:"index"`
}

// Apply mutates the note according to one operation. Unknown operation types
// and out-of-range line indexes fail; reconstruction stops on the first
// failing operation.
func (n *Note) Apply(op docsnap.Operation) error {
	switch op.OpType {
	case SetTitleOpType:
		return n.applySetTitle(op.PayloadJSON)

	case InsertLineOpType:
		return n.applyInsertLine(op.PayloadJSON)

	case DeleteLineOpType:
		return n.applyDeleteLine(op.PayloadJSON)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOpType, op.OpType)
	}
}

var _ docsnap.DocumentInstance = (*Note)(nil)

func (n *Note) applySetTitle(payloadJSON []byte) error {
	var payload setTitlePayload
	if err := marshaler.Unmarshal(payloadJSON, &payload); err != nil {
		return err
	}

	n.Title = payload.Title

	return nil
}

func (n *Note) applyInsertLine(payloadJSON []byte) error {
	var payload insertLinePayload
	if err := marshaler.Unmarshal(payloadJSON, &payload); err != nil {
		return err
	}

	// Inserting at len(Lines) appends.
	if payload.Index < 0 || payload.Index > len(n.Lines) {
		return fmt.Errorf("%w: %d", ErrLineIndexOutOfRange, payload.Index)
	}

	n.Lines = append(n.Lines, "")
	copy(n.Lines[payload.Index+1:], n.Lines[payload.Index:])
	n.Lines[payload.Index] = payload.Text

	return nil
}

func (n *Note) applyDeleteLine(payloadJSON []byte) error {
	var payload deleteLinePayload
	if err := marshaler.Unmarshal(payloadJSON, &payload); err != nil {
		return err
	}

	if payload.Index < 0 || payload.Index >= len(n.Lines) {
		return fmt.Errorf("%w: %d", ErrLineIndexOutOfRange, payload.Index)
	}

	n.Lines = append(n.Lines[:payload.Index], n.Lines[payload.Index+1:]...)

	return nil
}

// BuildSetTitleOp creates a set_title operation.
func BuildSetTitleOp(title string) (docsnap.Operation, error) {
	payload, err := marshaler.Marshal(setTitlePayload{Title: title})
	if err != nil {
		return docsnap.Operation{}, err
	}

	return docsnap.BuildOperation(SetTitleOpType, payload)
}

// BuildInsertLineOp creates an insert_line operation. Index len(lines) appends.
func BuildInsertLineOp(index int, text string) (docsnap.Operation, error) {
	payload, err := marshaler.Marshal(insertLinePayload{Index: index, Text: text})
	if err != nil {
		return docsnap.Operation{}, err
	}

	return docsnap.BuildOperation(InsertLineOpType, payload)
}

// BuildDeleteLineOp creates a delete_line operation.
func BuildDeleteLineOp(index int) (docsnap.Operation, error) {
	payload, err := marshaler.Marshal(deleteLinePayload{Index: index})
	if err != nil {
		return docsnap.Operation{}, err
	}

	return docsnap.BuildOperation(DeleteLineOpType, payload)
}
