package docsnap

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrEmptyDocumentID = errors.New("documentID must not be empty")
var ErrZeroChangeVersion = errors.New("change version must be greater than zero")
var ErrEmptyOperations = errors.New("change must contain at least one operation")
var ErrEmptyOpType = errors.New("operation type must not be empty")
var ErrInvalidOperationJSON = errors.New("operation payload json is not valid")

// Changes is an alias type for a slice of Change.
type Changes = []Change

// Operation is an atomic, schema-aware mutation instruction within a Change.
// The engine treats it as opaque; only the document instance of the matching
// schema knows how to apply it.
//
// While its properties are exported, it should only be constructed with the
// supplied factory method BuildOperation.
type Operation struct {
	OpType      string
	PayloadJSON []byte
}

// BuildOperation is a factory method for Operation.
//
// Returns an error if opType is empty or payloadJSON is not valid JSON.
func BuildOperation(opType string, payloadJSON []byte) (Operation, error) {
	if opType == "" {
		return Operation{}, ErrEmptyOpType
	}

	if !json.Valid(payloadJSON) {
		return Operation{}, ErrInvalidOperationJSON
	}

	return Operation{
		OpType:      opType,
		PayloadJSON: payloadJSON,
	}, nil
}

// Change is an immutable record of one committed mutation of one document.
// It occupies exactly one version slot and is never mutated or deleted after
// creation (append-only invariant).
//
// While its properties are exported, it should only be constructed with the
// supplied factory method BuildChange.
type Change struct {
	DocumentID string
	Version    Version
	Ops        []Operation
	RecordedAt time.Time
}

// BuildChange is a factory method for Change.
//
// Returns an error if documentID is empty, version is zero, or no operations
// are supplied. The operations keep the order they are given in; that order
// is the order they will be applied in during reconstruction.
func BuildChange(documentID string, version Version, recordedAt time.Time, op Operation, additionalOps ...Operation) (Change, error) {
	if documentID == "" {
		return Change{}, ErrEmptyDocumentID
	}

	if version == 0 {
		return Change{}, ErrZeroChangeVersion
	}

	allOps := []Operation{op}
	allOps = append(allOps, additionalOps...)

	return Change{
		DocumentID: documentID,
		Version:    version,
		Ops:        allOps,
		RecordedAt: recordedAt,
	}, nil
}
