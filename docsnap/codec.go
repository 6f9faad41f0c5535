package docsnap

import (
	"encoding/json"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrImportingDocumentFailed is returned when snapshot data cannot be
	// imported into a document instance.
	ErrImportingDocumentFailed = errors.New("importing document failed")

	// ErrExportingDocumentFailed is returned when a document instance cannot
	// be exported to snapshot data.
	ErrExportingDocumentFailed = errors.New("exporting document failed")
)

// Codec converts between a live document instance and its persisted snapshot
// representation. The round trip must be lossless: importing an export of an
// instance yields a state that re-exports identically.
type Codec interface {
	// ImportDocument populates the instance's state from snapshot data.
	ImportDocument(instance DocumentInstance, data json.RawMessage) error

	// ExportDocument serializes the instance's current state to snapshot data.
	ExportDocument(instance DocumentInstance) (json.RawMessage, error)
}

// JSONCodec is the default Codec. It (un)marshals document instances as JSON,
// which is lossless for any instance whose state is fully described by its
// exported fields.
type JSONCodec struct{}

// NewJSONCodec creates the default JSON codec.
func NewJSONCodec() JSONCodec {
	return JSONCodec{}
}

// ImportDocument populates the instance from its JSON export.
func (c JSONCodec) ImportDocument(instance DocumentInstance, data json.RawMessage) error {
	if err := jsoniter.ConfigFastest.Unmarshal(data, instance); err != nil {
		return errors.Join(ErrImportingDocumentFailed, err)
	}

	return nil
}

// ExportDocument serializes the instance to JSON.
func (c JSONCodec) ExportDocument(instance DocumentInstance) (json.RawMessage, error) {
	data, err := jsoniter.ConfigFastest.Marshal(instance)
	if err != nil {
		return nil, errors.Join(ErrExportingDocumentFailed, err)
	}

	return data, nil
}
