package docsnap

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaNotFound is returned when a document instance is requested for
	// a schema name that no registered schema matches. This is a mismatched
	// configuration between what created the document and what is now asked
	// to reconstruct it, and is fatal for the current reconstruction attempt.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrNilSchema is returned when a nil schema is registered.
	ErrNilSchema = errors.New("schema must not be nil")

	// ErrEmptySchemaName is returned when a schema with an empty name is registered.
	ErrEmptySchemaName = errors.New("schema name must not be empty")
)

// DocumentInstance is a live, mutable, in-memory document. Instances are
// owned exclusively by the single reconstruction call that created them and
// are discarded after export; they are never shared across concurrent calls.
type DocumentInstance interface {
	// Apply mutates the instance's internal state with one operation.
	// Implementations do not recover from inapplicable operations; their
	// failure propagates unmodified.
	Apply(op Operation) error
}

// Schema constructs empty, mutable document instances of one document type.
type Schema interface {
	// Name returns the stable schema identifier stored in DocumentRecord.
	Name() string

	// NewInstance returns a fresh, empty document instance at version 0.
	NewInstance() DocumentInstance
}

// SchemaRegistry resolves schema names to registered schemas. It acts as the
// document factory during reconstruction: the engine asks it for an empty
// instance of the schema named in the document's metadata record.
//
// A registry is populated at construction time and read-only afterwards, so
// it is safe for concurrent use without locking.
type SchemaRegistry struct {
	schemas map[string]Schema
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]Schema)}
}

// Register adds one or multiple schemas, keyed by their names, and returns
// the registry for chaining. Registering a nil schema or an empty name panics:
// that is a wiring bug in the deployment, not a runtime condition.
func (r *SchemaRegistry) Register(schema Schema, additionalSchemas ...Schema) *SchemaRegistry {
	allSchemas := []Schema{schema}
	allSchemas = append(allSchemas, additionalSchemas...)

	for _, s := range allSchemas {
		if s == nil {
			panic(ErrNilSchema)
		}

		if s.Name() == "" {
			panic(ErrEmptySchemaName)
		}

		r.schemas[s.Name()] = s
	}

	return r
}

// NewInstance constructs an empty document instance for the given schema name.
//
// Returns an error joining ErrSchemaNotFound and the requested name if no
// registered schema matches.
func (r *SchemaRegistry) NewInstance(schemaName string) (DocumentInstance, error) {
	schema, ok := r.schemas[schemaName]
	if !ok {
		return nil, errors.Join(ErrSchemaNotFound, fmt.Errorf("no schema registered for name %q", schemaName))
	}

	return schema.NewInstance(), nil
}
