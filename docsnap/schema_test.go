package docsnap_test

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

type counterInstance struct {
	Count int `json:"count"`
}

func (c *counterInstance) Apply(op docsnap.Operation) error {
	var payload struct {
		N int `json:"n"`
	}
	if err := jsoniter.ConfigFastest.Unmarshal(op.PayloadJSON, &payload); err != nil {
		return err
	}

	c.Count += payload.N

	return nil
}

type counterSchema struct{}

func (counterSchema) Name() string                          { return "counter" }
func (counterSchema) NewInstance() docsnap.DocumentInstance { return &counterInstance{} }

type namedSchema struct{ name string }

func (s namedSchema) Name() string                          { return s.name }
func (s namedSchema) NewInstance() docsnap.DocumentInstance { return &counterInstance{} }

func Test_SchemaRegistry_NewInstance(t *testing.T) {
	// arrange
	registry := docsnap.NewSchemaRegistry().Register(counterSchema{})

	// act
	instance, err := registry.NewInstance("counter")

	// assert
	assert.NoError(t, err)
	assert.IsType(t, &counterInstance{}, instance)
}

func Test_SchemaRegistry_NewInstance_ReturnsIndependentInstances(t *testing.T) {
	// arrange
	registry := docsnap.NewSchemaRegistry().Register(counterSchema{})

	first, err := registry.NewInstance("counter")
	assert.NoError(t, err)
	second, err := registry.NewInstance("counter")
	assert.NoError(t, err)

	// act
	first.(*counterInstance).Count = 99

	// assert
	assert.Equal(t, 0, second.(*counterInstance).Count, "instances must not share state")
}

func Test_SchemaRegistry_Register_AcceptsMultipleSchemas(t *testing.T) {
	// arrange
	registry := docsnap.NewSchemaRegistry().
		Register(namedSchema{name: "note"}, namedSchema{name: "order"})

	// act
	noteInstance, noteErr := registry.NewInstance("note")
	orderInstance, orderErr := registry.NewInstance("order")

	// assert
	assert.NoError(t, noteErr)
	assert.NotNil(t, noteInstance)
	assert.NoError(t, orderErr)
	assert.NotNil(t, orderInstance)
}

func Test_SchemaRegistry_NewInstance_IfSchemaIsNotRegistered(t *testing.T) {
	// arrange
	registry := docsnap.NewSchemaRegistry().Register(counterSchema{})

	// act
	_, err := registry.NewInstance("unknown")

	// assert
	assert.ErrorIs(t, err, docsnap.ErrSchemaNotFound)
	assert.ErrorContains(t, err, `"unknown"`, "the error must name the missing schema")
}

func Test_SchemaRegistry_Register_IfSchemaIsNil_Panics(t *testing.T) {
	// arrange
	registry := docsnap.NewSchemaRegistry()

	// act + assert
	assert.PanicsWithValue(t, docsnap.ErrNilSchema, func() {
		registry.Register(nil)
	})
}

func Test_SchemaRegistry_Register_IfSchemaNameIsEmpty_Panics(t *testing.T) {
	// arrange
	registry := docsnap.NewSchemaRegistry()

	// act + assert
	assert.PanicsWithValue(t, docsnap.ErrEmptySchemaName, func() {
		registry.Register(namedSchema{name: ""})
	})
}
