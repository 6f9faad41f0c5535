package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
	"github.com/docsnapkit/document-snapshots-go/docsnap/engine"
	"github.com/docsnapkit/document-snapshots-go/testutil/helper"
)

func Test_ApplyChanges_AppliesOperationsInOrder(t *testing.T) {
	// arrange
	instance := &tally{}
	changes := docsnap.Changes{
		helper.GivenChange(t, "doc-1", 1, givenAddOp(t, 1)),
		helper.GivenChange(t, "doc-1", 2, givenAddOp(t, 2)),
		helper.GivenChange(t, "doc-1", 3, givenAddOp(t, 4)),
	}

	// act
	applyErr := engine.ApplyChanges(instance, changes)

	// assert
	assert.NoError(t, applyErr)
	assert.Equal(t, 7, instance.Count)
}

func Test_ApplyChanges_AppliesAllOperationsOfOneChange(t *testing.T) {
	// arrange
	instance := &tally{}
	change, err := docsnap.BuildChange(
		"doc-1", 1, time.Now(),
		givenAddOp(t, 1), givenAddOp(t, 2), givenAddOp(t, 3))
	assert.NoError(t, err)

	// act
	applyErr := engine.ApplyChanges(instance, docsnap.Changes{change})

	// assert
	assert.NoError(t, applyErr)
	assert.Equal(t, 6, instance.Count)
}

func Test_ApplyChanges_StopsOnTheFirstFailingOperation(t *testing.T) {
	// arrange
	instance := &tally{}
	changes := docsnap.Changes{
		helper.GivenChange(t, "doc-1", 1, givenAddOp(t, 1)),
		helper.GivenChange(t, "doc-1", 2, helper.GivenOperation(t, "boom", `{}`)),
		helper.GivenChange(t, "doc-1", 3, givenAddOp(t, 4)),
	}

	// act
	applyErr := engine.ApplyChanges(instance, changes)

	// assert
	assert.ErrorIs(t, applyErr, errApplyBoom)
	assert.Equal(t, 1, instance.Count, "changes after the failure must not be applied")
}

func Test_ApplyChanges_WithNoChanges_IsANoOp(t *testing.T) {
	// arrange
	instance := &tally{Count: 42}

	// act
	applyErr := engine.ApplyChanges(instance, docsnap.Changes{})

	// assert
	assert.NoError(t, applyErr)
	assert.Equal(t, 42, instance.Count)
}
