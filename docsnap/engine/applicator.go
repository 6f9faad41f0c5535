package engine

import (
	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// ApplyChanges replays the given changes onto the document instance: for each
// change in the given order, each operation within the change is applied in
// the order it was recorded.
//
// There is no error recovery at this layer. If an operation is inapplicable,
// the instance's failure propagates unmodified and the instance must be
// considered corrupt and discarded; callers never persist or return a
// partially applied state.
func ApplyChanges(instance docsnap.DocumentInstance, changes docsnap.Changes) error {
	for _, change := range changes {
		for _, op := range change.Ops {
			if err := instance.Apply(op); err != nil {
				return err
			}
		}
	}

	return nil
}
