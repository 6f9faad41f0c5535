package shell

import (
	"context"
	"errors"
	"time"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
	"github.com/docsnapkit/document-snapshots-go/docsnap/engine"
)

const defaultMaxCommitAttempts = 3

// ErrInvalidMaxAttempts is returned when max attempts are not positive.
var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

// DocumentStore is the storage surface the commit workflow needs: resolving
// the current version, registering documents, and the guarded append. Both
// the postgresengine and sqliteengine stores satisfy it.
type DocumentStore interface {
	GetDocument(ctx context.Context, documentID string) (docsnap.DocumentRecord, error)
	CreateDocument(ctx context.Context, documentID string, schemaName string) error
	AppendChange(ctx context.Context, change docsnap.Change, expectedVersion docsnap.Version) error
}

// CommitWorkflow commits changes to documents. On a version conflict it
// re-reads the current version and retries the append, up to a bounded number
// of attempts.
type CommitWorkflow struct {
	store       DocumentStore
	engine      *engine.Engine
	logger      docsnap.Logger
	maxAttempts int
}

// CommitOption defines a functional option for configuring a CommitWorkflow.
type CommitOption func(*CommitWorkflow) error

// WithLogger sets the logger for the commit workflow.
func WithLogger(logger docsnap.Logger) CommitOption {
	return func(w *CommitWorkflow) error {
		w.logger = logger
		return nil
	}
}

// WithMaxAttempts sets how often a conflicting commit is retried.
func WithMaxAttempts(maxAttempts int) CommitOption {
	return func(w *CommitWorkflow) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}

		w.maxAttempts = maxAttempts

		return nil
	}
}

// NewCommitWorkflow creates a CommitWorkflow from its two collaborators.
func NewCommitWorkflow(store DocumentStore, snapshotEngine *engine.Engine, options ...CommitOption) (*CommitWorkflow, error) {
	if store == nil {
		return nil, errors.New("store must not be nil")
	}

	if snapshotEngine == nil {
		return nil, errors.New("engine must not be nil")
	}

	w := &CommitWorkflow{
		store:       store,
		engine:      snapshotEngine,
		maxAttempts: defaultMaxCommitAttempts,
	}

	for _, option := range options {
		if err := option(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// RegisterDocument registers a new document id under a schema name so changes
// can be committed to it.
func (w *CommitWorkflow) RegisterDocument(ctx context.Context, documentID string, schemaName string) error {
	return w.store.CreateDocument(ctx, documentID, schemaName)
}

// CommitChange appends one change built from the given operations, claiming
// the next version slot. After a successful append it requests a snapshot for
// the committed version; snapshot failures are logged, never surfaced, since
// snapshots are rebuildable cache entries while the commit is already durable.
//
// Returns the committed version.
func (w *CommitWorkflow) CommitChange(
	ctx context.Context,
	documentID string,
	op docsnap.Operation,
	additionalOps ...docsnap.Operation,
) (docsnap.Version, error) {

	var appendErr error

	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		record, lookupErr := w.store.GetDocument(ctx, documentID)
		if lookupErr != nil {
			return 0, lookupErr
		}

		change, buildErr := docsnap.BuildChange(documentID, record.Version+1, time.Now(), op, additionalOps...)
		if buildErr != nil {
			return 0, buildErr
		}

		appendErr = w.store.AppendChange(ctx, change, record.Version)
		if appendErr == nil {
			w.requestSnapshot(ctx, documentID, change.Version)
			return change.Version, nil
		}

		if !errors.Is(appendErr, docsnap.ErrVersionConflict) {
			return 0, appendErr
		}

		if w.logger != nil {
			w.logger.Info("commit conflicted, retrying",
				"document_id", documentID,
				"attempt", attempt+1)
		}
	}

	return 0, appendErr
}

func (w *CommitWorkflow) requestSnapshot(ctx context.Context, documentID string, committedVersion docsnap.Version) {
	if snapshotErr := w.engine.RequestSnapshot(ctx, documentID, committedVersion); snapshotErr != nil {
		if w.logger != nil {
			w.logger.Warn("snapshot request failed",
				"document_id", documentID,
				"version", committedVersion,
				"error", snapshotErr.Error())
		}
	}
}
