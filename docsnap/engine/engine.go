package engine

import (
	"context"
	"errors"
	"time"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// snapshotSaveTimeout bounds snapshot save operations to prevent hanging.
const snapshotSaveTimeout = 60 * time.Second

var (
	// ErrMissingDocumentID is returned when a caller supplies an empty
	// document id. Reported immediately, no computation attempted.
	ErrMissingDocumentID = errors.New("documentID is required")

	// ErrSnapshotStoreRequired signals that CreateSnapshot was invoked on an
	// engine without a configured snapshot store. It is raised via panic, not
	// returned: a missing store is a wiring bug in the deployment, not a
	// runtime condition.
	ErrSnapshotStoreRequired = errors.New("snapshot store is not configured")

	// ErrNilMetadataStore is returned when the engine is constructed without a metadata store.
	ErrNilMetadataStore = errors.New("metadata store must not be nil")

	// ErrNilChangeLog is returned when the engine is constructed without a change log.
	ErrNilChangeLog = errors.New("change log must not be nil")

	// ErrNilSchemaRegistry is returned when the engine is constructed without a schema registry.
	ErrNilSchemaRegistry = errors.New("schema registry must not be nil")

	// ErrMetadataLookupFailed is returned when the document metadata lookup fails.
	ErrMetadataLookupFailed = errors.New("document metadata lookup failed")

	// ErrSnapshotLoadFailed is returned when loading a cached snapshot fails.
	ErrSnapshotLoadFailed = errors.New("snapshot load failed")

	// ErrChangeQueryFailed is returned when the change log range query fails.
	ErrChangeQueryFailed = errors.New("change log query failed")
)

// Engine reconstructs materialized document snapshots from the change log,
// seeded from cached snapshots when a snapshot store is configured.
//
// It holds no mutable state beyond configuration fixed at construction time;
// all methods are safe for concurrent use.
type Engine struct {
	metadata         MetadataStore
	changeLog        ChangeLog
	snapshots        SnapshotStore // optional
	registry         *docsnap.SchemaRegistry
	codec            docsnap.Codec
	frequency        uint
	logger           docsnap.Logger
	contextualLogger docsnap.ContextualLogger
	metricsCollector docsnap.MetricsCollector
	tracingCollector docsnap.TracingCollector
}

// New creates an Engine from its three mandatory collaborators and optional
// configuration. The codec defaults to docsnap.JSONCodec and the snapshot
// frequency to 1 (snapshot every version).
func New(metadata MetadataStore, changeLog ChangeLog, registry *docsnap.SchemaRegistry, options ...Option) (*Engine, error) {
	if metadata == nil {
		return nil, ErrNilMetadataStore
	}

	if changeLog == nil {
		return nil, ErrNilChangeLog
	}

	if registry == nil {
		return nil, ErrNilSchemaRegistry
	}

	e := &Engine{
		metadata:  metadata,
		changeLog: changeLog,
		registry:  registry,
		codec:     docsnap.NewJSONCodec(),
		frequency: 1,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// GetSnapshot materializes the document state at its current latest version,
// as resolved through the metadata store. It is a pure read: no snapshot is
// persisted.
func (e *Engine) GetSnapshot(ctx context.Context, documentID string) (docsnap.Snapshot, error) {
	return e.getSnapshot(ctx, documentID, 0, false)
}

// GetSnapshotAt materializes the document state at exactly the given version.
// Version 0 yields the empty document of the document's schema without
// touching the snapshot store or the change log.
func (e *Engine) GetSnapshotAt(ctx context.Context, documentID string, version docsnap.Version) (docsnap.Snapshot, error) {
	return e.getSnapshot(ctx, documentID, version, true)
}

// CreateSnapshot materializes the document state at its current latest
// version and persists it to the snapshot store before returning it.
//
// Panics with ErrSnapshotStoreRequired if no snapshot store is configured.
func (e *Engine) CreateSnapshot(ctx context.Context, documentID string) (docsnap.Snapshot, error) {
	return e.createSnapshot(ctx, documentID, 0, false)
}

// CreateSnapshotAt materializes the document state at exactly the given
// version and persists it to the snapshot store before returning it.
//
// Panics with ErrSnapshotStoreRequired if no snapshot store is configured.
func (e *Engine) CreateSnapshotAt(ctx context.Context, documentID string, version docsnap.Version) (docsnap.Snapshot, error) {
	return e.createSnapshot(ctx, documentID, version, true)
}

// RequestSnapshot is called by the change-commit workflow once per committed
// change, with the version that was just committed. It persists a new
// snapshot only when a snapshot store is configured and the committed version
// is a multiple of the configured frequency; otherwise it is a no-op that
// still signals success.
//
// This is the sole admission control limiting snapshot-store write
// amplification; it is intentionally caller-driven, not a background process.
func (e *Engine) RequestSnapshot(ctx context.Context, documentID string, committedVersion docsnap.Version) error {
	if documentID == "" {
		return ErrMissingDocumentID
	}

	if e.snapshots == nil {
		return nil
	}

	if committedVersion%docsnap.Version(e.frequency) != 0 {
		e.logDebug(ctx, logMsgSnapshotSkipped,
			logAttrDocumentID, documentID,
			logAttrVersion, committedVersion,
			logAttrReason, "frequency")

		return nil
	}

	// The snapshot is taken at the document's current version as resolved via
	// the metadata store, not at committedVersion; the committed version only
	// feeds the frequency gate.
	_, err := e.CreateSnapshot(ctx, documentID)

	return err
}

func (e *Engine) getSnapshot(ctx context.Context, documentID string, version docsnap.Version, versionGiven bool) (docsnap.Snapshot, error) {
	var empty docsnap.Snapshot

	if documentID == "" {
		return empty, ErrMissingDocumentID
	}

	start := time.Now()
	ctx, span := e.startSpan(ctx, spanGetSnapshot, documentID)

	record, lookupErr := e.lookupRecord(ctx, documentID)
	if lookupErr != nil {
		e.finishSpan(span, statusError, "")
		return empty, lookupErr
	}

	target := record.Version
	if versionGiven {
		target = version
	}

	snapshot, strategy, reconstructErr := e.reconstruct(ctx, record, target)
	duration := time.Since(start)

	if reconstructErr != nil {
		e.finishSpan(span, statusError, strategy)
		e.recordDuration(ctx, "get_snapshot", strategy, statusError, duration)
		e.incrementCounter(ctx, metricEngineErrors, map[string]string{spanAttrOperation: "get_snapshot"})

		return empty, reconstructErr
	}

	e.finishSpan(span, statusSuccess, strategy)
	e.recordDuration(ctx, "get_snapshot", strategy, statusSuccess, duration)
	e.logOperation(ctx, logMsgSnapshotMaterialized,
		logAttrDocumentID, documentID,
		logAttrVersion, snapshot.Version,
		logAttrStrategy, strategy,
		logAttrDurationMS, e.toMilliseconds(duration))

	return snapshot, nil
}

func (e *Engine) createSnapshot(ctx context.Context, documentID string, version docsnap.Version, versionGiven bool) (docsnap.Snapshot, error) {
	if e.snapshots == nil {
		panic(ErrSnapshotStoreRequired)
	}

	var empty docsnap.Snapshot

	if documentID == "" {
		return empty, ErrMissingDocumentID
	}

	start := time.Now()
	ctx, span := e.startSpan(ctx, spanCreateSnapshot, documentID)

	record, lookupErr := e.lookupRecord(ctx, documentID)
	if lookupErr != nil {
		e.finishSpan(span, statusError, "")
		return empty, lookupErr
	}

	target := record.Version
	if versionGiven {
		target = version
	}

	snapshot, strategy, reconstructErr := e.reconstruct(ctx, record, target)
	if reconstructErr != nil {
		e.finishSpan(span, statusError, strategy)
		e.recordDuration(ctx, "create_snapshot", strategy, statusError, time.Since(start))
		e.incrementCounter(ctx, metricEngineErrors, map[string]string{spanAttrOperation: "create_snapshot"})

		return empty, reconstructErr
	}

	if saveErr := e.saveSnapshot(ctx, snapshot); saveErr != nil {
		e.finishSpan(span, statusError, strategy)
		e.recordDuration(ctx, "create_snapshot", strategy, statusError, time.Since(start))
		e.incrementCounter(ctx, metricEngineErrors, map[string]string{spanAttrOperation: "create_snapshot"})

		return empty, saveErr
	}

	duration := time.Since(start)
	e.finishSpan(span, statusSuccess, strategy)
	e.recordDuration(ctx, "create_snapshot", strategy, statusSuccess, duration)
	e.incrementCounter(ctx, metricSnapshotsCreated, map[string]string{spanAttrStrategy: strategy})
	e.logOperation(ctx, logMsgSnapshotCreated,
		logAttrDocumentID, documentID,
		logAttrVersion, snapshot.Version,
		logAttrStrategy, strategy,
		logAttrDurationMS, e.toMilliseconds(duration))

	return snapshot, nil
}

/*** Reconstruction strategies ***/

// reconstruct selects the reconstruction strategy for the resolved target
// version and executes it. Version 0 has no prior state to reuse, and
// without a snapshot store there is nothing to seed from, so full replay is
// strictly equivalent in both cases.
func (e *Engine) reconstruct(ctx context.Context, record docsnap.DocumentRecord, version docsnap.Version) (
	docsnap.Snapshot,
	string,
	error,
) {

	if e.snapshots != nil && version != 0 {
		return e.reconstructIncremental(ctx, record, version)
	}

	return e.reconstructFullReplay(ctx, record, version)
}

// reconstructIncremental seeds a document instance from the closest cached
// snapshot at or before the target version and replays only the delta. Cost
// is proportional to the number of changes between the nearest snapshot and
// the target, not to total history length.
func (e *Engine) reconstructIncremental(ctx context.Context, record docsnap.DocumentRecord, version docsnap.Version) (
	docsnap.Snapshot,
	string,
	error,
) {

	var empty docsnap.Snapshot

	found, loadErr := e.snapshots.LoadSnapshot(ctx, record.DocumentID, version, true)
	if loadErr != nil {
		e.logError(ctx, logMsgSnapshotLoadFailed, loadErr, logAttrDocumentID, record.DocumentID, logAttrVersion, version)
		return empty, strategyIncremental, errors.Join(ErrSnapshotLoadFailed, loadErr)
	}

	if found != nil && found.Version == version {
		// Exact cache hit: no replay, no codec round trip.
		e.logDebug(ctx, logMsgSnapshotExactHit, logAttrDocumentID, record.DocumentID, logAttrVersion, version)
		return *found, strategyExactHit, nil
	}

	instance, instanceErr := e.createInstance(ctx, record)
	if instanceErr != nil {
		return empty, strategyIncremental, instanceErr
	}

	knownVersion := docsnap.Version(0)

	if found != nil {
		if importErr := e.codec.ImportDocument(instance, found.Data); importErr != nil {
			e.logError(ctx, logMsgImportFailed, importErr, logAttrDocumentID, record.DocumentID, logAttrVersion, found.Version)
			return empty, strategyIncremental, importErr
		}

		knownVersion = found.Version
	}

	changes, fetchErr := e.fetchChanges(ctx, record.DocumentID, knownVersion, version)
	if fetchErr != nil {
		return empty, strategyIncremental, fetchErr
	}

	if applyErr := ApplyChanges(instance, changes); applyErr != nil {
		e.logError(ctx, logMsgApplyFailed, applyErr, logAttrDocumentID, record.DocumentID)
		return empty, strategyIncremental, applyErr
	}

	e.recordChangesReplayed(ctx, strategyIncremental, len(changes))
	e.logDebug(ctx, "incremental replay",
		logAttrDocumentID, record.DocumentID,
		logAttrKnownVersion, knownVersion,
		logAttrVersion, version,
		logAttrChangeCount, len(changes))

	snapshot, exportErr := e.export(ctx, record.DocumentID, version, instance)

	return snapshot, strategyIncremental, exportErr
}

// reconstructFullReplay replays the complete history up to the target version
// onto an empty instance. Used when no snapshot store is configured and for
// version 0, which needs no replay at all.
func (e *Engine) reconstructFullReplay(ctx context.Context, record docsnap.DocumentRecord, version docsnap.Version) (
	docsnap.Snapshot,
	string,
	error,
) {

	var empty docsnap.Snapshot

	instance, instanceErr := e.createInstance(ctx, record)
	if instanceErr != nil {
		return empty, strategyFullReplay, instanceErr
	}

	changeCount := 0

	if version != 0 {
		changes, fetchErr := e.fetchChanges(ctx, record.DocumentID, 0, version)
		if fetchErr != nil {
			return empty, strategyFullReplay, fetchErr
		}

		if applyErr := ApplyChanges(instance, changes); applyErr != nil {
			e.logError(ctx, logMsgApplyFailed, applyErr, logAttrDocumentID, record.DocumentID)
			return empty, strategyFullReplay, applyErr
		}

		changeCount = len(changes)
	}

	e.recordChangesReplayed(ctx, strategyFullReplay, changeCount)
	e.logDebug(ctx, "full replay",
		logAttrDocumentID, record.DocumentID,
		logAttrVersion, version,
		logAttrChangeCount, changeCount)

	snapshot, exportErr := e.export(ctx, record.DocumentID, version, instance)

	return snapshot, strategyFullReplay, exportErr
}

/*** Phase execution methods ***/

// lookupRecord resolves the document's metadata record.
func (e *Engine) lookupRecord(ctx context.Context, documentID string) (docsnap.DocumentRecord, error) {
	record, err := e.metadata.GetDocument(ctx, documentID)
	if err != nil {
		e.logError(ctx, logMsgMetadataLookupFailed, err, logAttrDocumentID, documentID)
		return docsnap.DocumentRecord{}, errors.Join(ErrMetadataLookupFailed, err)
	}

	return record, nil
}

// createInstance constructs an empty document instance for the record's schema.
func (e *Engine) createInstance(ctx context.Context, record docsnap.DocumentRecord) (docsnap.DocumentInstance, error) {
	instance, err := e.registry.NewInstance(record.SchemaName)
	if err != nil {
		e.logError(ctx, logMsgInstanceCreateFailed, err, logAttrDocumentID, record.DocumentID)
		return nil, err
	}

	return instance, nil
}

// fetchChanges queries the change log for the version range (since, to].
func (e *Engine) fetchChanges(ctx context.Context, documentID string, sinceVersion, toVersion docsnap.Version) (docsnap.Changes, error) {
	changes, err := e.changeLog.GetChanges(ctx, documentID, sinceVersion, toVersion)
	if err != nil {
		e.logError(ctx, logMsgChangeQueryFailed, err, logAttrDocumentID, documentID)
		return nil, errors.Join(ErrChangeQueryFailed, err)
	}

	return changes, nil
}

// export serializes the instance through the codec and builds the snapshot value.
func (e *Engine) export(ctx context.Context, documentID string, version docsnap.Version, instance docsnap.DocumentInstance) (
	docsnap.Snapshot,
	error,
) {

	data, err := e.codec.ExportDocument(instance)
	if err != nil {
		e.logError(ctx, logMsgExportFailed, err, logAttrDocumentID, documentID)
		return docsnap.Snapshot{}, err
	}

	return docsnap.BuildSnapshot(documentID, version, data)
}

// saveSnapshot persists a freshly computed snapshot with a bounded timeout.
func (e *Engine) saveSnapshot(parentCtx context.Context, snapshot docsnap.Snapshot) error {
	ctx, cancel := context.WithTimeout(parentCtx, snapshotSaveTimeout)
	defer cancel()

	if err := e.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		e.logError(ctx, logMsgSnapshotSaveFailed, err,
			logAttrDocumentID, snapshot.DocumentID,
			logAttrVersion, snapshot.Version)

		return errors.Join(docsnap.ErrSavingSnapshotFailed, err)
	}

	return nil
}
