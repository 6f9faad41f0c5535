package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
	"github.com/docsnapkit/document-snapshots-go/docsnap/postgresengine/internal/adapters"
)

const (
	defaultChangesTableName   = "document_changes"
	defaultSnapshotsTableName = "document_snapshots"
	defaultDocumentsTableName = "documents"

	colDocumentID = "document_id"
	colVersion    = "version"
	colOps        = "ops"
	colRecordedAt = "recorded_at"
	colData       = "data"
	colCreatedAt  = "created_at"
	colSchemaName = "schema_name"

	cteContext      = "context"
	aliasMaxVer     = "max_ver"
	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"

	conflictTarget = colDocumentID + ", " + colVersion
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

var marshaler = jsoniter.ConfigFastest

// storedOperation is the persistence shape of one operation inside the ops
// column. A change's operations are stored as one JSON array in commit order.
type storedOperation struct {
	OpType  string              `json:"op_type"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// Store persists documents, their append-only change log, and their cached
// snapshots in Postgres. It implements the engine's MetadataStore, ChangeLog
// and SnapshotStore contracts on top of a database adapter, with customizable
// table names and optional observability.
type Store struct {
	db                 adapters.DBAdapter
	changesTableName   string
	snapshotsTableName string
	documentsTableName string
	logger             docsnap.Logger
	contextualLogger   docsnap.ContextualLogger
	metricsCollector   docsnap.MetricsCollector
	tracingCollector   docsnap.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, docsnap.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolWithReplica creates a new Store using a primary pgx pool
// and a read replica pool. Range and point reads are routed to the replica
// only for contexts carrying docsnap.EventualConsistency.
func NewStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, docsnap.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, docsnap.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, docsnap.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	s := Store{
		db:                 db,
		changesTableName:   defaultChangesTableName,
		snapshotsTableName: defaultSnapshotsTableName,
		documentsTableName: defaultDocumentsTableName,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

/*** MetadataStore ***/

// GetDocument resolves a document's metadata record. The current version is
// derived from the change log (the maximum committed change version), so the
// record can never run ahead of or behind the log.
//
// Fails with docsnap.ErrDocumentNotFound for an unknown document id.
func (s Store) GetDocument(ctx context.Context, documentID string) (docsnap.DocumentRecord, error) {
	var empty docsnap.DocumentRecord

	sqlQuery, buildErr := s.buildGetDocumentQuery(documentID)
	if buildErr != nil {
		return empty, buildErr
	}

	rows, duration, queryErr := s.executeQuery(ctx, sqlQuery, operationGetDocument, docsnap.ErrQueryingDocumentFailed)
	if queryErr != nil {
		return empty, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return empty, docsnap.ErrDocumentNotFound
	}

	record := docsnap.DocumentRecord{DocumentID: documentID}
	if scanErr := rows.Scan(&record.SchemaName, &record.Version); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)
		return empty, errors.Join(docsnap.ErrScanningDBRowFailed, scanErr)
	}

	s.logOperation(ctx, logMsgDocumentResolved,
		logAttrDocumentID, documentID,
		logAttrVersion, record.Version,
		logAttrDurationMS, s.toMilliseconds(duration))

	return record, nil
}

// CreateDocument registers a new document id under a schema name so that
// changes can be appended to it. Registration happens once per document,
// before its first change.
//
// Fails with docsnap.ErrDocumentAlreadyExists if the id is taken.
func (s Store) CreateDocument(ctx context.Context, documentID string, schemaName string) error {
	if documentID == "" {
		return docsnap.ErrEmptyDocumentID
	}

	if schemaName == "" {
		return docsnap.ErrEmptySchemaName
	}

	sqlQuery, buildErr := s.buildCreateDocumentQuery(documentID, schemaName)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, duration, execErr := s.executeStatement(ctx, sqlQuery, operationCreateDocument, docsnap.ErrSavingDocumentFailed)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return docsnap.ErrDocumentAlreadyExists
	}

	s.logOperation(ctx, logMsgDocumentCreated,
		logAttrDocumentID, documentID,
		logAttrSchemaName, schemaName,
		logAttrDurationMS, s.toMilliseconds(duration))

	return nil
}

/*** ChangeLog ***/

// GetChanges retrieves the document's committed changes with version in
// (sinceVersion, toVersion], ordered by ascending version.
// docsnap.ToLatest as toVersion leaves the range open-ended.
func (s Store) GetChanges(
	ctx context.Context,
	documentID string,
	sinceVersion docsnap.Version,
	toVersion docsnap.Version,
) (docsnap.Changes, error) {

	ctx, span := s.startSpan(ctx, spanNameGetChanges, documentID)
	start := time.Now()

	sqlQuery, buildErr := s.buildGetChangesQuery(documentID, sinceVersion, toVersion)
	if buildErr != nil {
		s.finishSpan(span, statusError)
		return nil, buildErr
	}

	rows, _, queryErr := s.executeQuery(ctx, sqlQuery, operationGetChanges, docsnap.ErrQueryingChangesFailed)
	if queryErr != nil {
		s.finishSpan(span, statusError)
		s.recordError(ctx, operationGetChanges)
		return nil, queryErr
	}
	defer s.closeRows(rows)

	changes, scanErr := s.collectChanges(ctx, rows, documentID)
	if scanErr != nil {
		s.finishSpan(span, statusError)
		s.recordError(ctx, operationGetChanges)
		return nil, scanErr
	}

	duration := time.Since(start)
	s.finishSpan(span, statusSuccess)
	s.recordDuration(ctx, metricQueryDuration, operationGetChanges, duration)
	s.logOperation(ctx, logMsgChangesQueried,
		logAttrDocumentID, documentID,
		logAttrChangeCount, len(changes),
		logAttrDurationMS, s.toMilliseconds(duration))

	return changes, nil
}

// AppendChange appends one change to the document's log, guarded by optimistic
// concurrency: the insert only takes effect while the log's current maximum
// version still equals expectedVersion. The change must claim the next version
// slot, expectedVersion+1.
//
// Fails with docsnap.ErrVersionConflict when another writer got there first.
func (s Store) AppendChange(
	ctx context.Context,
	change docsnap.Change,
	expectedVersion docsnap.Version,
) error {

	if change.Version != expectedVersion+1 {
		return docsnap.ErrVersionConflict
	}

	ctx, span := s.startSpan(ctx, spanNameAppendChange, change.DocumentID)
	start := time.Now()

	sqlQuery, buildErr := s.buildAppendChangeQuery(change, expectedVersion)
	if buildErr != nil {
		s.finishSpan(span, statusError)
		return buildErr
	}

	rowsAffected, _, execErr := s.executeStatement(ctx, sqlQuery, operationAppendChange, docsnap.ErrAppendingChangeFailed)
	if execErr != nil {
		s.finishSpan(span, statusError)
		s.recordError(ctx, operationAppendChange)
		return execErr
	}

	if rowsAffected == 0 {
		s.finishSpan(span, statusError)
		s.recordConflict(ctx)
		s.logOperation(ctx, logMsgVersionConflict,
			logAttrDocumentID, change.DocumentID,
			logAttrExpectedVersion, expectedVersion)

		return docsnap.ErrVersionConflict
	}

	duration := time.Since(start)
	s.finishSpan(span, statusSuccess)
	s.recordDuration(ctx, metricAppendDuration, operationAppendChange, duration)
	s.logOperation(ctx, logMsgChangeAppended,
		logAttrDocumentID, change.DocumentID,
		logAttrVersion, change.Version,
		logAttrOpCount, len(change.Ops),
		logAttrDurationMS, s.toMilliseconds(duration))

	return nil
}

/*** SnapshotStore ***/

// LoadSnapshot retrieves the snapshot at exactly the given version, or - with
// findClosest - the one with the highest version at or before it. With
// findClosest and docsnap.ToLatest the latest stored snapshot wins regardless
// of version. Absence is a valid, non-error result: (nil, nil).
func (s Store) LoadSnapshot(
	ctx context.Context,
	documentID string,
	version docsnap.Version,
	findClosest bool,
) (*docsnap.Snapshot, error) {

	sqlQuery, buildErr := s.buildLoadSnapshotQuery(documentID, version, findClosest)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, duration, queryErr := s.executeQuery(ctx, sqlQuery, operationLoadSnapshot, docsnap.ErrLoadingSnapshotFailed)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		return nil, nil
	}

	snapshot := docsnap.Snapshot{DocumentID: documentID}
	if scanErr := rows.Scan(&snapshot.Version, &snapshot.Data, &snapshot.CreatedAt); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)
		return nil, errors.Join(docsnap.ErrLoadingSnapshotFailed, scanErr)
	}

	s.logOperation(ctx, logMsgSnapshotLoaded,
		logAttrDocumentID, documentID,
		logAttrVersion, snapshot.Version,
		logAttrDurationMS, s.toMilliseconds(duration))

	return &snapshot, nil
}

// SaveSnapshot persists the snapshot, upserting on (document_id, version).
// Re-saving the same key is harmless: snapshots for the same key are
// equivalent by construction, so last write wins.
func (s Store) SaveSnapshot(ctx context.Context, snapshot docsnap.Snapshot) error {
	if validateErr := snapshot.Validate(); validateErr != nil {
		return validateErr
	}

	sqlQuery, buildErr := s.buildSaveSnapshotQuery(snapshot)
	if buildErr != nil {
		return buildErr
	}

	_, duration, execErr := s.executeStatement(ctx, sqlQuery, operationSaveSnapshot, docsnap.ErrSavingSnapshotFailed)
	if execErr != nil {
		s.recordError(ctx, operationSaveSnapshot)
		return execErr
	}

	s.recordDuration(ctx, metricSnapshotSaveDuration, operationSaveSnapshot, duration)
	s.logOperation(ctx, logMsgSnapshotSaved,
		logAttrDocumentID, snapshot.DocumentID,
		logAttrVersion, snapshot.Version,
		logAttrDurationMS, s.toMilliseconds(duration))

	return nil
}

// DeleteSnapshot removes the snapshot stored for (documentID, version).
// Deleting an absent snapshot is a no-op; snapshots are derived artifacts and
// the engine rebuilds them on demand.
func (s Store) DeleteSnapshot(ctx context.Context, documentID string, version docsnap.Version) error {
	sqlQuery, buildErr := s.buildDeleteSnapshotQuery(documentID, version)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, duration, execErr := s.executeStatement(ctx, sqlQuery, operationDeleteSnapshot, docsnap.ErrDeletingSnapshotFailed)
	if execErr != nil {
		return execErr
	}

	s.logOperation(ctx, logMsgSnapshotDeleted,
		logAttrDocumentID, documentID,
		logAttrVersion, version,
		logAttrRowsAffected, rowsAffected,
		logAttrDurationMS, s.toMilliseconds(duration))

	return nil
}

/*** Query execution ***/

// executeQuery executes the SQL query and returns rows with timing
// information. Failures are joined onto the given sentinel.
func (s Store) executeQuery(ctx context.Context, sqlQuery string, action string, sentinel error) (
	adapters.DBRows,
	time.Duration,
	error,
) {

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, duration, errors.Join(sentinel, queryErr)
	}

	return rows, duration, nil
}

// executeStatement executes a mutating SQL statement and returns rows affected
// with timing information. Failures are joined onto the given sentinel.
func (s Store) executeStatement(ctx context.Context, sqlQuery string, action string, sentinel error) (
	rowsAffectedInt64,
	time.Duration,
	error,
) {

	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, duration, errors.Join(sentinel, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, duration, errors.Join(docsnap.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (s Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// collectChanges converts change-log rows into domain changes.
func (s Store) collectChanges(ctx context.Context, rows adapters.DBRows, documentID string) (docsnap.Changes, error) {
	changes := make(docsnap.Changes, 0)

	var version docsnap.Version
	var opsJSON []byte
	var recordedAt time.Time

	for rows.Next() {
		if scanErr := rows.Scan(&version, &opsJSON, &recordedAt); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(docsnap.ErrScanningDBRowFailed, scanErr)
		}

		change, buildErr := s.buildChangeFromRow(documentID, version, opsJSON, recordedAt)
		if buildErr != nil {
			s.logError(ctx, logMsgBuildChangeFailed, buildErr, logAttrDocumentID, documentID, logAttrVersion, version)
			return nil, errors.Join(docsnap.ErrBuildingChangeFailed, buildErr)
		}

		changes = append(changes, change)
	}

	return changes, nil
}

// buildChangeFromRow decodes the stored ops array and rebuilds the domain change.
func (s Store) buildChangeFromRow(
	documentID string,
	version docsnap.Version,
	opsJSON []byte,
	recordedAt time.Time,
) (docsnap.Change, error) {

	var stored []storedOperation
	if unmarshalErr := marshaler.Unmarshal(opsJSON, &stored); unmarshalErr != nil {
		return docsnap.Change{}, unmarshalErr
	}

	if len(stored) == 0 {
		return docsnap.Change{}, docsnap.ErrEmptyOperations
	}

	ops := make([]docsnap.Operation, 0, len(stored))

	for _, so := range stored {
		op, opErr := docsnap.BuildOperation(so.OpType, so.Payload)
		if opErr != nil {
			return docsnap.Change{}, opErr
		}

		ops = append(ops, op)
	}

	return docsnap.BuildChange(documentID, version, recordedAt, ops[0], ops[1:]...)
}

/*** Query builders ***/

func (s Store) buildGetDocumentQuery(documentID string) (sqlQueryString, error) {
	builder := goqu.Dialect(dialectPostgres)

	selectStmt := builder.
		From(goqu.T(s.documentsTableName).As("d")).
		LeftJoin(
			goqu.T(s.changesTableName).As("c"),
			goqu.On(goqu.I("c."+colDocumentID).Eq(goqu.I("d."+colDocumentID))),
		).
		Select(
			goqu.I("d."+colSchemaName),
			goqu.COALESCE(goqu.MAX(goqu.I("c."+colVersion)), 0),
		).
		Where(goqu.I("d." + colDocumentID).Eq(documentID)).
		GroupBy(goqu.I("d." + colSchemaName))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s Store) buildCreateDocumentQuery(documentID string, schemaName string) (sqlQueryString, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.documentsTableName).
		Cols(colDocumentID, colSchemaName, colCreatedAt).
		Vals(goqu.Vals{documentID, schemaName, time.Now()}).
		OnConflict(goqu.DoNothing())

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s Store) buildGetChangesQuery(
	documentID string,
	sinceVersion docsnap.Version,
	toVersion docsnap.Version,
) (sqlQueryString, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.changesTableName).
		Select(colVersion, colOps, colRecordedAt).
		Where(goqu.Ex{colDocumentID: documentID}).
		Where(goqu.C(colVersion).Gt(int64(sinceVersion))).
		Order(goqu.I(colVersion).Asc())

	if toVersion != docsnap.ToLatest {
		selectStmt = selectStmt.Where(goqu.C(colVersion).Lte(int64(toVersion)))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildAppendChangeQuery builds a guarded insert: a CTE captures the current
// maximum version of the document's log, and the insert only selects a row
// while that maximum still equals the expected version.
func (s Store) buildAppendChangeQuery(change docsnap.Change, expectedVersion docsnap.Version) (sqlQueryString, error) {
	opsJSON, marshalErr := s.encodeOps(change.Ops)
	if marshalErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, marshalErr)
	}

	builder := goqu.Dialect(dialectPostgres)

	cteStmt := builder.
		From(s.changesTableName).
		Select(goqu.MAX(colVersion).As(aliasMaxVer)).
		Where(goqu.Ex{colDocumentID: change.DocumentID})

	selectStmt := builder.
		From(cteContext).
		Select(
			goqu.V(change.DocumentID),
			goqu.V(int64(change.Version)),
			goqu.L(castJsonb, string(opsJSON)),
			goqu.V(change.RecordedAt),
		).
		Where(goqu.COALESCE(goqu.C(aliasMaxVer), 0).Eq(goqu.V(int64(expectedVersion))))

	insertStmt := builder.
		Insert(s.changesTableName).
		Cols(colDocumentID, colVersion, colOps, colRecordedAt).
		FromQuery(selectStmt).
		With(cteContext, cteStmt)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s Store) buildLoadSnapshotQuery(
	documentID string,
	version docsnap.Version,
	findClosest bool,
) (sqlQueryString, error) {

	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.snapshotsTableName).
		Select(colVersion, colData, colCreatedAt).
		Where(goqu.Ex{colDocumentID: documentID})

	switch {
	case findClosest && version == docsnap.ToLatest:
		selectStmt = selectStmt.Order(goqu.I(colVersion).Desc()).Limit(1)

	case findClosest:
		selectStmt = selectStmt.
			Where(goqu.C(colVersion).Lte(int64(version))).
			Order(goqu.I(colVersion).Desc()).
			Limit(1)

	default:
		selectStmt = selectStmt.Where(goqu.Ex{colVersion: int64(version)})
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s Store) buildSaveSnapshotQuery(snapshot docsnap.Snapshot) (sqlQueryString, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.snapshotsTableName).
		Cols(colDocumentID, colVersion, colData, colCreatedAt).
		Vals(goqu.Vals{
			snapshot.DocumentID,
			int64(snapshot.Version),
			goqu.L(castJsonb, string(snapshot.Data)),
			snapshot.CreatedAt,
		}).
		OnConflict(goqu.DoUpdate(conflictTarget, goqu.Record{
			colData:      goqu.L(castJsonb, string(snapshot.Data)),
			colCreatedAt: snapshot.CreatedAt,
		}))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s Store) buildDeleteSnapshotQuery(documentID string, version docsnap.Version) (sqlQueryString, error) {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(s.snapshotsTableName).
		Where(goqu.Ex{
			colDocumentID: documentID,
			colVersion:    int64(version),
		})

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(docsnap.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// encodeOps serializes a change's operations into the ops column's JSON array shape.
func (s Store) encodeOps(ops []docsnap.Operation) ([]byte, error) {
	stored := make([]storedOperation, 0, len(ops))

	for _, op := range ops {
		stored = append(stored, storedOperation{
			OpType:  op.OpType,
			Payload: op.PayloadJSON,
		})
	}

	return marshaler.Marshal(stored)
}
