package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3" // driver import

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

const (
	defaultChangesTableName   = "document_changes"
	defaultSnapshotsTableName = "document_snapshots"
	defaultDocumentsTableName = "documents"

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 5 * time.Minute
)

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

var marshaler = jsoniter.ConfigFastest

// storedOperation is the persistence shape of one operation inside the ops
// column, shared with the Postgres store's column layout.
type storedOperation struct {
	OpType  string              `json:"op_type"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// Config holds configuration options for the SQLite document store.
//
// Production-ready defaults are applied by DefaultConfig, including WAL mode
// for better concurrency and a bounded connection pool.
type Config struct {
	// DataSourceName is the connection string for the SQLite database,
	// e.g. "file:documents.db" or ":memory:" for tests.
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode. When true,
	// "?_journal_mode=WAL" is appended to DataSourceName unless a journal
	// mode is already set.
	EnableWAL bool

	// Logger is an optional logger for operational messages. Nil disables
	// logging.
	Logger docsnap.Logger

	// Table name overrides. Empty values fall back to the defaults.
	ChangesTableName   string
	SnapshotsTableName string
	DocumentsTableName string

	// Connection pool settings. Zero values fall back to the defaults:
	// MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// setDefaults applies default values to the config.
func (c *Config) setDefaults() {
	if c.ChangesTableName == "" {
		c.ChangesTableName = defaultChangesTableName
	}
	if c.SnapshotsTableName == "" {
		c.SnapshotsTableName = defaultSnapshotsTableName
	}
	if c.DocumentsTableName == "" {
		c.DocumentsTableName = defaultDocumentsTableName
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults for the given
// data source name, WAL mode included.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()

	return config
}

// Store implements the engine's MetadataStore, ChangeLog and SnapshotStore
// contracts on a SQLite database.
type Store struct {
	db                 *sql.DB
	mu                 sync.RWMutex
	closed             bool
	logger             docsnap.Logger
	changesTableName   string
	snapshotsTableName string
	documentsTableName string
}

// Open creates a new Store from a Config, bootstrapping the schema if needed.
func Open(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, errors.New("DataSourceName is required")
	}

	db, openErr := sql.Open("sqlite3", config.DataSourceName)
	if openErr != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", openErr)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if pingErr := db.Ping(); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", pingErr)
	}

	store := &Store{
		db:                 db,
		logger:             config.Logger,
		changesTableName:   config.ChangesTableName,
		snapshotsTableName: config.SnapshotsTableName,
		documentsTableName: config.DocumentsTableName,
	}

	if schemaErr := store.setupSchema(); schemaErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", schemaErr)
	}

	return store, nil
}

// OpenWithDataSource is a convenience constructor using DefaultConfig.
func OpenWithDataSource(dataSourceName string) (*Store, error) {
	return Open(DefaultConfig(dataSourceName))
}

// Close closes the underlying database. Further operations return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.db.Close()
}

// setupSchema creates the document tables if they don't exist.
func (s *Store) setupSchema() error {
	schema := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        document_id TEXT PRIMARY KEY,
        schema_name TEXT NOT NULL,
        created_at  TIMESTAMP NOT NULL
    );
    CREATE TABLE IF NOT EXISTS %[2]s (
        document_id TEXT NOT NULL,
        version     INTEGER NOT NULL CHECK (version > 0),
        ops         TEXT NOT NULL,
        recorded_at TIMESTAMP NOT NULL,
        PRIMARY KEY (document_id, version)
    );
    CREATE TABLE IF NOT EXISTS %[3]s (
        document_id TEXT NOT NULL,
        version     INTEGER NOT NULL,
        data        TEXT NOT NULL,
        created_at  TIMESTAMP NOT NULL,
        PRIMARY KEY (document_id, version)
    );
    `, s.documentsTableName, s.changesTableName, s.snapshotsTableName)

	_, err := s.db.Exec(schema)

	return err
}

func (s *Store) guardOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	return nil
}

/*** MetadataStore ***/

// GetDocument resolves a document's metadata record, deriving the current
// version from the change log.
//
// Fails with docsnap.ErrDocumentNotFound for an unknown document id.
func (s *Store) GetDocument(ctx context.Context, documentID string) (docsnap.DocumentRecord, error) {
	var empty docsnap.DocumentRecord

	if guardErr := s.guardOpen(); guardErr != nil {
		return empty, guardErr
	}

	query := fmt.Sprintf(
		`SELECT d.schema_name, COALESCE(MAX(c.version), 0)
         FROM %s d LEFT JOIN %s c ON c.document_id = d.document_id
         WHERE d.document_id = ? GROUP BY d.schema_name`,
		s.documentsTableName, s.changesTableName)

	record := docsnap.DocumentRecord{DocumentID: documentID}

	scanErr := s.db.QueryRowContext(ctx, query, documentID).Scan(&record.SchemaName, &record.Version)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return empty, docsnap.ErrDocumentNotFound
	}
	if scanErr != nil {
		return empty, errors.Join(docsnap.ErrQueryingDocumentFailed, scanErr)
	}

	return record, nil
}

// CreateDocument registers a new document id under a schema name.
//
// Fails with docsnap.ErrDocumentAlreadyExists if the id is taken.
func (s *Store) CreateDocument(ctx context.Context, documentID string, schemaName string) error {
	if documentID == "" {
		return docsnap.ErrEmptyDocumentID
	}

	if schemaName == "" {
		return docsnap.ErrEmptySchemaName
	}

	if guardErr := s.guardOpen(); guardErr != nil {
		return guardErr
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (document_id, schema_name, created_at) VALUES (?, ?, ?)
         ON CONFLICT (document_id) DO NOTHING`,
		s.documentsTableName)

	result, execErr := s.db.ExecContext(ctx, query, documentID, schemaName, time.Now())
	if execErr != nil {
		return errors.Join(docsnap.ErrSavingDocumentFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		return errors.Join(docsnap.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		return docsnap.ErrDocumentAlreadyExists
	}

	s.logOperation("document created", "document_id", documentID, "schema_name", schemaName)

	return nil
}

/*** ChangeLog ***/

// GetChanges retrieves the document's committed changes with version in
// (sinceVersion, toVersion], ordered by ascending version.
// docsnap.ToLatest as toVersion leaves the range open-ended.
func (s *Store) GetChanges(
	ctx context.Context,
	documentID string,
	sinceVersion docsnap.Version,
	toVersion docsnap.Version,
) (docsnap.Changes, error) {

	if guardErr := s.guardOpen(); guardErr != nil {
		return nil, guardErr
	}

	query := fmt.Sprintf(
		`SELECT version, ops, recorded_at FROM %s
         WHERE document_id = ? AND version > ?`,
		s.changesTableName)
	args := []any{documentID, int64(sinceVersion)}

	if toVersion != docsnap.ToLatest {
		query += ` AND version <= ?`
		args = append(args, int64(toVersion))
	}

	query += ` ORDER BY version ASC`

	rows, queryErr := s.db.QueryContext(ctx, query, args...)
	if queryErr != nil {
		return nil, errors.Join(docsnap.ErrQueryingChangesFailed, queryErr)
	}
	defer func() { _ = rows.Close() }()

	changes := make(docsnap.Changes, 0)

	for rows.Next() {
		var version docsnap.Version
		var opsJSON []byte
		var recordedAt time.Time

		if scanErr := rows.Scan(&version, &opsJSON, &recordedAt); scanErr != nil {
			return nil, errors.Join(docsnap.ErrScanningDBRowFailed, scanErr)
		}

		change, buildErr := decodeChange(documentID, version, opsJSON, recordedAt)
		if buildErr != nil {
			return nil, errors.Join(docsnap.ErrBuildingChangeFailed, buildErr)
		}

		changes = append(changes, change)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(docsnap.ErrQueryingChangesFailed, rowsErr)
	}

	return changes, nil
}

// AppendChange appends one change to the document's log, guarded by optimistic
// concurrency: the current maximum version is checked against expectedVersion
// inside the same transaction as the insert. The change must claim the next
// version slot, expectedVersion+1.
//
// Fails with docsnap.ErrVersionConflict when another writer got there first.
func (s *Store) AppendChange(
	ctx context.Context,
	change docsnap.Change,
	expectedVersion docsnap.Version,
) error {

	if change.Version != expectedVersion+1 {
		return docsnap.ErrVersionConflict
	}

	if guardErr := s.guardOpen(); guardErr != nil {
		return guardErr
	}

	opsJSON, marshalErr := encodeOps(change.Ops)
	if marshalErr != nil {
		return errors.Join(docsnap.ErrAppendingChangeFailed, marshalErr)
	}

	tx, beginErr := s.db.BeginTx(ctx, nil)
	if beginErr != nil {
		return errors.Join(docsnap.ErrAppendingChangeFailed, beginErr)
	}
	defer func() { _ = tx.Rollback() }()

	maxQuery := fmt.Sprintf(
		`SELECT COALESCE(MAX(version), 0) FROM %s WHERE document_id = ?`,
		s.changesTableName)

	var currentVersion docsnap.Version
	if scanErr := tx.QueryRowContext(ctx, maxQuery, change.DocumentID).Scan(&currentVersion); scanErr != nil {
		return errors.Join(docsnap.ErrAppendingChangeFailed, scanErr)
	}

	if currentVersion != expectedVersion {
		s.logOperation("version conflict detected",
			"document_id", change.DocumentID,
			"expected_version", expectedVersion,
			"current_version", currentVersion)

		return docsnap.ErrVersionConflict
	}

	insertQuery := fmt.Sprintf(
		`INSERT INTO %s (document_id, version, ops, recorded_at) VALUES (?, ?, ?, ?)`,
		s.changesTableName)

	_, execErr := tx.ExecContext(ctx, insertQuery,
		change.DocumentID, int64(change.Version), string(opsJSON), change.RecordedAt)
	if execErr != nil {
		return errors.Join(docsnap.ErrAppendingChangeFailed, execErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return errors.Join(docsnap.ErrAppendingChangeFailed, commitErr)
	}

	s.logOperation("change appended",
		"document_id", change.DocumentID,
		"version", change.Version,
		"op_count", len(change.Ops))

	return nil
}

/*** SnapshotStore ***/

// LoadSnapshot retrieves the snapshot at exactly the given version, or - with
// findClosest - the one with the highest version at or before it. Absence is a
// valid, non-error result: (nil, nil).
func (s *Store) LoadSnapshot(
	ctx context.Context,
	documentID string,
	version docsnap.Version,
	findClosest bool,
) (*docsnap.Snapshot, error) {

	if guardErr := s.guardOpen(); guardErr != nil {
		return nil, guardErr
	}

	var query string
	var args []any

	switch {
	case findClosest && version == docsnap.ToLatest:
		query = fmt.Sprintf(
			`SELECT version, data, created_at FROM %s
             WHERE document_id = ? ORDER BY version DESC LIMIT 1`,
			s.snapshotsTableName)
		args = []any{documentID}

	case findClosest:
		query = fmt.Sprintf(
			`SELECT version, data, created_at FROM %s
             WHERE document_id = ? AND version <= ? ORDER BY version DESC LIMIT 1`,
			s.snapshotsTableName)
		args = []any{documentID, int64(version)}

	default:
		query = fmt.Sprintf(
			`SELECT version, data, created_at FROM %s
             WHERE document_id = ? AND version = ?`,
			s.snapshotsTableName)
		args = []any{documentID, int64(version)}
	}

	snapshot := docsnap.Snapshot{DocumentID: documentID}

	scanErr := s.db.QueryRowContext(ctx, query, args...).Scan(&snapshot.Version, &snapshot.Data, &snapshot.CreatedAt)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, nil
	}
	if scanErr != nil {
		return nil, errors.Join(docsnap.ErrLoadingSnapshotFailed, scanErr)
	}

	return &snapshot, nil
}

// SaveSnapshot persists the snapshot, upserting on (document_id, version).
func (s *Store) SaveSnapshot(ctx context.Context, snapshot docsnap.Snapshot) error {
	if validateErr := snapshot.Validate(); validateErr != nil {
		return validateErr
	}

	if guardErr := s.guardOpen(); guardErr != nil {
		return guardErr
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (document_id, version, data, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (document_id, version) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		s.snapshotsTableName)

	_, execErr := s.db.ExecContext(ctx, query,
		snapshot.DocumentID, int64(snapshot.Version), string(snapshot.Data), snapshot.CreatedAt)
	if execErr != nil {
		return errors.Join(docsnap.ErrSavingSnapshotFailed, execErr)
	}

	s.logOperation("snapshot saved",
		"document_id", snapshot.DocumentID,
		"version", snapshot.Version)

	return nil
}

// DeleteSnapshot removes the snapshot stored for (documentID, version).
// Deleting an absent snapshot is a no-op.
func (s *Store) DeleteSnapshot(ctx context.Context, documentID string, version docsnap.Version) error {
	if guardErr := s.guardOpen(); guardErr != nil {
		return guardErr
	}

	query := fmt.Sprintf(
		`DELETE FROM %s WHERE document_id = ? AND version = ?`,
		s.snapshotsTableName)

	_, execErr := s.db.ExecContext(ctx, query, documentID, int64(version))
	if execErr != nil {
		return errors.Join(docsnap.ErrDeletingSnapshotFailed, execErr)
	}

	return nil
}

func (s *Store) logOperation(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func encodeOps(ops []docsnap.Operation) ([]byte, error) {
	stored := make([]storedOperation, 0, len(ops))

	for _, op := range ops {
		stored = append(stored, storedOperation{
			OpType:  op.OpType,
			Payload: op.PayloadJSON,
		})
	}

	return marshaler.Marshal(stored)
}

func decodeChange(
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
