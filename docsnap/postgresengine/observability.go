package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

const (
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "document store operation: "
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgBuildChangeFailed  = "failed to build change from database row"
	logMsgDocumentResolved   = "document resolved"
	logMsgDocumentCreated    = "document created"
	logMsgChangesQueried     = "changes queried"
	logMsgChangeAppended     = "change appended"
	logMsgVersionConflict    = "version conflict detected"
	logMsgSnapshotLoaded     = "snapshot loaded"
	logMsgSnapshotSaved      = "snapshot saved"
	logMsgSnapshotDeleted    = "snapshot deleted"

	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrDocumentID      = "document_id"
	logAttrSchemaName      = "schema_name"
	logAttrVersion         = "version"
	logAttrExpectedVersion = "expected_version"
	logAttrChangeCount     = "change_count"
	logAttrOpCount         = "op_count"
	logAttrRowsAffected    = "rows_affected"
	logAttrDurationMS      = "duration_ms"

	operationGetDocument    = "get_document"
	operationCreateDocument = "create_document"
	operationGetChanges     = "get_changes"
	operationAppendChange   = "append_change"
	operationLoadSnapshot   = "load_snapshot"
	operationSaveSnapshot   = "save_snapshot"
	operationDeleteSnapshot = "delete_snapshot"

	spanNameGetChanges   = "docsnap.store.get_changes"
	spanNameAppendChange = "docsnap.store.append_change"
	spanAttrOperation    = "operation"
	spanAttrDocumentID   = "document_id"

	metricQueryDuration        = "docsnap_store_query_duration_seconds"
	metricAppendDuration       = "docsnap_store_append_duration_seconds"
	metricSnapshotSaveDuration = "docsnap_store_snapshot_save_duration_seconds"
	metricDatabaseErrors       = "docsnap_store_database_errors_total"
	metricVersionConflicts     = "docsnap_store_version_conflicts_total"

	statusSuccess = "success"
	statusError   = "error"
)

// logQueryWithDuration logs SQL statements with execution time at debug level
// if a logger is configured.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (s Store) logOperation(ctx context.Context, action string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at error level if a logger is configured.
func (s Store) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s Store) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// startSpan starts a tracing span if the tracing collector is configured.
func (s Store) startSpan(ctx context.Context, name string, documentID string) (context.Context, docsnap.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, name, map[string]string{
		spanAttrDocumentID: documentID,
	})
}

// finishSpan finishes a tracing span if one was started.
func (s Store) finishSpan(span docsnap.SpanContext, status string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	s.tracingCollector.FinishSpan(span, status, nil)
}

// recordDuration records an operation duration, context-aware when the
// collector supports it.
func (s Store) recordDuration(ctx context.Context, metric string, operation string, duration time.Duration) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusSuccess,
	}

	if contextual, ok := s.metricsCollector.(docsnap.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metric, duration, labels)
}

// recordError increments the database error counter, context-aware when the
// collector supports it.
func (s Store) recordError(ctx context.Context, operation string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
	}

	if contextual, ok := s.metricsCollector.(docsnap.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
}

// recordConflict increments the version conflict counter, context-aware when
// the collector supports it.
func (s Store) recordConflict(ctx context.Context) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationAppendChange,
		"conflict_type":   "version",
	}

	if contextual, ok := s.metricsCollector.(docsnap.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricVersionConflicts, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metricVersionConflicts, labels)
}
