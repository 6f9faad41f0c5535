package engine

import (
	"context"
	"math"
	"time"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

const (
	logMsgOperation             = "snapshot engine operation: "
	logMsgSnapshotMaterialized  = "snapshot materialized"
	logMsgSnapshotExactHit      = "snapshot exact hit"
	logMsgSnapshotCreated       = "snapshot created"
	logMsgSnapshotSkipped       = "snapshot request skipped"
	logMsgMetadataLookupFailed  = "document metadata lookup failed"
	logMsgSnapshotLoadFailed    = "snapshot load failed"
	logMsgChangeQueryFailed     = "change log query failed"
	logMsgInstanceCreateFailed  = "document instance creation failed"
	logMsgImportFailed          = "snapshot import into instance failed"
	logMsgApplyFailed           = "applying changes failed"
	logMsgExportFailed          = "document export failed"
	logMsgSnapshotSaveFailed    = "snapshot save failed"
	logAttrError                = "error"
	logAttrDocumentID           = "document_id"
	logAttrVersion              = "version"
	logAttrKnownVersion         = "known_version"
	logAttrChangeCount          = "change_count"
	logAttrStrategy             = "strategy"
	logAttrDurationMS           = "duration_ms"
	logAttrReason               = "reason"
	metricReconstructionSeconds = "docsnap_reconstruction_duration_seconds"
	metricChangesReplayed       = "docsnap_changes_replayed"
	metricSnapshotsCreated      = "docsnap_snapshots_created_total"
	metricEngineErrors          = "docsnap_engine_errors_total"
	spanGetSnapshot             = "docsnap.engine.get_snapshot"
	spanCreateSnapshot          = "docsnap.engine.create_snapshot"
	spanAttrDocumentID          = "document_id"
	spanAttrStrategy            = "strategy"
	spanAttrOperation           = "operation"
	statusSuccess               = "success"
	statusError                 = "error"
	strategyIncremental         = "incremental"
	strategyFullReplay          = "full_replay"
	strategyExactHit            = "exact_hit"
)

// logOperation logs operational information at info level if a logger is configured.
// The contextual logger is preferred so messages correlate with active spans.
func (e *Engine) logOperation(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, logMsgOperation+msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Info(logMsgOperation+msg, args...)
	}
}

// logDebug logs development detail at debug level if a logger is configured.
func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

// logError logs error information at error level if a logger is configured.
func (e *Engine) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if e.logger != nil {
		e.logger.Error(msg, allArgs...)
	}
}

// startSpan starts a tracing span if a tracing collector is configured.
func (e *Engine) startSpan(ctx context.Context, name string, documentID string) (context.Context, docsnap.SpanContext) {
	if e.tracingCollector == nil {
		return ctx, nil
	}

	return e.tracingCollector.StartSpan(ctx, name, map[string]string{spanAttrDocumentID: documentID})
}

// finishSpan finishes a tracing span if one was started.
func (e *Engine) finishSpan(span docsnap.SpanContext, status string, strategy string) {
	if e.tracingCollector == nil || span == nil {
		return
	}

	attrs := map[string]string{}
	if strategy != "" {
		attrs[spanAttrStrategy] = strategy
	}

	e.tracingCollector.FinishSpan(span, status, attrs)
}

// recordDuration records an operation duration if a metrics collector is
// configured, using the context-aware method when available.
func (e *Engine) recordDuration(ctx context.Context, operation, strategy, status string, duration time.Duration) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		spanAttrStrategy:  strategy,
		"status":          status,
	}

	if contextual, ok := e.metricsCollector.(docsnap.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricReconstructionSeconds, duration, labels)
		return
	}

	e.metricsCollector.RecordDuration(metricReconstructionSeconds, duration, labels)
}

// recordChangesReplayed records the replay size of one reconstruction if a
// metrics collector is configured.
func (e *Engine) recordChangesReplayed(ctx context.Context, strategy string, count int) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrStrategy: strategy}

	if contextual, ok := e.metricsCollector.(docsnap.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metricChangesReplayed, float64(count), labels)
		return
	}

	e.metricsCollector.RecordValue(metricChangesReplayed, float64(count), labels)
}

// incrementCounter increments a counter metric if a metrics collector is
// configured.
func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(docsnap.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	e.metricsCollector.IncrementCounter(metric, labels)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (e *Engine) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
