package postgresengine

import (
	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithChangesTableName sets the table name for the append-only change log.
func WithChangesTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return docsnap.ErrEmptyChangesTableName
		}

		s.changesTableName = tableName

		return nil
	}
}

// WithSnapshotsTableName sets the table name for cached snapshots.
func WithSnapshotsTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return docsnap.ErrEmptySnapshotsTableName
		}

		s.snapshotsTableName = tableName

		return nil
	}
}

// WithDocumentsTableName sets the table name for document metadata records.
func WithDocumentsTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return docsnap.ErrEmptyDocumentsTableName
		}

		s.documentsTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: change counts, durations, version conflicts (production-safe)
// Warn level: non-critical issues like row cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger docsnap.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store. It receives
// the same messages as the plain logger, with context information for
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger docsnap.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store. It receives query and
// append durations, change counts, version conflicts, and database errors.
func WithMetrics(collector docsnap.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store. It receives span
// creation for change log and snapshot operations, context propagation, and
// error tracking.
func WithTracing(collector docsnap.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}
