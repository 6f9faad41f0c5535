package engine

import (
	"errors"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// ErrInvalidSnapshotFrequency is returned when a non-positive snapshot
// frequency is configured.
var ErrInvalidSnapshotFrequency = errors.New("snapshot frequency must be a positive integer")

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithSnapshotStore configures the snapshot store the engine seeds
// incremental reconstructions from and persists new snapshots to.
// Without it the engine always uses the full-replay strategy and
// RequestSnapshot is a no-op.
func WithSnapshotStore(snapshots SnapshotStore) Option {
	return func(e *Engine) error {
		e.snapshots = snapshots
		return nil
	}
}

// WithSnapshotFrequency sets how often RequestSnapshot actually persists a
// snapshot: only for committed versions that are a multiple of frequency.
// The default is 1, meaning every version is snapshotted.
func WithSnapshotFrequency(frequency uint) Option {
	return func(e *Engine) error {
		if frequency == 0 {
			return ErrInvalidSnapshotFrequency
		}

		e.frequency = frequency

		return nil
	}
}

// WithCodec overrides the default JSON codec used to import snapshot data
// into document instances and export instances back out.
func WithCodec(codec docsnap.Codec) Option {
	return func(e *Engine) error {
		e.codec = codec
		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Debug level: strategy selection and replay sizes (development use)
// Info level: reconstruction and snapshot-creation outcomes (production-safe)
// Error level: failures that abort a reconstruction.
func WithLogger(logger docsnap.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine. Log
// messages carry the request context for automatic trace correlation when
// tracing is enabled.
func WithContextualLogger(logger docsnap.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine. It receives
// reconstruction durations, replayed-change counts, snapshot creation counts
// and error counters.
func WithMetrics(collector docsnap.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine. It receives one
// span per engine operation with document id and strategy attributes.
func WithTracing(collector docsnap.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}
