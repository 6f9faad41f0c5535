package doubles

import (
	"context"
	"sync"
	"time"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// MetricsCollectorSpy captures metric calls for assertions.
type MetricsCollectorSpy struct {
	mu        sync.Mutex
	Durations map[string]int
	Counters  map[string]int
	Values    map[string]float64
}

// NewMetricsCollectorSpy creates an empty metrics collector spy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		Durations: make(map[string]int),
		Counters:  make(map[string]int),
		Values:    make(map[string]float64),
	}
}

// RecordDuration counts a duration recording for the metric name.
func (s *MetricsCollectorSpy) RecordDuration(metric string, _ time.Duration, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Durations[metric]++
}

// IncrementCounter counts an increment for the metric name.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Counters[metric]++
}

// RecordValue stores the last value recorded for the metric name.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Values[metric] = value
}

// DurationCount returns how often a duration was recorded for the metric name.
func (s *MetricsCollectorSpy) DurationCount(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Durations[metric]
}

// CounterCount returns how often the counter was incremented.
func (s *MetricsCollectorSpy) CounterCount(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Counters[metric]
}

// LastValue returns the last value recorded for the metric name.
func (s *MetricsCollectorSpy) LastValue(metric string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Values[metric]
}

var _ docsnap.MetricsCollector = (*MetricsCollectorSpy)(nil)

// SpySpan is the span implementation handed out by TracingCollectorSpy.
type SpySpan struct {
	Name       string
	Status     string
	Attributes map[string]string
	Finished   bool
}

// SetStatus records the span status.
func (s *SpySpan) SetStatus(status string) { s.Status = status }

// AddAttribute records a span attribute.
func (s *SpySpan) AddAttribute(key, value string) { s.Attributes[key] = value }

var _ docsnap.SpanContext = (*SpySpan)(nil)

// TracingCollectorSpy captures span lifecycles for assertions.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	Spans []*SpySpan
}

// NewTracingCollectorSpy creates an empty tracing collector spy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan records a new span and returns it.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, docsnap.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span := &SpySpan{Name: name, Attributes: make(map[string]string)}
	for key, value := range attrs {
		span.Attributes[key] = value
	}

	s.Spans = append(s.Spans, span)

	return ctx, span
}

// FinishSpan marks the span finished with the given status and attributes.
func (s *TracingCollectorSpy) FinishSpan(spanCtx docsnap.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpan)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	span.Status = status
	span.Finished = true

	for key, value := range attrs {
		span.Attributes[key] = value
	}
}

// FinishedSpans returns all spans that were finished, in start order.
func (s *TracingCollectorSpy) FinishedSpans() []*SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := make([]*SpySpan, 0, len(s.Spans))

	for _, span := range s.Spans {
		if span.Finished {
			finished = append(finished, span)
		}
	}

	return finished
}

var _ docsnap.TracingCollector = (*TracingCollectorSpy)(nil)
