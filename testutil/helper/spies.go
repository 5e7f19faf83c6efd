package helper

import (
	"context"
	"sync"
	"time"

	"github.com/openshelf/circulation-go/circulation"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// LoggerSpy is a circulation.Logger implementation that captures log calls
// for testing.
type LoggerSpy struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{entries: make([]LogEntry, 0)}
}

func (s *LoggerSpy) Debug(msg string, args ...any) { s.record("debug", msg, args) }
func (s *LoggerSpy) Info(msg string, args ...any)  { s.record("info", msg, args) }
func (s *LoggerSpy) Warn(msg string, args ...any)  { s.record("warn", msg, args) }
func (s *LoggerSpy) Error(msg string, args ...any) { s.record("error", msg, args) }

func (s *LoggerSpy) record(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Entries returns a copy of the captured log entries.
func (s *LoggerSpy) Entries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LogEntry, len(s.entries))
	copy(out, s.entries)

	return out
}

// CountWithPrefix returns how many captured messages start with prefix.
func (s *LoggerSpy) CountWithPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, entry := range s.entries {
		if len(entry.Msg) >= len(prefix) && entry.Msg[:len(prefix)] == prefix {
			count++
		}
	}

	return count
}

// ContextualLoggerSpy is a circulation.ContextualLogger implementation that
// captures context-aware log calls for testing.
type ContextualLoggerSpy struct {
	spy LoggerSpy
}

// NewContextualLoggerSpy creates a new ContextualLoggerSpy.
func NewContextualLoggerSpy() *ContextualLoggerSpy {
	return &ContextualLoggerSpy{}
}

func (s *ContextualLoggerSpy) DebugContext(_ context.Context, msg string, args ...any) {
	s.spy.Debug(msg, args...)
}

func (s *ContextualLoggerSpy) InfoContext(_ context.Context, msg string, args ...any) {
	s.spy.Info(msg, args...)
}

func (s *ContextualLoggerSpy) WarnContext(_ context.Context, msg string, args ...any) {
	s.spy.Warn(msg, args...)
}

func (s *ContextualLoggerSpy) ErrorContext(_ context.Context, msg string, args ...any) {
	s.spy.Error(msg, args...)
}

// Entries returns a copy of the captured log entries.
func (s *ContextualLoggerSpy) Entries() []LogEntry {
	return s.spy.Entries()
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// MetricsCollectorSpy is a circulation.MetricsCollector implementation that
// captures metrics calls for testing.
type MetricsCollectorSpy struct {
	mu              sync.Mutex
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		durationRecords: make([]SpyDurationRecord, 0),
		counterRecords:  make([]SpyCounterRecord, 0),
		valueRecords:    make([]SpyValueRecord, 0),
	}
}

// RecordDuration implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   copyLabels(labels),
	})
}

// IncrementCounter implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{
		Metric: metric,
		Labels: copyLabels(labels),
	})
}

// RecordValue implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{
		Metric: metric,
		Value:  value,
		Labels: copyLabels(labels),
	})
}

// DurationRecords returns a copy of the captured duration records.
func (s *MetricsCollectorSpy) DurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpyDurationRecord, len(s.durationRecords))
	copy(out, s.durationRecords)

	return out
}

// CounterRecords returns a copy of the captured counter records.
func (s *MetricsCollectorSpy) CounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpyCounterRecord, len(s.counterRecords))
	copy(out, s.counterRecords)

	return out
}

// CounterCount returns how many times a counter metric was incremented.
func (s *MetricsCollectorSpy) CounterCount(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.counterRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}

	return out
}

// SpySpan is a recorded tracing span.
type SpySpan struct {
	Name       string
	Attributes map[string]string
	Status     string
	Finished   bool
}

// SetStatus implements the SpanContext interface.
func (s *SpySpan) SetStatus(status string) { s.Status = status }

// AddAttribute implements the SpanContext interface.
func (s *SpySpan) AddAttribute(key, value string) { s.Attributes[key] = value }

// TracingCollectorSpy is a circulation.TracingCollector implementation that
// captures span lifecycles for testing.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpySpan
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{spans: make([]*SpySpan, 0)}
}

// StartSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, circulation.SpanContext) {

	span := &SpySpan{Name: name, Attributes: copyLabels(attrs)}

	s.mu.Lock()
	s.spans = append(s.spans, span)
	s.mu.Unlock()

	return ctx, span
}

// FinishSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) FinishSpan(spanCtx circulation.SpanContext, status string, attrs map[string]string) {
	if span, ok := spanCtx.(*SpySpan); ok {
		s.mu.Lock()
		span.Status = status
		span.Finished = true
		for k, v := range attrs {
			span.Attributes[k] = v
		}
		s.mu.Unlock()
	}
}

// Spans returns the captured spans.
func (s *TracingCollectorSpy) Spans() []*SpySpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*SpySpan, len(s.spans))
	copy(out, s.spans)

	return out
}
