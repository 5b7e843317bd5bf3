package validate

import (
	"context"
	"regexp"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// Event types emitted by the streaming observer.
const (
	EventTypeValidationStarted  = "com.validate.chain.started"
	EventTypeValidatorCompleted = "com.validate.validator.completed"
	EventTypeValidationComplete = "com.validate.chain.completed"
	EventTypeValidationFailed   = "com.validate.chain.failed"
)

// EventSink receives CloudEvents from the streaming observer. Sinks must
// not block; slow consumers should buffer internally.
type EventSink interface {
	Emit(ctx context.Context, event CloudEvent) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event CloudEvent) error

func (f EventSinkFunc) Emit(ctx context.Context, event CloudEvent) error { return f(ctx, event) }

// NewCloudEvent creates a CloudEvent with the standard attributes set and
// the payload JSON-encoded.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

// generateEventID returns a UUIDv7 so event ids sort by creation time.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// sanitizeMessage truncates a message and redacts anything shaped like an
// email address, card number or SSN before it leaves the process.
func sanitizeMessage(message string, maxLength int) string {
	if maxLength > 0 && len(message) > maxLength {
		message = message[:maxLength] + "..."
	}
	for _, pattern := range sanitizePatterns {
		message = pattern.ReplaceAllString(message, "[REDACTED]")
	}
	return message
}

// StreamingObserver publishes validation lifecycle events as CloudEvents
// to registered sinks. Emission failures are logged and dropped; they
// never affect the validation outcome.
type StreamingObserver struct {
	source string
	logger Logger

	mu    sync.RWMutex
	sinks []EventSink
}

// NewStreamingObserver builds a streaming observer publishing events from
// the given source URI.
func NewStreamingObserver(source string, logger Logger) *StreamingObserver {
	if source == "" {
		source = "validate/chain"
	}
	if logger == nil {
		logger = NoopLogger{}
	}
	return &StreamingObserver{source: source, logger: logger}
}

// AddSink registers a sink. Nil sinks are ignored.
func (o *StreamingObserver) AddSink(sink EventSink) {
	if sink == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sinks = append(o.sinks, sink)
}

// SinkCount reports how many sinks are registered.
func (o *StreamingObserver) SinkCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sinks)
}

// ObserverName implements Observer.
func (o *StreamingObserver) ObserverName() string { return "streaming_observer" }

// OnStart implements Observer.
func (o *StreamingObserver) OnStart(ctx context.Context, vc *Context) {
	if vc == nil {
		return
	}
	o.emit(ctx, NewCloudEvent(EventTypeValidationStarted, o.source, map[string]any{
		"request_id": vc.Request.RequestID,
		"endpoint":   vc.Request.Endpoint,
		"mode":       string(vc.Mode),
		"started_at": vc.StartTime.Format(time.RFC3339Nano),
	}, nil))
}

// OnValidatorComplete implements Observer.
func (o *StreamingObserver) OnValidatorComplete(ctx context.Context, name string, result *Result) {
	if result == nil {
		return
	}
	data := map[string]any{
		"validator":      name,
		"status":         string(result.Status),
		"execution_time": result.ExecutionTime.Seconds(),
		"request_id":     result.RequestID,
	}
	if len(result.Errors) > 0 {
		data["error_count"] = len(result.Errors)
		data["error_codes"] = errorCodes(result.Errors, 3)
	}
	if len(result.Warnings) > 0 {
		data["warning_count"] = len(result.Warnings)
		data["warning_codes"] = errorCodes(result.Warnings, 2)
	}
	o.emit(ctx, NewCloudEvent(EventTypeValidatorCompleted, o.source, data, nil))
}

// OnComplete implements Observer.
func (o *StreamingObserver) OnComplete(ctx context.Context, result *Result) {
	if result == nil {
		return
	}
	data := map[string]any{
		"request_id":          result.RequestID,
		"status":              string(result.Status),
		"is_valid":            result.IsValid(),
		"total_errors":        len(result.Errors),
		"total_warnings":      len(result.Warnings),
		"execution_time":      result.ExecutionTime.Seconds(),
		"executed_validators": result.Metrics.ExecutedValidators,
		"success_rate":        result.Metrics.SuccessRate(),
	}

	var critical []map[string]any
	for _, e := range result.Errors {
		if e.Severity < SeverityHigh {
			continue
		}
		critical = append(critical, map[string]any{
			"code":      e.Code,
			"message":   sanitizeMessage(e.Message, 200),
			"severity":  e.Severity.String(),
			"validator": e.Validator,
		})
		if len(critical) == 3 {
			break
		}
	}
	if len(critical) > 0 {
		data["critical_errors"] = critical
	}

	o.emit(ctx, NewCloudEvent(EventTypeValidationComplete, o.source, data, nil))
}

// OnError implements Observer.
func (o *StreamingObserver) OnError(ctx context.Context, err error, vc *Context) {
	data := map[string]any{
		"error":     sanitizeMessage(err.Error(), 200),
		"timestamp": time.Now().Format(time.RFC3339Nano),
	}
	if vc != nil {
		data["request_id"] = vc.Request.RequestID
		data["endpoint"] = vc.Request.Endpoint
		data["validation_path"] = vc.Path
		data["elapsed"] = time.Since(vc.StartTime).Seconds()
	}
	o.emit(ctx, NewCloudEvent(EventTypeValidationFailed, o.source, data, nil))
}

func (o *StreamingObserver) emit(ctx context.Context, event CloudEvent) {
	o.mu.RLock()
	sinks := append([]EventSink{}, o.sinks...)
	o.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Emit(ctx, event); err != nil {
			o.logger.Debug("failed to emit validation event", "eventType", event.Type(), "error", err)
		}
	}
}

func errorCodes(errs []Error, limit int) []string {
	if len(errs) < limit {
		limit = len(errs)
	}
	codes := make([]string, 0, limit)
	for _, e := range errs[:limit] {
		codes = append(codes, e.Code)
	}
	return codes
}
