package validate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects emitted events for inspection.
type captureSink struct {
	mu     sync.Mutex
	events []CloudEvent
}

func (c *captureSink) Emit(_ context.Context, event CloudEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) byType(eventType string) []CloudEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []CloudEvent
	for _, e := range c.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func decodeEventData(t *testing.T, event CloudEvent) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(event.Data(), &data))
	return data
}

func TestStreamingObserverLifecycleEvents(t *testing.T) {
	sink := &captureSink{}
	o := NewStreamingObserver("", nil)
	o.AddSink(sink)
	require.Equal(t, 1, o.SinkCount())

	ctx := context.Background()
	vc := NewContext(NewRequestDescriptor("/api/chat", map[string]any{"m": "hi"}))

	o.OnStart(ctx, vc)

	vr := NewResult()
	vr.RequestID = vc.Request.RequestID
	o.OnValidatorComplete(ctx, "security", vr)

	final := NewResult()
	final.RequestID = vc.Request.RequestID
	final.AddError(Error{Code: "XSS_DETECTED", Message: "bad", Severity: SeverityCritical, Validator: "security"})
	o.OnComplete(ctx, final)

	started := sink.byType(EventTypeValidationStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "validate/chain", started[0].Source())
	assert.NotEmpty(t, started[0].ID())
	data := decodeEventData(t, started[0])
	assert.Equal(t, "/api/chat", data["endpoint"])
	assert.Equal(t, vc.Request.RequestID, data["request_id"])

	completed := sink.byType(EventTypeValidatorCompleted)
	require.Len(t, completed, 1)
	data = decodeEventData(t, completed[0])
	assert.Equal(t, "security", data["validator"])
	assert.Equal(t, "success", data["status"])

	finished := sink.byType(EventTypeValidationComplete)
	require.Len(t, finished, 1)
	data = decodeEventData(t, finished[0])
	assert.Equal(t, false, data["is_valid"])
	critical, ok := data["critical_errors"].([]any)
	require.True(t, ok)
	require.Len(t, critical, 1)
}

func TestStreamingObserverErrorEvent(t *testing.T) {
	sink := &captureSink{}
	o := NewStreamingObserver("validate/test", nil)
	o.AddSink(sink)

	vc := NewContext(NewRequestDescriptor("/api/chat", nil))
	vc.AddToPath("security")
	o.OnError(context.Background(), errors.New("backend unavailable"), vc)

	failed := sink.byType(EventTypeValidationFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "validate/test", failed[0].Source())
	data := decodeEventData(t, failed[0])
	assert.Equal(t, "backend unavailable", data["error"])
	assert.Equal(t, []any{"security"}, data["validation_path"])
}

func TestStreamingObserverSinkFailureIsSwallowed(t *testing.T) {
	o := NewStreamingObserver("", nil)
	o.AddSink(EventSinkFunc(func(context.Context, CloudEvent) error {
		return errors.New("sink down")
	}))
	good := &captureSink{}
	o.AddSink(good)

	o.OnComplete(context.Background(), NewResult())

	require.Len(t, good.byType(EventTypeValidationComplete), 1,
		"a failing sink must not block later sinks")
}

func TestSanitizeMessage(t *testing.T) {
	msg := "contact alice@example.com card 4111-1111-1111-1111 ssn 123-45-6789"
	clean := sanitizeMessage(msg, 0)
	assert.NotContains(t, clean, "alice@example.com")
	assert.NotContains(t, clean, "4111-1111-1111-1111")
	assert.NotContains(t, clean, "123-45-6789")
	assert.Equal(t, 3, strings.Count(clean, "[REDACTED]"))

	long := strings.Repeat("x", 300)
	truncated := sanitizeMessage(long, 200)
	assert.Len(t, truncated, 203)
	assert.True(t, strings.HasSuffix(truncated, "..."))
}

func TestNewCloudEventAttributes(t *testing.T) {
	event := NewCloudEvent(EventTypeValidationStarted, "validate/test",
		map[string]any{"k": "v"}, map[string]any{"requestid": "r1"})

	assert.Equal(t, EventTypeValidationStarted, event.Type())
	assert.Equal(t, "validate/test", event.Source())
	assert.NotEmpty(t, event.ID())
	assert.False(t, event.Time().IsZero())
	ext := event.Extensions()
	assert.Equal(t, "r1", ext["requestid"])
}
