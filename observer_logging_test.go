package validate

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  map[string]any
}

func (l *recordingLogger) log(level, msg string, args ...any) {
	kv := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			kv[key] = args[i+1]
		}
	}
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: kv})
	l.mu.Unlock()
}

func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }

func (l *recordingLogger) byMessage(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func TestLoggingObserverMasksSessionID(t *testing.T) {
	logger := &recordingLogger{}
	o := NewLoggingObserver(logger, DefaultLoggingObserverConfig())

	req := NewRequestDescriptor("/api/chat", map[string]any{"b": 1, "a": 2})
	req.SessionID = "abcdef1234567890"
	o.OnStart(context.Background(), NewContext(req))

	started := logger.byMessage("validation started")
	if len(started) != 1 {
		t.Fatalf("start entries = %d, want 1", len(started))
	}
	if got := started[0].args["sessionId"]; got != "abcd****7890" {
		t.Fatalf("masked session id = %v, want abcd****7890", got)
	}
	if got := started[0].args["payloadKeys"]; got != "a,b" {
		t.Fatalf("payload keys = %v, want sorted a,b", got)
	}
}

func TestLoggingObserverShortSessionIDFullyMasked(t *testing.T) {
	logger := &recordingLogger{}
	o := NewLoggingObserver(logger, DefaultLoggingObserverConfig())

	req := NewRequestDescriptor("/api/chat", nil)
	req.SessionID = "short"
	o.OnStart(context.Background(), NewContext(req))

	if got := logger.byMessage("validation started")[0].args["sessionId"]; got != "****" {
		t.Fatalf("short session id = %v, want ****", got)
	}
}

func TestLoggingObserverSkipsSuccessByDefault(t *testing.T) {
	logger := &recordingLogger{}
	o := NewLoggingObserver(logger, DefaultLoggingObserverConfig())

	o.OnValidatorComplete(context.Background(), "security", NewResult())
	o.OnComplete(context.Background(), NewResult())

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.entries) != 0 {
		t.Fatalf("successful validation logged %d entries, want 0", len(logger.entries))
	}
}

func TestLoggingObserverLogsSuccessWhenConfigured(t *testing.T) {
	logger := &recordingLogger{}
	cfg := DefaultLoggingObserverConfig()
	cfg.LogSuccessful = true
	o := NewLoggingObserver(logger, cfg)

	o.OnValidatorComplete(context.Background(), "security", NewResult())
	o.OnComplete(context.Background(), NewResult())

	if len(logger.byMessage("validator passed")) != 1 {
		t.Fatal("validator success not logged")
	}
	if len(logger.byMessage("validation completed")) != 1 {
		t.Fatal("completion not logged")
	}
}

func TestLoggingObserverLogsFailures(t *testing.T) {
	logger := &recordingLogger{}
	o := NewLoggingObserver(logger, DefaultLoggingObserverConfig())

	failed := NewResult()
	failed.AddError(Error{Code: "XSS_DETECTED", Severity: SeverityCritical, Validator: "security"})
	failed.AddError(Error{Code: "SQL_INJECTION_DETECTED", Severity: SeverityCritical, Validator: "security"})
	o.OnValidatorComplete(context.Background(), "security", failed)
	o.OnComplete(context.Background(), failed)

	entries := logger.byMessage("validator failed")
	if len(entries) != 1 {
		t.Fatalf("validator failure entries = %d", len(entries))
	}
	if got := entries[0].args["errors"]; got != "XSS_DETECTED,SQL_INJECTION_DETECTED" {
		t.Fatalf("error summary = %v", got)
	}

	completes := logger.byMessage("validation failed")
	if len(completes) != 1 {
		t.Fatalf("completion failure entries = %d", len(completes))
	}
}

func TestLoggingObserverOnError(t *testing.T) {
	logger := &recordingLogger{}
	o := NewLoggingObserver(logger, DefaultLoggingObserverConfig())

	vc := NewContext(NewRequestDescriptor("/api/chat", nil))
	vc.AddToPath("security")
	vc.AddToPath("size")
	o.OnError(context.Background(), errors.New("store unavailable"), vc)

	entries := logger.byMessage("validation system error")
	if len(entries) != 1 {
		t.Fatalf("error entries = %d", len(entries))
	}
	if got := entries[0].args["validationPath"]; got != "security,size" {
		t.Fatalf("validation path = %v", got)
	}
	if entries[0].level != "error" {
		t.Fatalf("level = %q, want error", entries[0].level)
	}
}
