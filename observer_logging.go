package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LoggingObserverConfig controls what the logging observer records.
type LoggingObserverConfig struct {
	LogSuccessful     bool
	IncludeRequest    bool
	IncludePath       bool
	MaxContentLength  int
	MaskSensitiveData bool
}

// DefaultLoggingObserverConfig returns the production defaults: failures
// are logged, successes are not, and payload values are masked.
func DefaultLoggingObserverConfig() LoggingObserverConfig {
	return LoggingObserverConfig{
		LogSuccessful:     false,
		IncludeRequest:    true,
		IncludePath:       true,
		MaxContentLength:  200,
		MaskSensitiveData: true,
	}
}

// LoggingObserver writes structured log entries for validation lifecycle
// events. Payload values are never logged; only shape summaries are.
type LoggingObserver struct {
	logger Logger
	config LoggingObserverConfig
}

// NewLoggingObserver builds a logging observer. A nil logger is replaced
// with a no-op logger.
func NewLoggingObserver(logger Logger, config LoggingObserverConfig) *LoggingObserver {
	if logger == nil {
		logger = NoopLogger{}
	}
	if config.MaxContentLength <= 0 {
		config.MaxContentLength = 200
	}
	return &LoggingObserver{logger: logger, config: config}
}

// ObserverName implements Observer.
func (o *LoggingObserver) ObserverName() string { return "logging_observer" }

// OnStart implements Observer.
func (o *LoggingObserver) OnStart(_ context.Context, vc *Context) {
	if vc == nil {
		return
	}
	args := []any{"requestId", vc.Request.RequestID}
	if o.config.IncludeRequest {
		args = append(args,
			"endpoint", vc.Request.Endpoint,
			"clientIp", vc.Request.ClientIP,
			"userId", vc.Request.UserID,
			"sessionId", o.maskSessionID(vc.Request.SessionID),
			"mode", string(vc.Mode),
			"payloadKeys", payloadKeySummary(vc.Request.Payload),
		)
	}
	o.logger.Info("validation started", args...)
}

// OnValidatorComplete implements Observer.
func (o *LoggingObserver) OnValidatorComplete(_ context.Context, name string, result *Result) {
	if result == nil {
		return
	}
	switch result.Status {
	case StatusSuccess:
		if !o.config.LogSuccessful {
			return
		}
		o.logger.Debug("validator passed", "validator", name, "executionTime", result.ExecutionTime)
	case StatusWarning:
		o.logger.Warn("validator reported warnings",
			"validator", name,
			"warnings", o.codeSummary(result.Warnings, 2),
			"executionTime", result.ExecutionTime)
	default:
		o.logger.Warn("validator failed",
			"validator", name,
			"errors", o.codeSummary(result.Errors, 3),
			"executionTime", result.ExecutionTime)
	}
}

// OnComplete implements Observer.
func (o *LoggingObserver) OnComplete(_ context.Context, result *Result) {
	if result == nil {
		return
	}
	if result.IsValid() && !o.config.LogSuccessful {
		return
	}

	args := []any{
		"requestId", result.RequestID,
		"status", string(result.Status),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"executionTime", result.ExecutionTime,
		"executedValidators", result.Metrics.ExecutedValidators,
		"skippedValidators", result.Metrics.SkippedValidators,
		"successRate", result.Metrics.SuccessRate(),
		"cacheHitRate", result.Metrics.CacheHitRate(),
	}
	if len(result.Errors) > 0 {
		args = append(args, "errorCodes", o.codeSummary(result.Errors, 5))
	}

	if result.IsValid() {
		o.logger.Info("validation completed", args...)
	} else {
		o.logger.Warn("validation failed", args...)
	}
}

// OnError implements Observer.
func (o *LoggingObserver) OnError(_ context.Context, err error, vc *Context) {
	args := []any{"error", truncate(fmt.Sprint(err), o.config.MaxContentLength)}
	if vc != nil {
		args = append(args, "requestId", vc.Request.RequestID, "endpoint", vc.Request.Endpoint)
		if o.config.IncludePath {
			args = append(args, "validationPath", strings.Join(vc.Path, ","))
		}
		args = append(args, "elapsed", time.Since(vc.StartTime))
	}
	o.logger.Error("validation system error", args...)
}

func (o *LoggingObserver) codeSummary(errs []Error, limit int) string {
	if len(errs) < limit {
		limit = len(errs)
	}
	codes := make([]string, 0, limit)
	for _, e := range errs[:limit] {
		codes = append(codes, e.Code)
	}
	return strings.Join(codes, ",")
}

func (o *LoggingObserver) maskSessionID(sessionID string) string {
	if !o.config.MaskSensitiveData || sessionID == "" {
		return sessionID
	}
	if len(sessionID) <= 8 {
		return "****"
	}
	return sessionID[:4] + "****" + sessionID[len(sessionID)-4:]
}

// payloadKeySummary lists the top-level payload keys without any values.
func payloadKeySummary(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
