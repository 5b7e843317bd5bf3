package validate

import (
	"context"
	"testing"
	"time"
)

func passingResult(d time.Duration) *Result {
	r := NewResult()
	r.ExecutionTime = d
	return r
}

func failedResult(code string, severity Severity, validator string) *Result {
	r := NewResult()
	r.AddError(Error{Code: code, Severity: severity, Validator: validator})
	return r
}

func TestMetricsObserverValidatorStats(t *testing.T) {
	o := NewMetricsObserver()
	ctx := context.Background()

	o.OnValidatorComplete(ctx, "security", passingResult(10*time.Millisecond))
	o.OnValidatorComplete(ctx, "security", passingResult(30*time.Millisecond))
	o.OnValidatorComplete(ctx, "security", failedResult("XSS_DETECTED", SeverityCritical, "security"))

	snap := o.Snapshot()
	stats, ok := snap.Validators["security"]
	if !ok {
		t.Fatal("no stats for security validator")
	}
	if stats.Executions != 3 || stats.Successes != 2 || stats.Failures != 1 {
		t.Fatalf("executions=%d successes=%d failures=%d", stats.Executions, stats.Successes, stats.Failures)
	}
	if got := stats.SuccessRate; got < 0.66 || got > 0.67 {
		t.Fatalf("success rate = %v, want ~0.667", got)
	}
	if stats.LastExecutionTime != 0 {
		t.Fatalf("last execution time = %v, want 0 (failed result had no timing)", stats.LastExecutionTime)
	}
}

func TestMetricsObserverCompletionCounters(t *testing.T) {
	o := NewMetricsObserver()
	ctx := context.Background()

	o.OnComplete(ctx, passingResult(20*time.Millisecond))
	o.OnComplete(ctx, failedResult("RATE_LIMIT_EXCEEDED", SeverityHigh, "rate_limit"))
	o.OnComplete(ctx, failedResult("RATE_LIMIT_EXCEEDED", SeverityHigh, "rate_limit"))

	snap := o.Snapshot()
	if snap.TotalValidations != 3 || snap.SuccessfulValidations != 1 || snap.FailedValidations != 2 {
		t.Fatalf("totals = %d/%d/%d", snap.TotalValidations, snap.SuccessfulValidations, snap.FailedValidations)
	}
	if got := snap.OverallSuccessRate; got < 0.33 || got > 0.34 {
		t.Fatalf("overall success rate = %v", got)
	}
	if snap.ErrorCodes["RATE_LIMIT_EXCEEDED"] != 2 {
		t.Fatalf("error code count = %d, want 2", snap.ErrorCodes["RATE_LIMIT_EXCEEDED"])
	}
	if snap.ErrorSeverities["high"] != 2 {
		t.Fatalf("severity count = %d, want 2", snap.ErrorSeverities["high"])
	}
	if snap.ErrorValidators["rate_limit"] != 2 {
		t.Fatalf("validator error count = %d, want 2", snap.ErrorValidators["rate_limit"])
	}
}

func TestMetricsObserverCacheCounters(t *testing.T) {
	o := NewMetricsObserver()
	ctx := context.Background()

	hit := passingResult(time.Millisecond)
	hit.Metrics.CacheHits = 1
	miss := passingResult(time.Millisecond)
	miss.Metrics.CacheMisses = 1

	o.OnValidatorComplete(ctx, "security", miss)
	o.OnValidatorComplete(ctx, "security", hit)
	o.OnValidatorComplete(ctx, "security", hit)

	stats := o.Snapshot().Validators["security"]
	if stats.CacheHits != 2 || stats.CacheMisses != 1 {
		t.Fatalf("cache hits=%d misses=%d", stats.CacheHits, stats.CacheMisses)
	}
	if got := stats.CacheHitRate; got < 0.66 || got > 0.67 {
		t.Fatalf("cache hit rate = %v", got)
	}
}

func TestMetricsObserverOnError(t *testing.T) {
	o := NewMetricsObserver()
	vc := NewContext(NewRequestDescriptor("/api/chat", nil))

	o.OnError(context.Background(), ErrValidatorPanic, vc)

	snap := o.Snapshot()
	if snap.ErrorCodes[CodeInternalValidationError] != 1 {
		t.Fatalf("internal error count = %d, want 1", snap.ErrorCodes[CodeInternalValidationError])
	}
	ep, ok := snap.Endpoints["/api/chat"]
	if !ok || ep.FailedRequests != 1 {
		t.Fatalf("endpoint stats = %+v", ep)
	}
}

func TestMetricsObserverRecordEndpoint(t *testing.T) {
	o := NewMetricsObserver()
	o.RecordEndpoint("/api/chat", true, 10*time.Millisecond)
	o.RecordEndpoint("/api/chat", false, 30*time.Millisecond)

	ep := o.Snapshot().Endpoints["/api/chat"]
	if ep.TotalRequests != 2 || ep.SuccessfulRequests != 1 || ep.FailedRequests != 1 {
		t.Fatalf("endpoint stats = %+v", ep)
	}
	if ep.AverageTime != 20*time.Millisecond {
		t.Fatalf("average time = %v, want 20ms", ep.AverageTime)
	}
}

func TestMetricsObserverReset(t *testing.T) {
	o := NewMetricsObserver()
	ctx := context.Background()
	o.OnComplete(ctx, failedResult("E", SeverityHigh, "v"))
	o.OnValidatorComplete(ctx, "v", passingResult(time.Millisecond))

	o.Reset()

	snap := o.Snapshot()
	if snap.TotalValidations != 0 || len(snap.Validators) != 0 || len(snap.ErrorCodes) != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
	if !snap.LastResetAt.After(snap.LastResetAt.Add(-time.Second)) {
		t.Fatal("reset timestamp not refreshed")
	}
}

func TestTopErrorCodes(t *testing.T) {
	snap := MetricsSnapshot{ErrorCodes: map[string]int{
		"B": 3, "A": 3, "C": 5, "D": 1,
	}}
	got := snap.TopErrorCodes(3)
	want := []string{"C", "A", "B"}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("TopErrorCodes = %v, want %v", got, want)
	}
}
