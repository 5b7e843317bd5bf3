package validate

import (
	"context"
	"sort"
	"sync"
	"time"
)

const metricsTimingHistoryLimit = 1000

// ValidatorStats is the per-validator slice of a metrics snapshot.
type ValidatorStats struct {
	Executions        int           `json:"executions"`
	Successes         int           `json:"successes"`
	Failures          int           `json:"failures"`
	SuccessRate       float64       `json:"successRate"`
	AverageTime       time.Duration `json:"averageTime"`
	CacheHits         int           `json:"cacheHits"`
	CacheMisses       int           `json:"cacheMisses"`
	CacheHitRate      float64       `json:"cacheHitRate"`
	LastExecutionTime time.Duration `json:"lastExecutionTime"`
}

// EndpointStats aggregates validation outcomes per endpoint.
type EndpointStats struct {
	TotalRequests      int           `json:"totalRequests"`
	SuccessfulRequests int           `json:"successfulRequests"`
	FailedRequests     int           `json:"failedRequests"`
	TotalTime          time.Duration `json:"totalTime"`
	AverageTime        time.Duration `json:"averageTime"`
}

// MetricsSnapshot is a point-in-time copy of everything the metrics
// observer has collected. It is safe to retain and serialize.
type MetricsSnapshot struct {
	Uptime                time.Duration             `json:"uptime"`
	TotalValidations      int                       `json:"totalValidations"`
	SuccessfulValidations int                       `json:"successfulValidations"`
	FailedValidations     int                       `json:"failedValidations"`
	OverallSuccessRate    float64                   `json:"overallSuccessRate"`
	TotalExecutionTime    time.Duration             `json:"totalExecutionTime"`
	AverageExecutionTime  time.Duration             `json:"averageExecutionTime"`
	Validators            map[string]ValidatorStats `json:"validators"`
	ErrorCodes            map[string]int            `json:"errorCodes"`
	ErrorSeverities       map[string]int            `json:"errorSeverities"`
	ErrorValidators       map[string]int            `json:"errorValidators"`
	Endpoints             map[string]EndpointStats  `json:"endpoints"`
	CollectedAt           time.Time                 `json:"collectedAt"`
	LastResetAt           time.Time                 `json:"lastResetAt"`
}

// TopErrorCodes returns up to limit error codes ordered by descending
// count, ties broken alphabetically.
func (s MetricsSnapshot) TopErrorCodes(limit int) []string {
	codes := make([]string, 0, len(s.ErrorCodes))
	for code := range s.ErrorCodes {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if s.ErrorCodes[codes[i]] != s.ErrorCodes[codes[j]] {
			return s.ErrorCodes[codes[i]] > s.ErrorCodes[codes[j]]
		}
		return codes[i] < codes[j]
	})
	if len(codes) > limit {
		codes = codes[:limit]
	}
	return codes
}

type validatorRecord struct {
	times       []time.Duration
	totalTime   time.Duration
	successes   int
	failures    int
	cacheHits   int
	cacheMisses int
}

// MetricsObserver collects validation statistics across requests. All
// counters are guarded by one mutex; per-validator timing history is
// bounded to the most recent entries.
type MetricsObserver struct {
	mu sync.Mutex

	validators map[string]*validatorRecord

	totalValidations      int
	successfulValidations int
	failedValidations     int
	totalExecutionTime    time.Duration

	errorCodes      map[string]int
	errorSeverities map[string]int
	errorValidators map[string]int

	endpoints map[string]*EndpointStats

	startedAt   time.Time
	lastResetAt time.Time
}

// NewMetricsObserver builds an empty metrics observer.
func NewMetricsObserver() *MetricsObserver {
	now := time.Now()
	return &MetricsObserver{
		validators:      make(map[string]*validatorRecord),
		errorCodes:      make(map[string]int),
		errorSeverities: make(map[string]int),
		errorValidators: make(map[string]int),
		endpoints:       make(map[string]*EndpointStats),
		startedAt:       now,
		lastResetAt:     now,
	}
}

// ObserverName implements Observer.
func (o *MetricsObserver) ObserverName() string { return "metrics_observer" }

// OnStart implements Observer.
func (o *MetricsObserver) OnStart(context.Context, *Context) {}

// OnValidatorComplete implements Observer.
func (o *MetricsObserver) OnValidatorComplete(_ context.Context, name string, result *Result) {
	if result == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	rec := o.validators[name]
	if rec == nil {
		rec = &validatorRecord{}
		o.validators[name] = rec
	}

	rec.times = append(rec.times, result.ExecutionTime)
	rec.totalTime += result.ExecutionTime
	if len(rec.times) > metricsTimingHistoryLimit {
		dropped := rec.times[0]
		rec.times = rec.times[1:]
		rec.totalTime -= dropped
	}

	if result.Status == StatusError {
		rec.failures++
	} else {
		rec.successes++
	}

	rec.cacheHits += result.Metrics.CacheHits
	rec.cacheMisses += result.Metrics.CacheMisses
}

// OnComplete implements Observer.
func (o *MetricsObserver) OnComplete(_ context.Context, result *Result) {
	if result == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.totalValidations++
	o.totalExecutionTime += result.ExecutionTime
	if result.IsValid() {
		o.successfulValidations++
	} else {
		o.failedValidations++
	}

	for _, e := range result.Errors {
		o.errorCodes[e.Code]++
		o.errorSeverities[e.Severity.String()]++
		if e.Validator != "" {
			o.errorValidators[e.Validator]++
		}
	}
}

// OnError implements Observer.
func (o *MetricsObserver) OnError(_ context.Context, err error, vc *Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.errorCodes[CodeInternalValidationError]++
	o.errorSeverities[SeverityCritical.String()]++
	if vc != nil {
		o.recordEndpointLocked(vc.Request.Endpoint, false, time.Since(vc.StartTime))
	}
}

// RecordEndpoint records an endpoint-level outcome. Called by the HTTP
// layer after the full validation pass.
func (o *MetricsObserver) RecordEndpoint(endpoint string, success bool, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recordEndpointLocked(endpoint, success, elapsed)
}

func (o *MetricsObserver) recordEndpointLocked(endpoint string, success bool, elapsed time.Duration) {
	if endpoint == "" {
		return
	}
	stats := o.endpoints[endpoint]
	if stats == nil {
		stats = &EndpointStats{}
		o.endpoints[endpoint] = stats
	}
	stats.TotalRequests++
	stats.TotalTime += elapsed
	if success {
		stats.SuccessfulRequests++
	} else {
		stats.FailedRequests++
	}
	stats.AverageTime = stats.TotalTime / time.Duration(stats.TotalRequests)
}

// Snapshot copies the current metrics.
func (o *MetricsObserver) Snapshot() MetricsSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	snap := MetricsSnapshot{
		Uptime:                now.Sub(o.startedAt),
		TotalValidations:      o.totalValidations,
		SuccessfulValidations: o.successfulValidations,
		FailedValidations:     o.failedValidations,
		TotalExecutionTime:    o.totalExecutionTime,
		Validators:            make(map[string]ValidatorStats, len(o.validators)),
		ErrorCodes:            make(map[string]int, len(o.errorCodes)),
		ErrorSeverities:       make(map[string]int, len(o.errorSeverities)),
		ErrorValidators:       make(map[string]int, len(o.errorValidators)),
		Endpoints:             make(map[string]EndpointStats, len(o.endpoints)),
		CollectedAt:           now,
		LastResetAt:           o.lastResetAt,
	}
	if o.totalValidations > 0 {
		snap.OverallSuccessRate = float64(o.successfulValidations) / float64(o.totalValidations)
		snap.AverageExecutionTime = o.totalExecutionTime / time.Duration(o.totalValidations)
	}

	for name, rec := range o.validators {
		stats := ValidatorStats{
			Executions:  rec.successes + rec.failures,
			Successes:   rec.successes,
			Failures:    rec.failures,
			CacheHits:   rec.cacheHits,
			CacheMisses: rec.cacheMisses,
		}
		if stats.Executions > 0 {
			stats.SuccessRate = float64(rec.successes) / float64(stats.Executions)
		}
		if len(rec.times) > 0 {
			stats.AverageTime = rec.totalTime / time.Duration(len(rec.times))
			stats.LastExecutionTime = rec.times[len(rec.times)-1]
		}
		if total := rec.cacheHits + rec.cacheMisses; total > 0 {
			stats.CacheHitRate = float64(rec.cacheHits) / float64(total)
		}
		snap.Validators[name] = stats
	}

	for code, count := range o.errorCodes {
		snap.ErrorCodes[code] = count
	}
	for severity, count := range o.errorSeverities {
		snap.ErrorSeverities[severity] = count
	}
	for validator, count := range o.errorValidators {
		snap.ErrorValidators[validator] = count
	}
	for endpoint, stats := range o.endpoints {
		snap.Endpoints[endpoint] = *stats
	}

	return snap
}

// Reset clears all collected metrics but keeps the observer registered.
func (o *MetricsObserver) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.validators = make(map[string]*validatorRecord)
	o.totalValidations = 0
	o.successfulValidations = 0
	o.failedValidations = 0
	o.totalExecutionTime = 0
	o.errorCodes = make(map[string]int)
	o.errorSeverities = make(map[string]int)
	o.errorValidators = make(map[string]int)
	o.endpoints = make(map[string]*EndpointStats)
	o.lastResetAt = time.Now()
}
