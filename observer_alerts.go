package validate

import (
	"context"
	"sync"
	"time"
)

// Alert types raised by the alerting observer.
const (
	AlertSuccessRate   = "success_rate"
	AlertExecutionTime = "avg_execution_time"
	AlertErrorRate     = "error_rate"
	AlertCacheHitRate  = "cache_hit_rate"
)

// TrendDirection classifies how a metric has been moving.
type TrendDirection string

const (
	TrendRising       TrendDirection = "rising"
	TrendFalling      TrendDirection = "falling"
	TrendFlat         TrendDirection = "flat"
	TrendInsufficient TrendDirection = "insufficient_data"
)

// Alert describes one threshold violation.
type Alert struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Current   float64   `json:"current"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertHandler receives alerts synchronously as they fire.
type AlertHandler func(Alert)

// AlertThresholds holds the watched bounds. Success rate and cache hit
// rate are floors, execution time and error rate are ceilings.
type AlertThresholds struct {
	MinSuccessRate   float64       `json:"minSuccessRate" yaml:"min_success_rate"`
	MaxExecutionTime time.Duration `json:"maxExecutionTime" yaml:"max_execution_time"`
	MaxErrorRate     float64       `json:"maxErrorRate" yaml:"max_error_rate"`
	MinCacheHitRate  float64       `json:"minCacheHitRate" yaml:"min_cache_hit_rate"`
}

// DefaultAlertThresholds returns the production defaults.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MinSuccessRate:   0.95,
		MaxExecutionTime: 100 * time.Millisecond,
		MaxErrorRate:     0.1,
		MinCacheHitRate:  0.7,
	}
}

type trendPoint struct {
	at    time.Time
	value float64
}

// TrendStats summarizes the recorded history of one metric.
type TrendStats struct {
	Metric     string         `json:"metric"`
	Current    float64        `json:"current"`
	Previous   float64        `json:"previous"`
	Average    float64        `json:"average"`
	Min        float64        `json:"min"`
	Max        float64        `json:"max"`
	ChangeRate float64        `json:"changeRate"`
	Direction  TrendDirection `json:"direction"`
	DataPoints int            `json:"dataPoints"`
	TimeSpan   time.Duration  `json:"timeSpan"`
}

// TrendAnalyzer keeps a bounded rolling window of metric samples and
// classifies their direction. The direction compares the mean of the five
// most recent samples against the mean of everything older.
type TrendAnalyzer struct {
	mu         sync.Mutex
	windowSize int
	history    map[string][]trendPoint
}

// NewTrendAnalyzer builds an analyzer keeping at most windowSize samples
// per metric. Non-positive sizes fall back to 100.
func NewTrendAnalyzer(windowSize int) *TrendAnalyzer {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &TrendAnalyzer{
		windowSize: windowSize,
		history:    make(map[string][]trendPoint),
	}
}

// Record appends a sample for the metric, evicting the oldest sample when
// the window is full.
func (t *TrendAnalyzer) Record(metric string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	points := append(t.history[metric], trendPoint{at: time.Now(), value: value})
	if len(points) > t.windowSize {
		points = points[len(points)-t.windowSize:]
	}
	t.history[metric] = points
}

// Trend returns the trend for one metric, or ok=false with fewer than two
// samples.
func (t *TrendAnalyzer) Trend(metric string) (TrendStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trendLocked(metric)
}

// Trends returns trends for every metric with enough samples.
func (t *TrendAnalyzer) Trends() map[string]TrendStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	trends := make(map[string]TrendStats, len(t.history))
	for metric := range t.history {
		if stats, ok := t.trendLocked(metric); ok {
			trends[metric] = stats
		}
	}
	return trends
}

func (t *TrendAnalyzer) trendLocked(metric string) (TrendStats, bool) {
	points := t.history[metric]
	if len(points) < 2 {
		return TrendStats{}, false
	}

	stats := TrendStats{
		Metric:     metric,
		Current:    points[len(points)-1].value,
		Previous:   points[len(points)-2].value,
		Min:        points[0].value,
		Max:        points[0].value,
		DataPoints: len(points),
		TimeSpan:   points[len(points)-1].at.Sub(points[0].at),
	}

	var sum float64
	for _, p := range points {
		sum += p.value
		if p.value < stats.Min {
			stats.Min = p.value
		}
		if p.value > stats.Max {
			stats.Max = p.value
		}
	}
	stats.Average = sum / float64(len(points))

	if stats.Previous != 0 {
		stats.ChangeRate = (stats.Current - stats.Previous) / stats.Previous
	}

	if len(points) < 5 {
		stats.Direction = TrendInsufficient
		return stats, true
	}

	var recent float64
	for _, p := range points[len(points)-5:] {
		recent += p.value
	}
	recent /= 5

	older := stats.Average
	if len(points) > 5 {
		var olderSum float64
		for _, p := range points[:len(points)-5] {
			olderSum += p.value
		}
		older = olderSum / float64(len(points)-5)
	}

	switch {
	case recent > older:
		stats.Direction = TrendRising
	case recent < older:
		stats.Direction = TrendFalling
	default:
		stats.Direction = TrendFlat
	}
	return stats, true
}

// AlertingMetricsObserver extends MetricsObserver with threshold alerts
// and trend recording. After every completed validation it re-evaluates
// the aggregate metrics against the configured thresholds, recording a
// bounded alert history and invoking registered handlers synchronously.
type AlertingMetricsObserver struct {
	*MetricsObserver

	thresholds AlertThresholds
	trends     *TrendAnalyzer

	alertMu      sync.Mutex
	handlers     []AlertHandler
	alertHistory []Alert
	historyLimit int
}

// NewAlertingMetricsObserver builds an alerting observer with the given
// thresholds and a trend window of 100 samples.
func NewAlertingMetricsObserver(thresholds AlertThresholds) *AlertingMetricsObserver {
	return &AlertingMetricsObserver{
		MetricsObserver: NewMetricsObserver(),
		thresholds:      thresholds,
		trends:          NewTrendAnalyzer(100),
		historyLimit:    100,
	}
}

// ObserverName implements Observer.
func (o *AlertingMetricsObserver) ObserverName() string { return "alerting_metrics_observer" }

// AddAlertHandler registers a handler invoked for every triggered alert.
func (o *AlertingMetricsObserver) AddAlertHandler(handler AlertHandler) {
	if handler == nil {
		return
	}
	o.alertMu.Lock()
	defer o.alertMu.Unlock()
	o.handlers = append(o.handlers, handler)
}

// OnComplete implements Observer.
func (o *AlertingMetricsObserver) OnComplete(ctx context.Context, result *Result) {
	o.MetricsObserver.OnComplete(ctx, result)
	if result == nil {
		return
	}

	snap := o.Snapshot()
	o.trends.Record("success_rate", snap.OverallSuccessRate)
	o.trends.Record("execution_time", result.ExecutionTime.Seconds())
	o.trends.Record("validator_count", float64(result.Metrics.ExecutedValidators))

	o.checkThresholds(snap)
}

// Trends returns the current trend analysis for all recorded metrics.
func (o *AlertingMetricsObserver) Trends() map[string]TrendStats {
	return o.trends.Trends()
}

// RecentAlerts returns up to limit of the most recent alerts, newest last.
func (o *AlertingMetricsObserver) RecentAlerts(limit int) []Alert {
	o.alertMu.Lock()
	defer o.alertMu.Unlock()

	history := o.alertHistory
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]Alert{}, history...)
}

// Thresholds returns the configured thresholds.
func (o *AlertingMetricsObserver) Thresholds() AlertThresholds {
	return o.thresholds
}

func (o *AlertingMetricsObserver) checkThresholds(snap MetricsSnapshot) {
	if snap.TotalValidations == 0 {
		return
	}

	if o.thresholds.MinSuccessRate > 0 && snap.OverallSuccessRate < o.thresholds.MinSuccessRate {
		o.trigger(Alert{
			Type:      AlertSuccessRate,
			Message:   "validation success rate below threshold",
			Current:   snap.OverallSuccessRate,
			Threshold: o.thresholds.MinSuccessRate,
		})
	}

	if o.thresholds.MaxExecutionTime > 0 && snap.AverageExecutionTime > o.thresholds.MaxExecutionTime {
		o.trigger(Alert{
			Type:      AlertExecutionTime,
			Message:   "average validation time above threshold",
			Current:   snap.AverageExecutionTime.Seconds(),
			Threshold: o.thresholds.MaxExecutionTime.Seconds(),
		})
	}

	if o.thresholds.MaxErrorRate > 0 {
		errorRate := float64(snap.FailedValidations) / float64(snap.TotalValidations)
		if errorRate > o.thresholds.MaxErrorRate {
			o.trigger(Alert{
				Type:      AlertErrorRate,
				Message:   "validation error rate above threshold",
				Current:   errorRate,
				Threshold: o.thresholds.MaxErrorRate,
			})
		}
	}

	if o.thresholds.MinCacheHitRate > 0 {
		var hits, misses int
		for _, v := range snap.Validators {
			hits += v.CacheHits
			misses += v.CacheMisses
		}
		if total := hits + misses; total > 0 {
			rate := float64(hits) / float64(total)
			if rate < o.thresholds.MinCacheHitRate {
				o.trigger(Alert{
					Type:      AlertCacheHitRate,
					Message:   "validation cache hit rate below threshold",
					Current:   rate,
					Threshold: o.thresholds.MinCacheHitRate,
				})
			}
		}
	}
}

func (o *AlertingMetricsObserver) trigger(alert Alert) {
	alert.Timestamp = time.Now()

	o.alertMu.Lock()
	o.alertHistory = append(o.alertHistory, alert)
	if len(o.alertHistory) > o.historyLimit {
		o.alertHistory = o.alertHistory[len(o.alertHistory)-o.historyLimit:]
	}
	handlers := append([]AlertHandler{}, o.handlers...)
	o.alertMu.Unlock()

	for _, handler := range handlers {
		handler(alert)
	}
}
