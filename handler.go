package validate

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

// StatusHandler serves a read-only monitoring surface over the chain
// factory and metrics observers. It is a polling endpoint for dashboards,
// not the validation transport itself.
type StatusHandler struct {
	factory   *ChainFactory
	metrics   *MetricsObserver
	alerting  *AlertingMetricsObserver
	logger    Logger
	startedAt time.Time
}

// NewStatusHandler builds the handler. metrics and alerting may be nil;
// when alerting is set its embedded collector is used for metrics too.
func NewStatusHandler(factory *ChainFactory, metrics *MetricsObserver, alerting *AlertingMetricsObserver, logger Logger) *StatusHandler {
	if logger == nil {
		logger = NoopLogger{}
	}
	if alerting != nil && metrics == nil {
		metrics = alerting.MetricsObserver
	}
	return &StatusHandler{
		factory:   factory,
		metrics:   metrics,
		alerting:  alerting,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Routes mounts the monitoring endpoints on a chi router.
func (h *StatusHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/validation/status", h.handleStatus)
	r.Get("/validation/metrics", h.handleMetrics)
	return r
}

type statusResponse struct {
	Status       string   `json:"status"`
	Uptime       string   `json:"uptime"`
	Mode         string   `json:"mode"`
	Validators   []string `json:"validators"`
	Endpoints    []string `json:"endpoints"`
	CachedChains int      `json:"cached_chains"`
}

func (h *StatusHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.factory != nil {
		cfg := h.factory.Config()
		resp.Mode = cfg.Mode
		resp.Validators = cfg.ValidatorNames()
		endpoints := make([]string, 0, len(cfg.Endpoints))
		for endpoint := range cfg.Endpoints {
			endpoints = append(endpoints, endpoint)
		}
		sort.Strings(endpoints)
		resp.Endpoints = endpoints
		resp.CachedChains = h.factory.CachedChains()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type metricsResponse struct {
	Metrics MetricsSnapshot       `json:"metrics"`
	Alerts  []Alert               `json:"alerts,omitempty"`
	Trends  map[string]TrendStats `json:"trends,omitempty"`
}

func (h *StatusHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "metrics collection is not enabled",
		})
		return
	}

	resp := metricsResponse{Metrics: h.metrics.Snapshot()}
	if h.alerting != nil {
		resp.Alerts = h.alerting.RecentAlerts(10)
		resp.Trends = h.alerting.Trends()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
