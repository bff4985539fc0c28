package worker

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse is served on /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Scheduler bool                   `json:"scheduler"`
	Stats     map[string]interface{} `json:"stats"`
}

// NewHealthMux serves /health for the job and, when gatherer is set,
// /metrics. scheduler may be nil.
func NewHealthMux(job *PrecomputeJob, scheduler *Scheduler, gatherer prometheus.Gatherer, version string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:    "healthy",
			Version:   version,
			Scheduler: scheduler != nil && scheduler.Running(),
			Stats:     job.StatsSnapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}
