package sensorflow

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /metrics, /healthz and /status.
func (r *Runtime) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", r.healthz).Methods(http.MethodGet)
	router.HandleFunc("/status", r.status).Methods(http.MethodGet)
	return router
}

// healthz fails while the sink is not connected.
func (r *Runtime) healthz(w http.ResponseWriter, _ *http.Request) {
	state := r.channel.State()
	if state != Connected {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(state.String()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r.Status()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
