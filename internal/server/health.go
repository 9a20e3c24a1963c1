package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Build     BuildInfo `json:"build"`
	Timestamp time.Time `json:"timestamp"`
}

func healthz(service string, build BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:    "ok",
			Service:   service,
			Build:     build,
			Timestamp: time.Now().UTC(),
		})
	}
}
