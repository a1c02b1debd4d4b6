package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse is polled by the dispatcher to decide whether the proxy
// finished starting.
type healthResponse struct {
	Status    string `json:"status"`
	Proxy     string `json:"proxy"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /health.
func (h *GenerateHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Proxy:     h.ProxyName,
		Model:     h.Model,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
