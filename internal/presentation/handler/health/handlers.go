package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/syncstream/syncstream/internal/infrastructure/json"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
)

var (
	startTime       = time.Now()
	healthy   int32 = 1 // 1: healthy, 0 = unhealthy
)

type Handler struct {
	registry *registry.Registry
}

func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{
		registry: reg,
	}
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Rooms:     h.registry.Len(),
	}

	if atomic.LoadInt32(&healthy) == 0 {
		resp.Status = "unhealthy"
		json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	json.Write(w, http.StatusOK, resp)
}
