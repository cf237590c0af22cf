package health

import (
	"net/http"
	"runtime"
	"time"

	"lv-finbroker/internal/httputil"
)

type Handler struct {
	startedAt time.Time
	httpAddr  string
}

func NewHandler(startedAt time.Time, httpAddr string) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{startedAt: start, httpAddr: httpAddr}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
	Uptime    string `json:"uptime"`
}

type statusResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	UptimeSec  int64  `json:"uptime_sec"`
	Uptime     string `json:"uptime"`
	HTTPAddr   string `json:"http_addr"`
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
}

func (h *Handler) uptime(now time.Time) time.Duration {
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		return 0
	}
	return uptime
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptime := h.uptime(now)
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		Status:     "ok",
		Timestamp:  now.Format(time.RFC3339),
		UptimeSec:  int64(uptime.Seconds()),
		Uptime:     uptime.String(),
		HTTPAddr:   h.httpAddr,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
	})
}

// Live is a lightweight liveness endpoint.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptime := h.uptime(now)
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
	})
}
