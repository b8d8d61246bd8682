package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	sensorcapture "github.com/e7canasta/orion-care-sensor/modules/sensor-capture"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-capture/internal/telemetry"
)

// HealthStatus is the body of the /readiness endpoint
type HealthStatus struct {
	Status        string  `json:"status"` // "healthy", "degraded", "unhealthy"
	State         string  `json:"state"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	FPS           float64 `json:"fps"`
	DropRate      float64 `json:"drop_rate"`
	LastFault     string  `json:"last_fault,omitempty"`
}

// healthHandlers serves liveness, readiness and stats for one session
type healthHandlers struct {
	instanceID string
	stats      func() sensorcapture.SessionStats
	started    time.Time

	// push is the /ws report interval; done ends every stream
	push     time.Duration
	done     <-chan struct{}
	upgrader websocket.Upgrader
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// check derives the health status from a stats snapshot
func (h *healthHandlers) check() HealthStatus {
	s := h.stats()
	status := HealthStatus{
		Status:        "healthy",
		State:         s.State.String(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		FPS:           s.FPS,
		DropRate:      s.DropRate,
		LastFault:     s.LastFault,
	}
	switch {
	case s.State != sensorcapture.StateRunning:
		status.Status = "unhealthy"
	case s.DropRate > 50:
		// The consumer is falling behind the sensor
		status.Status = "degraded"
	}
	return status
}

// liveness handles /health: 200 while the process is alive
func (h *healthHandlers) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "alive",
		"uptime": int64(time.Since(h.started).Seconds()),
	})
}

// readiness handles /readiness: 503 unless the session is running
func (h *healthHandlers) readiness(w http.ResponseWriter, r *http.Request) {
	health := h.check()
	code := http.StatusOK
	if health.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

// statsHandler handles /stats: the same report published over MQTT
func (h *healthHandlers) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, telemetry.NewReport(h.instanceID, h.stats(), time.Now()))
}

// statsStream handles /ws: pushes a report every push interval until the
// client goes away or the server stops
func (h *healthHandlers) statsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Reads only drive control frames; a read error means the client left
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.push)
	defer ticker.Stop()
	for {
		report := telemetry.NewReport(h.instanceID, h.stats(), time.Now())
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(report); err != nil {
			slog.Debug("sensor-capture: stats stream closed", "error", err)
			return
		}

		select {
		case <-gone:
			return
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}

func (h *healthHandlers) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.liveness)
	mux.HandleFunc("/readiness", h.readiness)
	mux.HandleFunc("/stats", h.statsHandler)
	mux.HandleFunc("/ws", h.statsStream)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("sensor-capture: failed to write health response", "error", err)
	}
}

// startHealthServer serves the health endpoints on addr until ctx is
// cancelled. It does not block.
func startHealthServer(ctx context.Context, addr, instanceID string, stats func() sensorcapture.SessionStats) {
	h := &healthHandlers{
		instanceID: instanceID,
		stats:      stats,
		started:    time.Now(),
		push:       time.Second,
		done:       ctx.Done(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      h.mux(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("sensor-capture: starting health server",
		"addr", addr,
		"endpoints", []string{"/health", "/readiness", "/stats", "/ws"})

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("sensor-capture: health server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
