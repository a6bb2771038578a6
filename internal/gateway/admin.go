package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strandhq/strand/internal/observability"
)

// AdminServer exposes the operational surface: health, Prometheus
// metrics, a stats snapshot, and the WebSocket upgrade endpoint.
type AdminServer struct {
	hub    *Hub
	logger *observability.Logger
	server *http.Server
	addr   string
}

// StatsSnapshot is the /stats payload: the runtime's counter set plus
// the hub's live connection and session gauges.
type StatsSnapshot struct {
	observability.Snapshot

	ActiveConnections int `json:"active_connections"`
	ActiveSessions    int `json:"active_sessions"`
}

func NewAdminServer(addr string, hub *Hub, logger *observability.Logger) *AdminServer {
	a := &AdminServer{
		hub:    hub,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats", a.handleStats)
	mux.Handle("/ws", hub.WSHandler())

	a.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

// Start begins serving in a background goroutine.
func (a *AdminServer) Start() error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return err
	}
	a.addr = listener.Addr().String()

	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if a.logger != nil {
				a.logger.Error(context.Background(), "admin_server_error", "error", err.Error())
			}
		}
	}()

	if a.logger != nil {
		a.logger.Info(context.Background(), "admin_listening", "addr", listener.Addr().String())
	}
	return nil
}

// Addr reports the bound listener address once Start has returned.
func (a *AdminServer) Addr() string { return a.addr }

// Stop shuts the server down, bounded by ctx.
func (a *AdminServer) Stop(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil && a.logger != nil {
		a.logger.Warn(context.Background(), "admin_shutdown_error", "error", err.Error())
	}
}

func (a *AdminServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *AdminServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := StatsSnapshot{
		Snapshot:          a.hub.runtime.Stats().Snapshot(),
		ActiveConnections: a.hub.ConnectionCount(),
		ActiveSessions:    a.hub.SessionCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(snapshot)
}
