// Package monitor serves the live state of a replay over HTTP:
// prometheus metrics, a JSON register snapshot and a websocket commit feed.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sugawarayuuta/sonnet"

	"github.com/roach88/sensorreplay/internal/replay"
)

const shutdownTimeout = 5 * time.Second

// Snapshot is the /registers response body.
type Snapshot struct {
	RunID     string               `json:"run_id"`
	Registers map[string]int64     `json:"registers"`
	Pending   int                  `json:"pending"`
	Stats     replay.StatsSnapshot `json:"stats"`
}

// Server is the monitor HTTP server.
type Server struct {
	addr    string
	engine  *replay.Engine
	metrics *Metrics
	hub     *Hub
}

// New creates a monitor for engine and registers its observers
// (commit counter and websocket hub). Call before engine.Open so the
// initial zeros are counted and streamed too.
func New(addr string, engine *replay.Engine) *Server {
	s := &Server{
		addr:    addr,
		engine:  engine,
		metrics: NewMetrics(engine),
		hub:     NewHub(),
	}
	engine.AddObserver(s.metrics.Observer())
	engine.AddObserver(s.hub)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/registers", s.handleRegisters)
	mux.HandleFunc("/watch", s.hub.HandleWebSocket)
	return mux
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// Returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	slog.Info("monitor listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("monitor stopped")
	return nil
}

func (s *Server) handleRegisters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := Snapshot{
		RunID:     s.engine.RunID(),
		Registers: s.engine.Registers().Snapshot(),
		Pending:   s.engine.Pending().Len(),
		Stats:     s.engine.Stats().Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := sonnet.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("writing register snapshot failed", "error", err)
	}
}
