package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/MrWong99/voicehac/internal/health"
	"github.com/MrWong99/voicehac/internal/observe"
	"github.com/MrWong99/voicehac/internal/resilience"
)

const (
	readHeaderTimeout   = 5 * time.Second
	serverShutdownGrace = 5 * time.Second
)

// breakerReporter is implemented by backends that guard their calls with a
// circuit breaker.
type breakerReporter interface {
	BreakerState() resilience.State
}

// initServer binds server.listen_addr and prepares the metrics and health
// endpoints. Nothing is bound when the address is empty.
func (a *App) initServer() error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		return nil
	}

	checks := []health.Checker{health.BackendCheck("backend", a.backend)}
	if br, ok := a.backend.(breakerReporter); ok {
		checks = append(checks, health.BreakerCheck("backend_breaker", br.BreakerState))
	}

	mux := http.NewServeMux()
	health.New(checks...).Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	a.closers = append(a.closers, func() error {
		// The server only tracks the listener once Serve has run.
		err := errors.Join(a.server.Close(), ln.Close())
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	})
	return nil
}

func (a *App) stopServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownGrace)
	defer cancel()
	return a.server.Shutdown(ctx)
}

// Addr returns the bound address of the HTTP server, or "" when the server
// is disabled.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
