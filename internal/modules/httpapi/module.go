package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/registry"
)

// Module serves the HTTP API, the push socket and the metrics endpoint.
type Module struct {
	log      *zap.Logger
	listen   string
	service  *core.Service
	registry *registry.Registry
	bus      *bus.Bus
	obs      OBSController
	ws       http.Handler
	metrics  *Metrics
}

// NewModule creates the HTTP module. obs and ws may be nil when those
// modules are disabled.
func NewModule(log *zap.Logger, listen string, service *core.Service, reg *registry.Registry, b *bus.Bus, obs OBSController, ws http.Handler) *Module {
	return &Module{
		log:      log,
		listen:   listen,
		service:  service,
		registry: reg,
		bus:      b,
		obs:      obs,
		ws:       ws,
		metrics:  NewMetrics(),
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (m *Module) Run(ctx context.Context) error {
	handler := NewHandler(m.service, m.obs, m.log)
	metricsHandler := m.metrics.Handler(func() {
		m.metrics.SetConnections(m.registry.Snapshot())
	})

	router := handler.Routes(m.ws, metricsHandler)
	server := &http.Server{
		Addr:    m.listen,
		Handler: RequestMiddleware(m.metrics)(router),
	}

	go m.metrics.ObserveBus(ctx, m.bus)

	errCh := make(chan error, 1)
	go func() {
		m.log.Info("http listening", zap.String("addr", m.listen))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
