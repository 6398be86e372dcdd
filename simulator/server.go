// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ava-labs/avalanche-consensus/api/health"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
	"github.com/ava-labs/avalanche-consensus/utils/metric"
)

const (
	readHeaderTimeout = 10 * time.Second

	httpNamespace = "http"
)

// handlers serves the state of a running simulation.
type handlers struct {
	log      logging.Logger
	config   Config
	network  *Network
	health   health.Reporter
	gatherer prometheus.Gatherer
	start    time.Time
}

func newRouter(
	h *handlers,
	allowedOrigins []string,
	registerer prometheus.Registerer,
) (http.Handler, error) {
	interceptor, err := metric.NewHTTPInterceptor(httpNamespace, registerer)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	routes := []struct {
		path    string
		handler http.Handler
	}{
		{
			path:    "/metrics",
			handler: promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}),
		},
		{
			path:    "/health",
			handler: http.HandlerFunc(h.serveHealth),
		},
		{
			path:    "/nodes",
			handler: http.HandlerFunc(h.serveNodes),
		},
		{
			path:    "/nodes/{index:[0-9]+}",
			handler: http.HandlerFunc(h.serveNode),
		},
		{
			path:    "/report",
			handler: http.HandlerFunc(h.serveReport),
		},
	}
	for _, route := range routes {
		router.Handle(route.path, interceptor.Wrap(route.path, route.handler)).Methods(http.MethodGet)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
	}).Handler(router)
	return gziphandler.GzipHandler(corsHandler), nil
}

func (h *handlers) serveHealth(w http.ResponseWriter, _ *http.Request) {
	checks, healthy := h.health.Results()
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, struct {
		Checks  map[string]health.Result `json:"checks"`
		Healthy bool                     `json:"healthy"`
	}{
		Checks:  checks,
		Healthy: healthy,
	})
}

func (h *handlers) serveNodes(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.network.Statuses())
}

func (h *handlers) serveNode(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status, err := h.network.Status(index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *handlers) serveReport(w http.ResponseWriter, _ *http.Request) {
	report := NewReport(h.config, h.network, time.Since(h.start), false)
	w.Header().Set("Content-Type", "application/yaml")
	if err := report.WriteYAML(w); err != nil {
		h.log.Debug("failed to write report",
			zap.Error(err),
		)
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("failed to write response",
			zap.Error(err),
		)
	}
}

// server is the HTTP server exposing a running simulation.
type server struct {
	log             logging.Logger
	listener        net.Listener
	srv             *http.Server
	shutdownTimeout time.Duration
}

func newServer(log logging.Logger, config HTTPConfig, handler http.Handler) (*server, error) {
	listenAddress := net.JoinHostPort(config.Host, strconv.Itoa(int(config.Port)))
	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", listenAddress, err)
	}
	return &server{
		log:      log,
		listener: listener,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		shutdownTimeout: config.ShutdownTimeout,
	}, nil
}

func (s *server) Addr() net.Addr {
	return s.listener.Addr()
}

// Dispatch serves until [Shutdown] is called.
func (s *server) Dispatch() error {
	s.log.Info("HTTP server listening",
		zap.Stringer("address", s.listener.Addr()),
	)
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
