// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package server serves the plugin binaries the compiled descriptors point
// at, plus health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
	"github.com/3scale-labs/gateway-ng-controller/pkg/metrics"
)

// Server is the asset/admin HTTP server. Proxies fetch WASM binaries from
// /static/ and verify them against the digest embedded in their plugin
// descriptor, so the files served here must be the same ones the export
// engine hashed.
type Server struct {
	logger     logrus.FieldLogger
	httpServer *http.Server
}

// New builds the server: /static/ serving staticDir, /healthz and /metrics.
func New(address, staticDir string) *Server {
	router := mux.NewRouter()
	router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", metrics.Handler())

	return &Server{
		logger: logging.DefaultLogger.WithField(logfields.LogSubsys, "http"),
		httpServer: &http.Server{
			Addr:    address,
			Handler: router,
		},
	}
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.WithError(err).Warn("HTTP server shutdown failed")
		}
	}()

	s.logger.WithField(logfields.Address, s.httpServer.Addr).Info("Serving assets")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
