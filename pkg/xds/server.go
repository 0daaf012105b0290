// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package xds

import (
	"context"
	"fmt"
	"net"

	envoy_service_cluster "github.com/envoyproxy/go-control-plane/envoy/service/cluster/v3"
	envoy_service_discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	envoy_service_listener "github.com/envoyproxy/go-control-plane/envoy/service/listener/v3"
	server "github.com/envoyproxy/go-control-plane/pkg/server/v3"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
)

// Server serves the discovery services backed by a Cache.
type Server struct {
	logger     logrus.FieldLogger
	address    string
	grpcServer *grpc.Server
}

// NewServer builds the gRPC server serving ADS, CDS and LDS from the cache.
func NewServer(ctx context.Context, cache *Cache, address string) *Server {
	discoveryServer := server.NewServer(ctx, cache.SnapshotCache(), nil)

	grpcServer := grpc.NewServer()
	envoy_service_discovery.RegisterAggregatedDiscoveryServiceServer(grpcServer, discoveryServer)
	envoy_service_cluster.RegisterClusterDiscoveryServiceServer(grpcServer, discoveryServer)
	envoy_service_listener.RegisterListenerDiscoveryServiceServer(grpcServer, discoveryServer)

	return &Server{
		logger:     logging.DefaultLogger.WithField(logfields.LogSubsys, "xds"),
		address:    address,
		grpcServer: grpcServer,
	}
}

// Serve listens on the configured address and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	go func() {
		<-ctx.Done()
		s.grpcServer.GracefulStop()
	}()

	s.logger.WithField(logfields.Address, s.address).Info("Serving xDS")
	if err := s.grpcServer.Serve(listener); err != nil {
		return fmt.Errorf("xDS server failed: %w", err)
	}
	return nil
}
