// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package xds

import (
	"context"
	"net"
	"testing"
	"time"

	envoy_config_core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	envoy_service_discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	envoy_resource "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
)

// freeAddress reserves an ephemeral port and releases it for the server to
// bind.
func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())
	return address
}

func TestServerServesSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCache(testNodeID)
	require.NoError(t, c.SetExports(ctx, []envoy.EnvoyExport{
		clusterExport("service::id::3::cluster", "Cluster::service::3"),
	}))

	address := freeAddress(t)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- NewServer(ctx, c, address).Serve(ctx)
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	conn, err := grpc.DialContext(dialCtx, address,
		grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
	require.NoError(t, err)
	defer conn.Close()

	stream, err := envoy_service_discovery.NewAggregatedDiscoveryServiceClient(conn).
		StreamAggregatedResources(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(&envoy_service_discovery.DiscoveryRequest{
		Node:    &envoy_config_core.Node{Id: testNodeID},
		TypeUrl: envoy_resource.ClusterType,
	}))

	resp, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "1", resp.VersionInfo)
	assert.Equal(t, envoy_resource.ClusterType, resp.TypeUrl)
	require.Len(t, resp.Resources, 1)

	// Cancelling the context stops the server gracefully.
	cancel()
	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server shutdown")
	}
}

func TestServerInvalidAddress(t *testing.T) {
	ctx := context.Background()
	err := NewServer(ctx, NewCache(testNodeID), "256.0.0.1:bogus").Serve(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
