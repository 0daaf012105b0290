// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package envoy defines the proxy resource model shared by the export engine
// and the distribution layer, and the helpers to encode and build resources.
package envoy

import (
	envoy_config_cluster "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	envoy_config_listener "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	"google.golang.org/protobuf/proto"
)

const (
	// ListenerTypeURL is the type URL of Listener resources.
	ListenerTypeURL = "type.googleapis.com/envoy.config.listener.v3.Listener"

	// ClusterTypeURL is the type URL of Cluster resources.
	ClusterTypeURL = "type.googleapis.com/envoy.config.cluster.v3.Cluster"

	// RouteTypeURL is the type URL of HTTP Route resources.
	RouteTypeURL = "type.googleapis.com/envoy.config.route.v3.RouteConfiguration"

	// HTTPConnectionManagerTypeURL is the type URL of the HttpConnectionManager
	// network filter.
	HTTPConnectionManagerTypeURL = "type.googleapis.com/envoy.extensions.filters.network.http_connection_manager.v3.HttpConnectionManager"

	// HTTPConnectionManagerFilterName is the name of the HttpConnectionManager
	// network filter.
	HTTPConnectionManagerFilterName = "envoy.filters.network.http_connection_manager"

	// RouterFilterName is the name of the terminal HTTP router filter.
	RouterFilterName = "envoy.filters.http.router"

	// JWTAuthnFilterName is the name of the jwt_authn HTTP filter.
	JWTAuthnFilterName = "envoy.filters.http.jwt_authn"

	// WasmFilterName is the name of the wasm HTTP filter.
	WasmFilterName = "envoy.filters.http.wasm"
)

// EnvoyResource tags a resource as either a cluster or a listener. Exactly
// one of the fields is set.
type EnvoyResource struct {
	Cluster  *envoy_config_cluster.Cluster
	Listener *envoy_config_listener.Listener
}

// NewClusterResource wraps a cluster in an EnvoyResource.
func NewClusterResource(c *envoy_config_cluster.Cluster) EnvoyResource {
	return EnvoyResource{Cluster: c}
}

// NewListenerResource wraps a listener in an EnvoyResource.
func NewListenerResource(l *envoy_config_listener.Listener) EnvoyResource {
	return EnvoyResource{Listener: l}
}

// Message returns the underlying resource message.
func (r EnvoyResource) Message() proto.Message {
	if r.Cluster != nil {
		return r.Cluster
	}
	return r.Listener
}

// Name returns the name of the underlying resource.
func (r EnvoyResource) Name() string {
	if r.Cluster != nil {
		return r.Cluster.Name
	}
	if r.Listener != nil {
		return r.Listener.Name
	}
	return ""
}

// EnvoyExport is one compiled resource of a service's bundle. Key is unique
// within one export call; identical keys across services overwrite each other
// in the distribution layer, which is relied upon for auxiliary clusters
// shared between services.
type EnvoyExport struct {
	Key    string
	Config EnvoyResource
}
