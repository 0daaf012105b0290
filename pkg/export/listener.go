// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package export

import (
	"fmt"

	envoy_config_listener "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	envoy_config_route "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	envoy_config_http "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
)

const (
	ingressAddress = "0.0.0.0"
	ingressPort    = 80

	statPrefix = "ingress_http"
)

// buildListener synthesizes the service's listener: one filter chain with one
// HTTP connection manager wrapping the composed filter list and a route
// configuration with a single catch-all route. Route selection is entirely
// domain-based virtual-host matching; all policy logic lives in the filter
// chain.
func (e *Exporter) buildListener(svc *service.Service, providers []FilterProvider) (*envoy_config_listener.Listener, error) {
	httpFilters, err := ComposeHTTPFilters(providers...)
	if err != nil {
		return nil, err
	}

	connectionManager := &envoy_config_http.HttpConnectionManager{
		StatPrefix:  statPrefix,
		CodecType:   envoy_config_http.HttpConnectionManager_AUTO,
		HttpFilters: httpFilters,
		RouteSpecifier: &envoy_config_http.HttpConnectionManager_RouteConfig{
			RouteConfig: &envoy_config_route.RouteConfiguration{
				Name: fmt.Sprintf("service_%d_route", svc.ID),
				VirtualHosts: []*envoy_config_route.VirtualHost{
					{
						Name:    fmt.Sprintf("service_%d_vhost", svc.ID),
						Domains: svc.Hosts,
						Routes: []*envoy_config_route.Route{
							{
								Match: &envoy_config_route.RouteMatch{
									PathSpecifier: &envoy_config_route.RouteMatch_Prefix{Prefix: "/"},
								},
								Action: &envoy_config_route.Route_Route{
									Route: &envoy_config_route.RouteAction{
										ClusterSpecifier: &envoy_config_route.RouteAction_Cluster{
											Cluster: ClusterName(svc.ID),
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	filter, err := envoy.BuildFilter(envoy.HTTPConnectionManagerFilterName, connectionManager)
	if err != nil {
		return nil, err
	}

	return &envoy_config_listener.Listener{
		Name:    fmt.Sprintf("service %d", svc.ID),
		Address: envoy.SocketAddress(ingressAddress, ingressPort),
		FilterChains: []*envoy_config_listener.FilterChain{
			{Filters: []*envoy_config_listener.Filter{filter}},
		},
	}, nil
}
