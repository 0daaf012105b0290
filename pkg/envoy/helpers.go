// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package envoy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	envoy_config_cluster "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	envoy_config_core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	envoy_config_endpoint "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	envoy_config_listener "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	envoy_config_http "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	envoy_config_tls "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
)

const (
	clusterConnectTimeout = 5 * time.Second

	tlsTransportSocketName = "envoy.transport_sockets.tls"
)

// Encode serializes msg and wraps it with its type URL.
func Encode(msg proto.Message) (*anypb.Any, error) {
	any, err := anypb.New(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", msg, err)
	}
	return any, nil
}

// BuildHTTPFilter wraps an encoded filter config in a named HTTP filter entry.
func BuildHTTPFilter(name string, cfg proto.Message) (*envoy_config_http.HttpFilter, error) {
	any, err := Encode(cfg)
	if err != nil {
		return nil, err
	}

	return &envoy_config_http.HttpFilter{
		Name:       name,
		ConfigType: &envoy_config_http.HttpFilter_TypedConfig{TypedConfig: any},
	}, nil
}

// BuildFilter wraps an encoded filter config in a named network filter entry.
func BuildFilter(name string, cfg proto.Message) (*envoy_config_listener.Filter, error) {
	any, err := Encode(cfg)
	if err != nil {
		return nil, err
	}

	return &envoy_config_listener.Filter{
		Name:       name,
		ConfigType: &envoy_config_listener.Filter_TypedConfig{TypedConfig: any},
	}, nil
}

// BuildCluster builds a logical-DNS upstream cluster for the given target
// address. The address may be a bare host, a host:port pair or a URL; an
// https URL additionally gets an upstream TLS transport socket.
func BuildCluster(name, address string) (*envoy_config_cluster.Cluster, error) {
	host, port, tls, err := parseTarget(address)
	if err != nil {
		return nil, fmt.Errorf("invalid cluster target %q: %w", address, err)
	}

	cluster := &envoy_config_cluster.Cluster{
		Name:           name,
		ConnectTimeout: durationpb.New(clusterConnectTimeout),
		ClusterDiscoveryType: &envoy_config_cluster.Cluster_Type{
			Type: envoy_config_cluster.Cluster_LOGICAL_DNS,
		},
		LbPolicy:        envoy_config_cluster.Cluster_ROUND_ROBIN,
		DnsLookupFamily: envoy_config_cluster.Cluster_V4_ONLY,
		LoadAssignment: &envoy_config_endpoint.ClusterLoadAssignment{
			ClusterName: name,
			Endpoints: []*envoy_config_endpoint.LocalityLbEndpoints{
				{
					LbEndpoints: []*envoy_config_endpoint.LbEndpoint{
						{
							HostIdentifier: &envoy_config_endpoint.LbEndpoint_Endpoint{
								Endpoint: &envoy_config_endpoint.Endpoint{
									Address: SocketAddress(host, port),
								},
							},
						},
					},
				},
			},
		},
	}

	if tls {
		any, err := Encode(&envoy_config_tls.UpstreamTlsContext{Sni: host})
		if err != nil {
			return nil, err
		}
		cluster.TransportSocket = &envoy_config_core.TransportSocket{
			Name:       tlsTransportSocketName,
			ConfigType: &envoy_config_core.TransportSocket_TypedConfig{TypedConfig: any},
		}
	}

	return cluster, nil
}

// SocketAddress builds a TCP socket address.
func SocketAddress(host string, port uint32) *envoy_config_core.Address {
	return &envoy_config_core.Address{
		Address: &envoy_config_core.Address_SocketAddress{
			SocketAddress: &envoy_config_core.SocketAddress{
				Address: host,
				PortSpecifier: &envoy_config_core.SocketAddress_PortValue{
					PortValue: port,
				},
			},
		},
	}
}

func parseTarget(address string) (host string, port uint32, tls bool, err error) {
	if address == "" {
		return "", 0, false, fmt.Errorf("empty address")
	}

	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			return "", 0, false, err
		}
		switch u.Scheme {
		case "http":
			port = 80
		case "https":
			port = 443
			tls = true
		default:
			return "", 0, false, fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		host = u.Hostname()
		if host == "" {
			return "", 0, false, fmt.Errorf("missing host")
		}
		if p := u.Port(); p != "" {
			n, err := strconv.ParseUint(p, 10, 16)
			if err != nil {
				return "", 0, false, fmt.Errorf("invalid port %q: %w", p, err)
			}
			port = uint32(n)
		}
		return host, port, tls, nil
	}

	host, portStr, splitErr := net.SplitHostPort(address)
	if splitErr != nil {
		// Bare host without a port.
		return address, 80, false, nil
	}
	n, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, uint32(n), false, nil
}
