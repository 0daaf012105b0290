// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package export compiles a service descriptor into the keyed bundle of proxy
// resources the data plane consumes: the routing cluster, the listener with
// its ordered HTTP filter chain and the auxiliary clusters of the optional
// identity and billing providers.
package export

import (
	"context"
	"fmt"

	envoy_config_cluster "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	envoy_config_jwt_authn "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/jwt_authn/v3"
	"github.com/sirupsen/logrus"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
)

// IdentityDiscoverer resolves an OIDC issuer into the jwt_authn filter
// configuration and the cluster needed to reach the provider.
type IdentityDiscoverer interface {
	Discover(ctx context.Context, issuer string) (*envoy_config_jwt_authn.JwtAuthentication, *envoy_config_cluster.Cluster, error)
}

// Exporter compiles services into proxy resource bundles. Export calls share
// no mutable state, so independent services may be compiled concurrently.
type Exporter struct {
	logger logrus.FieldLogger

	discovery      IdentityDiscoverer
	wasmFilterPath string
	assetBaseURL   string
}

// NewExporter returns an Exporter using the given identity discoverer. The
// metering filter binary at wasmFilterPath is hashed on every export and
// served to proxies under assetBaseURL.
func NewExporter(discovery IdentityDiscoverer, wasmFilterPath, assetBaseURL string) *Exporter {
	return &Exporter{
		logger:         logging.DefaultLogger.WithField(logfields.LogSubsys, "export"),
		discovery:      discovery,
		wasmFilterPath: wasmFilterPath,
		assetBaseURL:   assetBaseURL,
	}
}

// ClusterKey is the reserved bundle key of a service's routing cluster.
func ClusterKey(id uint32) string {
	return fmt.Sprintf("service::id::%d::cluster", id)
}

// ListenerKey is the reserved bundle key of a service's listener.
func ListenerKey(id uint32) string {
	return fmt.Sprintf("service::id::%d::listener", id)
}

// ClusterName is the name of a service's own routing cluster.
func ClusterName(id uint32) string {
	return fmt.Sprintf("Cluster::service::%d", id)
}

// Export compiles svc into its resource bundle. Any failure aborts the whole
// export; there is no partial bundle.
func (e *Exporter) Export(ctx context.Context, svc *service.Service) ([]envoy.EnvoyExport, error) {
	scopedLog := e.logger.WithField(logfields.ServiceID, svc.ID)

	result := make([]envoy.EnvoyExport, 0, 4)

	cluster, err := envoy.BuildCluster(ClusterName(svc.ID), svc.TargetDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to export cluster for service %d: %w", svc.ID, err)
	}
	result = append(result, envoy.EnvoyExport{
		Key:    ClusterKey(svc.ID),
		Config: envoy.NewClusterResource(cluster),
	})

	var providers []FilterProvider

	if svc.OIDCIssuer != "" {
		jwtFilter, oidcCluster, err := e.discovery.Discover(ctx, svc.OIDCIssuer)
		if err != nil {
			return nil, fmt.Errorf("identity discovery failed for service %d: %w", svc.ID, err)
		}
		scopedLog.WithField(logfields.ClusterName, oidcCluster.Name).Debug("Adding identity provider cluster")
		result = append(result, envoy.EnvoyExport{
			Key:    oidcCluster.Name,
			Config: envoy.NewClusterResource(oidcCluster),
		})
		providers = append(providers, jwtFilterProvider{config: jwtFilter})
	}

	// A reachable backend cluster is mandatory for the billing config:
	// metering must not silently degrade to "unmetered".
	if svc.AuthConfig != nil {
		authCluster, err := svc.AuthConfig.Cluster()
		if err != nil {
			return nil, fmt.Errorf("failed to export billing backend cluster for service %d: %w", svc.ID, err)
		}
		scopedLog.WithField(logfields.ClusterName, authCluster.Name).Debug("Adding billing backend cluster")
		result = append(result, envoy.EnvoyExport{
			Key:    authCluster.Name,
			Config: envoy.NewClusterResource(authCluster),
		})
		providers = append(providers, billingFilterProvider{
			auth:         svc.AuthConfig,
			serviceID:    svc.ID,
			assetBaseURL: e.assetBaseURL,
		})
	}

	providers = append(providers, meteringFilterProvider{
		svc:          svc,
		assetPath:    e.wasmFilterPath,
		assetBaseURL: e.assetBaseURL,
	})

	listener, err := e.buildListener(svc, providers)
	if err != nil {
		return nil, fmt.Errorf("failed to export listener for service %d: %w", svc.ID, err)
	}
	result = append(result, envoy.EnvoyExport{
		Key:    ListenerKey(svc.ID),
		Config: envoy.NewListenerResource(listener),
	})

	scopedLog.WithField("resources", len(result)).Debug("Service export complete")
	return result, nil
}
