// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package oidc resolves OpenID Connect provider metadata and builds the
// jwt_authn filter configuration plus the upstream cluster needed to reach
// the provider's JWKS endpoint.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	envoy_config_cluster "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	envoy_config_core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	envoy_config_route "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	envoy_config_jwt_authn "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/jwt_authn/v3"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
)

const (
	wellKnownPath = "/.well-known/openid-configuration"

	discoveryTimeout = 10 * time.Second
	discoveryRetries = 3

	jwksFetchTimeout  = 5 * time.Second
	jwksCacheDuration = 5 * time.Minute
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "oidc")

// providerMetadata is the subset of the discovery document we consume.
type providerMetadata struct {
	Issuer  string `json:"issuer"`
	JwksURI string `json:"jwks_uri"`
}

// Discovery resolves provider metadata over HTTP.
type Discovery struct {
	client *http.Client
}

// NewDiscovery returns a Discovery with a bounded request timeout.
func NewDiscovery() *Discovery {
	return &Discovery{
		client: &http.Client{Timeout: discoveryTimeout},
	}
}

// ClusterName derives the name of the provider cluster from the issuer URL.
// Services sharing an issuer derive the same name, so their auxiliary cluster
// entries collapse to one resource in the distribution layer.
func ClusterName(issuer string) (string, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("invalid issuer URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("issuer URL %q has no host", issuer)
	}
	return fmt.Sprintf("Cluster::oidc::%s", u.Host), nil
}

// Discover resolves the issuer's metadata and returns the jwt_authn filter
// configuration together with the cluster the proxy fetches the JWKS through.
func (d *Discovery) Discover(ctx context.Context, issuer string) (*envoy_config_jwt_authn.JwtAuthentication, *envoy_config_cluster.Cluster, error) {
	clusterName, err := ClusterName(issuer)
	if err != nil {
		return nil, nil, err
	}

	meta, err := d.fetchMetadata(ctx, issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("OIDC discovery for %s failed: %w", issuer, err)
	}

	cluster, err := envoy.BuildCluster(clusterName, issuer)
	if err != nil {
		return nil, nil, err
	}

	filter := &envoy_config_jwt_authn.JwtAuthentication{
		Providers: map[string]*envoy_config_jwt_authn.JwtProvider{
			clusterName: {
				Issuer: meta.Issuer,
				JwksSourceSpecifier: &envoy_config_jwt_authn.JwtProvider_RemoteJwks{
					RemoteJwks: &envoy_config_jwt_authn.RemoteJwks{
						HttpUri: &envoy_config_core.HttpUri{
							Uri:     meta.JwksURI,
							Timeout: durationpb.New(jwksFetchTimeout),
							HttpUpstreamType: &envoy_config_core.HttpUri_Cluster{
								Cluster: clusterName,
							},
						},
						CacheDuration: durationpb.New(jwksCacheDuration),
					},
				},
			},
		},
		Rules: []*envoy_config_jwt_authn.RequirementRule{
			{
				Match: &envoy_config_route.RouteMatch{
					PathSpecifier: &envoy_config_route.RouteMatch_Prefix{Prefix: "/"},
				},
				RequirementType: &envoy_config_jwt_authn.RequirementRule_Requires{
					Requires: &envoy_config_jwt_authn.JwtRequirement{
						RequiresType: &envoy_config_jwt_authn.JwtRequirement_ProviderName{
							ProviderName: clusterName,
						},
					},
				},
			},
		},
	}

	return filter, cluster, nil
}

func (d *Discovery) fetchMetadata(ctx context.Context, issuer string) (*providerMetadata, error) {
	wellKnown := strings.TrimSuffix(issuer, "/") + wellKnownPath

	operation := func() (*providerMetadata, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, wellKnown)
		}

		var meta providerMetadata
		if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
			return nil, fmt.Errorf("failed to decode discovery document: %w", err)
		}
		if meta.JwksURI == "" {
			return nil, backoff.Permanent(fmt.Errorf("discovery document from %s has no jwks_uri", wellKnown))
		}
		return &meta, nil
	}

	meta, err := backoff.RetryNotifyWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), discoveryRetries), ctx),
		func(err error, wait time.Duration) {
			log.WithFields(logrus.Fields{
				logfields.Issuer: issuer,
				"retryIn":        wait,
			}).WithError(err).Debug("OIDC discovery attempt failed, retrying")
		},
	)
	if err != nil {
		return nil, err
	}
	return meta, nil
}
