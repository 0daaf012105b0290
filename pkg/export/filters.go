// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package export

import (
	envoy_config_jwt_authn "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/jwt_authn/v3"
	envoy_config_router "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/router/v3"
	envoy_config_http "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
	"github.com/3scale-labs/gateway-ng-controller/pkg/threescale"
)

// FilterProvider yields one HTTP filter of a service's chain. The proxy
// executes filters in declaration order, so providers are composed in
// registration order: authentication before anything that assumes an
// authenticated identity, metering after it, the router terminal.
type FilterProvider interface {
	HTTPFilter() (*envoy_config_http.HttpFilter, error)
}

// ComposeHTTPFilters builds the ordered filter list from the given providers
// and appends the router filter. The router is always last and never omitted.
func ComposeHTTPFilters(providers ...FilterProvider) ([]*envoy_config_http.HttpFilter, error) {
	filters := make([]*envoy_config_http.HttpFilter, 0, len(providers)+1)

	for _, p := range providers {
		filter, err := p.HTTPFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}

	router, err := envoy.BuildHTTPFilter(envoy.RouterFilterName, &envoy_config_router.Router{})
	if err != nil {
		return nil, err
	}

	return append(filters, router), nil
}

type jwtFilterProvider struct {
	config *envoy_config_jwt_authn.JwtAuthentication
}

func (p jwtFilterProvider) HTTPFilter() (*envoy_config_http.HttpFilter, error) {
	return envoy.BuildHTTPFilter(envoy.JWTAuthnFilterName, p.config)
}

type billingFilterProvider struct {
	auth         *threescale.AuthConfig
	serviceID    uint32
	assetBaseURL string
}

func (p billingFilterProvider) HTTPFilter() (*envoy_config_http.HttpFilter, error) {
	wasm, err := p.auth.BuildWasm(p.serviceID, p.assetBaseURL)
	if err != nil {
		return nil, err
	}
	return envoy.BuildHTTPFilter(envoy.WasmFilterName, wasm)
}

type meteringFilterProvider struct {
	svc          *service.Service
	assetPath    string
	assetBaseURL string
}

func (p meteringFilterProvider) HTTPFilter() (*envoy_config_http.HttpFilter, error) {
	wasm, err := buildMeteringFilter(p.svc, p.assetPath, p.assetBaseURL)
	if err != nil {
		return nil, err
	}
	return envoy.BuildHTTPFilter(envoy.WasmFilterName, wasm)
}
