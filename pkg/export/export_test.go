// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	envoy_config_cluster "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	envoy_config_jwt_authn "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/jwt_authn/v3"
	envoy_config_http_wasm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/wasm/v3"
	envoy_config_http "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/integrity"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
	"github.com/3scale-labs/gateway-ng-controller/pkg/threescale"
)

const assetBaseURL = "http://control-plane-main:5001"

type stubDiscoverer struct {
	err error
}

func (d stubDiscoverer) Discover(_ context.Context, issuer string) (*envoy_config_jwt_authn.JwtAuthentication, *envoy_config_cluster.Cluster, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	return &envoy_config_jwt_authn.JwtAuthentication{}, &envoy_config_cluster.Cluster{Name: "Cluster::oidc::idp.example.com"}, nil
}

func writeWasmAsset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	return NewExporter(stubDiscoverer{}, writeWasmAsset(t, "filter.wasm", "metering binary"), assetBaseURL)
}

func plainService() *service.Service {
	return &service.Service{
		ID:           3,
		Hosts:        []string{"web.app", "web"},
		TargetDomain: "web.example.com",
	}
}

func fullService(t *testing.T) *service.Service {
	t.Helper()

	svc := plainService()
	svc.OIDCIssuer = "https://idp.example.com/auth/realms/master"

	authPath := writeWasmAsset(t, "threescale_auth.wasm", "auth binary")
	authJSON := fmt.Sprintf(`{
	  "path": %q,
	  "wasm_config": {
	    "backend": {"cluster_name": "threescale_backend", "url": "https://su1.3scale.net:443"},
	    "token": "service-token"
	  }
	}`, authPath)

	var auth threescale.AuthConfig
	require.NoError(t, json.Unmarshal([]byte(authJSON), &auth))
	svc.AuthConfig = &auth
	return svc
}

// httpFilters unwraps the listener down to the connection manager's filter
// list.
func httpFilters(t *testing.T, res envoy.EnvoyResource) []*envoy_config_http.HttpFilter {
	t.Helper()

	listener := res.Listener
	require.NotNil(t, listener)
	require.Len(t, listener.FilterChains, 1)
	require.Len(t, listener.FilterChains[0].Filters, 1)

	filter := listener.FilterChains[0].Filters[0]
	assert.Equal(t, envoy.HTTPConnectionManagerFilterName, filter.Name)

	var connectionManager envoy_config_http.HttpConnectionManager
	require.NoError(t, filter.GetTypedConfig().UnmarshalTo(&connectionManager))
	return connectionManager.HttpFilters
}

func TestExportPlainService(t *testing.T) {
	exports, err := newTestExporter(t).Export(context.Background(), plainService())
	require.NoError(t, err)
	require.Len(t, exports, 2)

	assert.Equal(t, "service::id::3::cluster", exports[0].Key)
	assert.Equal(t, "Cluster::service::3", exports[0].Config.Name())
	assert.Equal(t, "service::id::3::listener", exports[1].Key)
	assert.Equal(t, "service 3", exports[1].Config.Name())

	// Without identity and billing the chain is metering plus router, router
	// terminal.
	filters := httpFilters(t, exports[1].Config)
	require.Len(t, filters, 2)
	assert.Equal(t, envoy.WasmFilterName, filters[0].Name)
	assert.Equal(t, envoy.RouterFilterName, filters[1].Name)
}

func TestExportFullService(t *testing.T) {
	exporter := newTestExporter(t)
	svc := fullService(t)

	exports, err := exporter.Export(context.Background(), svc)
	require.NoError(t, err)
	require.Len(t, exports, 4)

	keys := make([]string, 0, len(exports))
	for _, e := range exports {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{
		"service::id::3::cluster",
		"Cluster::oidc::idp.example.com",
		"threescale_backend",
		"service::id::3::listener",
	}, keys)

	filters := httpFilters(t, exports[3].Config)
	require.Len(t, filters, 4)
	assert.Equal(t, envoy.JWTAuthnFilterName, filters[0].Name)
	assert.Equal(t, envoy.WasmFilterName, filters[1].Name)
	assert.Equal(t, envoy.WasmFilterName, filters[2].Name)
	assert.Equal(t, envoy.RouterFilterName, filters[3].Name)
}

func TestExportDeterministic(t *testing.T) {
	exporter := newTestExporter(t)
	svc := fullService(t)

	first, err := exporter.Export(context.Background(), svc)
	require.NoError(t, err)
	second, err := exporter.Export(context.Background(), svc)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.True(t, proto.Equal(first[i].Config.Message(), second[i].Config.Message()),
			"resource %q differs between exports", first[i].Key)
	}
}

func TestExportMeteringFilterIntegrity(t *testing.T) {
	assetPath := writeWasmAsset(t, "filter.wasm", "metering binary")
	exporter := NewExporter(stubDiscoverer{}, assetPath, assetBaseURL)
	svc := plainService()

	exports, err := exporter.Export(context.Background(), svc)
	require.NoError(t, err)

	filters := httpFilters(t, exports[1].Config)
	var wasm envoy_config_http_wasm.Wasm
	require.NoError(t, filters[0].GetTypedConfig().UnmarshalTo(&wasm))

	vm := wasm.Config.GetVmConfig()
	require.NotNil(t, vm)
	assert.Equal(t, "Service::3", wasm.Config.Name)
	assert.Equal(t, assetBaseURL+"/static/filter.wasm", vm.Code.GetRemote().HttpUri.GetUri())

	expected, err := integrity.FileHexDigest(assetPath)
	require.NoError(t, err)
	assert.Equal(t, expected, vm.Code.GetRemote().Sha256)

	// The plugin configuration embeds the complete service descriptor.
	var pluginConfig wrapperspb.StringValue
	require.NoError(t, wasm.Config.GetConfiguration().UnmarshalTo(&pluginConfig))
	var embedded service.Service
	require.NoError(t, json.Unmarshal([]byte(pluginConfig.Value), &embedded))
	assert.Equal(t, svc.ID, embedded.ID)
	assert.Equal(t, svc.Hosts, embedded.Hosts)
}

func TestExportDiscoveryFailure(t *testing.T) {
	exporter := NewExporter(stubDiscoverer{err: fmt.Errorf("connection refused")},
		writeWasmAsset(t, "filter.wasm", "metering binary"), assetBaseURL)
	svc := plainService()
	svc.OIDCIssuer = "https://unreachable.example.com"

	exports, err := exporter.Export(context.Background(), svc)
	require.Error(t, err)
	assert.Nil(t, exports)
	assert.Contains(t, err.Error(), "identity discovery failed for service 3")
}

func TestExportMissingMeteringBinary(t *testing.T) {
	exporter := NewExporter(stubDiscoverer{}, filepath.Join(t.TempDir(), "absent.wasm"), assetBaseURL)

	exports, err := exporter.Export(context.Background(), plainService())
	require.Error(t, err)
	assert.Nil(t, exports)
	assert.Contains(t, err.Error(), "failed to export listener for service 3")
}

func TestExportMissingBillingBinary(t *testing.T) {
	svc := fullService(t)
	svc.AuthConfig.Path = filepath.Join(t.TempDir(), "absent.wasm")

	_, err := newTestExporter(t).Export(context.Background(), svc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to export listener for service 3")
}

func TestExportInvalidTargetDomain(t *testing.T) {
	svc := plainService()
	svc.TargetDomain = "://not-a-target"

	_, err := newTestExporter(t).Export(context.Background(), svc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to export cluster for service 3")
}
