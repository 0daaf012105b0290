// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	envoy_config_http_wasm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/wasm/v3"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/integrity"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
)

// buildMeteringFilter builds the descriptor of the bundled usage-metering
// plugin. The full service descriptor is embedded as the plugin configuration
// so the data-plane engine can reconstruct its mapping rules without a
// separate fetch, and the binary's digest lets the proxy verify the fetched
// code before loading it.
func buildMeteringFilter(svc *service.Service, assetPath, assetBaseURL string) (*envoy_config_http_wasm.Wasm, error) {
	sha, err := integrity.FileHexDigest(assetPath)
	if err != nil {
		return nil, fmt.Errorf("could not compute SHA-256: %w", err)
	}

	cfg, err := json.Marshal(svc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize service %d: %w", svc.ID, err)
	}

	return envoy.BuildWasmPlugin(envoy.WasmPluginParams{
		Name:                fmt.Sprintf("Service::%d", svc.ID),
		CodeURI:             fmt.Sprintf("%s/static/%s", assetBaseURL, filepath.Base(assetPath)),
		Sha256Hex:           sha,
		PluginConfiguration: string(cfg),
	})
}
