// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package envoy

import (
	"time"

	envoy_config_core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	envoy_config_http_wasm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/wasm/v3"
	envoy_config_wasm "github.com/envoyproxy/go-control-plane/envoy/extensions/wasm/v3"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// WasmRuntime is the in-proxy VM the plugins are executed on.
	WasmRuntime = "envoy.wasm.runtime.v8"

	// WasmFetchCluster is the cluster proxies fetch plugin binaries through.
	WasmFetchCluster = "wasm_files"

	// WasmFetchTimeout bounds the remote fetch of a plugin binary at proxy
	// reload time.
	WasmFetchTimeout = 100 * time.Second
)

// WasmPluginParams describes a remote-code WASM plugin: where to fetch the
// binary, how to verify it and the opaque configuration strings handed to the
// VM and the plugin.
type WasmPluginParams struct {
	// Name is used for the plugin name, the root id and the VM id.
	Name string

	// CodeURI is the URL the proxy fetches the plugin binary from.
	CodeURI string

	// Sha256Hex is the lowercase hex digest the proxy verifies the fetched
	// binary against before activating it.
	Sha256Hex string

	// VMConfiguration is passed to the VM on startup. Optional.
	VMConfiguration string

	// PluginConfiguration is passed to the plugin on startup. Optional.
	PluginConfiguration string
}

// BuildWasmPlugin builds the HTTP wasm filter descriptor for the given
// parameters. Configuration strings are wrapped as google.protobuf.StringValue
// so the plugin side can decode them without a schema.
func BuildWasmPlugin(p WasmPluginParams) (*envoy_config_http_wasm.Wasm, error) {
	vm := &envoy_config_wasm.VmConfig{
		VmId:    p.Name,
		Runtime: WasmRuntime,
		Code: &envoy_config_core.AsyncDataSource{
			Specifier: &envoy_config_core.AsyncDataSource_Remote{
				Remote: &envoy_config_core.RemoteDataSource{
					HttpUri: &envoy_config_core.HttpUri{
						Uri:     p.CodeURI,
						Timeout: durationpb.New(WasmFetchTimeout),
						HttpUpstreamType: &envoy_config_core.HttpUri_Cluster{
							Cluster: WasmFetchCluster,
						},
					},
					Sha256: p.Sha256Hex,
				},
			},
		},
	}

	if p.VMConfiguration != "" {
		any, err := Encode(wrapperspb.String(p.VMConfiguration))
		if err != nil {
			return nil, err
		}
		vm.Configuration = any
	}

	plugin := &envoy_config_wasm.PluginConfig{
		Name:   p.Name,
		RootId: p.Name,
		Vm:     &envoy_config_wasm.PluginConfig_VmConfig{VmConfig: vm},
	}

	if p.PluginConfiguration != "" {
		any, err := Encode(wrapperspb.String(p.PluginConfiguration))
		if err != nil {
			return nil, err
		}
		plugin.Configuration = any
	}

	return &envoy_config_http_wasm.Wasm{Config: plugin}, nil
}
