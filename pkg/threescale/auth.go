// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package threescale builds the upstream cluster and the in-proxy
// auth/metering plugin for a service's billing backend.
package threescale

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	envoy_config_cluster "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	envoy_config_http_wasm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/wasm/v3"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/integrity"
)

// Backend describes the billing backend the plugin reports to. Keys other
// than cluster_name and url are plugin configuration and round-trip
// unmodified.
type Backend struct {
	ClusterName string
	URL         string

	extra map[string]json.RawMessage
}

// UnmarshalJSON keeps unknown keys so the full backend section can be
// embedded verbatim into the plugin configuration.
func (b *Backend) UnmarshalJSON(data []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["cluster_name"]; ok {
		if err := json.Unmarshal(raw, &b.ClusterName); err != nil {
			return fmt.Errorf("invalid cluster_name: %w", err)
		}
		delete(fields, "cluster_name")
	}
	if raw, ok := fields["url"]; ok {
		if err := json.Unmarshal(raw, &b.URL); err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		delete(fields, "url")
	}

	b.extra = fields
	return nil
}

// MarshalJSON restores the flattened representation.
func (b Backend) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(b.extra)+2)
	for k, v := range b.extra {
		fields[k] = v
	}

	name, err := json.Marshal(b.ClusterName)
	if err != nil {
		return nil, err
	}
	fields["cluster_name"] = name

	u, err := json.Marshal(b.URL)
	if err != nil {
		return nil, err
	}
	fields["url"] = u

	return json.Marshal(fields)
}

// Cluster builds the upstream cluster for the backend.
func (b *Backend) Cluster() (*envoy_config_cluster.Cluster, error) {
	return envoy.BuildCluster(b.ClusterName, b.URL)
}

// WasmConfig is the plugin configuration of the auth/metering plugin. Apart
// from the backend section its contents are opaque to the control plane.
type WasmConfig struct {
	Backend Backend

	extra map[string]json.RawMessage
}

// UnmarshalJSON keeps unknown keys so the section round-trips into the plugin
// configuration unmodified.
func (w *WasmConfig) UnmarshalJSON(data []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	raw, ok := fields["backend"]
	if !ok {
		return fmt.Errorf("wasm_config is missing the backend section")
	}
	if err := json.Unmarshal(raw, &w.Backend); err != nil {
		return fmt.Errorf("invalid backend: %w", err)
	}
	delete(fields, "backend")

	w.extra = fields
	return nil
}

// MarshalJSON restores the flattened representation.
func (w WasmConfig) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(w.extra)+1)
	for k, v := range w.extra {
		fields[k] = v
	}

	backend, err := json.Marshal(w.Backend)
	if err != nil {
		return nil, err
	}
	fields["backend"] = backend

	return json.Marshal(fields)
}

// AuthConfig is the billing/auth backend descriptor of a service: the path of
// the plugin binary and the configuration handed to it.
type AuthConfig struct {
	Path       string     `json:"path"`
	WasmConfig WasmConfig `json:"wasm_config"`
}

// Cluster builds the upstream cluster of the billing backend. A service with
// an auth config but no reachable backend must not be exported, so callers
// treat an error here as fatal.
func (a *AuthConfig) Cluster() (*envoy_config_cluster.Cluster, error) {
	return a.WasmConfig.Backend.Cluster()
}

// BuildWasm builds the auth/metering plugin descriptor for the service with
// the given id. The plugin binary at Path is hashed so the proxy can verify
// the fetched copy, and served under assetBaseURL by its base name.
func (a *AuthConfig) BuildWasm(serviceID uint32, assetBaseURL string) (*envoy_config_http_wasm.Wasm, error) {
	sha, err := integrity.FileHexDigest(a.Path)
	if err != nil {
		return nil, fmt.Errorf("could not compute SHA-256: %w", err)
	}

	cfg, err := json.MarshalIndent(a.WasmConfig, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize wasm_config: %w", err)
	}

	return envoy.BuildWasmPlugin(envoy.WasmPluginParams{
		Name:                fmt.Sprintf("Service::%d", serviceID),
		CodeURI:             fmt.Sprintf("%s/static/%s", assetBaseURL, filepath.Base(a.Path)),
		Sha256Hex:           sha,
		VMConfiguration:     "vm config",
		PluginConfiguration: string(cfg),
	})
}
