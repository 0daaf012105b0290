// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package option holds the daemon configuration, populated from command line
// flags and the environment via viper.
package option

import (
	"fmt"

	"github.com/spf13/viper"
)

// CLI flags
const (
	// ConfigFile is the path of the service configuration file.
	ConfigFile = "config-file"

	// XDSAddress is the listen address of the xDS gRPC server.
	XDSAddress = "xds-address"

	// HTTPAddress is the listen address of the asset/admin HTTP server.
	HTTPAddress = "http-address"

	// StaticDir is the directory the asset server serves under /static/.
	StaticDir = "static-dir"

	// WasmFilterPath is the path of the bundled metering filter binary.
	WasmFilterPath = "wasm-filter-path"

	// AssetBaseURL is the external base URL proxies fetch assets from.
	AssetBaseURL = "asset-base-url"

	// NodeID is the xDS node identifier snapshots are installed for.
	NodeID = "node-id"

	// LogLevel sets the daemon log level.
	LogLevel = "log-level"

	// LogFormat selects the daemon log output format.
	LogFormat = "log-format"
)

// DaemonConfig is the configuration used by the daemon.
type DaemonConfig struct {
	ConfigFile     string // Service configuration file
	XDSAddress     string // xDS gRPC listen address
	HTTPAddress    string // Asset/admin HTTP listen address
	StaticDir      string // Directory served under /static/
	WasmFilterPath string // Bundled metering filter binary
	AssetBaseURL   string // Base URL proxies fetch assets from
	NodeID         string // xDS node identifier
}

// Config is the daemon configuration singleton.
var Config = &DaemonConfig{
	XDSAddress:     ":5000",
	HTTPAddress:    ":5001",
	StaticDir:      "static",
	WasmFilterPath: "static/filter.wasm",
	AssetBaseURL:   "http://control-plane-main:5001",
	NodeID:         "gateway-ng",
}

// Populate fills the configuration from viper and validates it.
func (c *DaemonConfig) Populate(vp *viper.Viper) error {
	c.ConfigFile = vp.GetString(ConfigFile)
	c.XDSAddress = vp.GetString(XDSAddress)
	c.HTTPAddress = vp.GetString(HTTPAddress)
	c.StaticDir = vp.GetString(StaticDir)
	c.WasmFilterPath = vp.GetString(WasmFilterPath)
	c.AssetBaseURL = vp.GetString(AssetBaseURL)
	c.NodeID = vp.GetString(NodeID)

	if c.ConfigFile == "" {
		return fmt.Errorf("option --%s is required", ConfigFile)
	}
	if c.NodeID == "" {
		return fmt.Errorf("option --%s must not be empty", NodeID)
	}

	return nil
}
