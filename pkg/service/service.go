// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package service defines the service descriptor: the unit of configuration
// the export engine compiles and the data-plane rule engine consumes. The
// descriptor is serialized as JSON into the compiled plugin configuration, so
// the field names here are a wire contract shared by both sides.
package service

import (
	"encoding/json"

	"github.com/3scale-labs/gateway-ng-controller/pkg/threescale"
)

// PolicyConfig is a named, free-form policy configuration. The control plane
// does not interpret it.
type PolicyConfig struct {
	Name          string          `json:"name"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
}

// Service describes one backend service: where to route its traffic, which
// domains select it and how requests are metered. ID is unique across all
// services of a deployment; every derived resource name is a deterministic
// function of it.
type Service struct {
	ID           uint32                 `json:"id"`
	Hosts        []string               `json:"hosts"`
	Policies     []PolicyConfig         `json:"policies"`
	TargetDomain string                 `json:"target_domain"`
	ProxyRules   []MappingRule          `json:"proxy_rules"`
	OIDCIssuer   string                 `json:"oidc_issuer,omitempty"`
	AuthConfig   *threescale.AuthConfig `json:"auth_config,omitempty"`
}
