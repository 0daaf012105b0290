// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package config loads the service configuration file the control plane
// compiles from, and watches it for changes.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
)

// Load reads the service descriptors from the file at path. The file may be
// YAML or JSON; it is converted to JSON before unmarshalling so the wire
// field names apply to both.
func Load(path string) ([]service.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service configuration: %w", err)
	}

	services, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service configuration %s: %w", path, err)
	}
	return services, nil
}

// Parse unmarshals and validates a list of service descriptors.
func Parse(data []byte) ([]service.Service, error) {
	var services []service.Service
	if err := yaml.Unmarshal(data, &services); err != nil {
		return nil, err
	}

	// Service ids namespace all derived resource names; a duplicate would
	// silently overwrite another service's resources in the snapshot.
	seen := make(map[uint32]struct{}, len(services))
	for i := range services {
		if _, dup := seen[services[i].ID]; dup {
			return nil, fmt.Errorf("duplicate service id %d", services[i].ID)
		}
		seen[services[i].ID] = struct{}{}
	}

	return services, nil
}
