// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package rules implements the request-time mapping-rule engine that runs
// inside the data plane. It holds the active service configuration and
// classifies inbound requests against the service's mapping rules, emitting
// metering deltas.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
	"github.com/3scale-labs/gateway-ng-controller/pkg/metrics"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "rules")

// ErrUpdateInProgress is returned by Import when another configuration update
// holds the guard. Imports report failure instead of blocking.
var ErrUpdateInProgress = errors.New("configuration update already in progress")

// Engine holds a single replaceable service configuration. The configuration
// is replaced wholesale, never mutated field by field.
type Engine struct {
	mu      sync.Mutex
	current *service.Service
}

// NewEngine returns an Engine with an empty configuration installed. Until a
// configuration is imported every match yields no metrics.
func NewEngine() *Engine {
	return &Engine{current: &service.Service{}}
}

// Import parses configJSON and atomically replaces the active configuration.
// Replacement is all-or-nothing: a parse failure leaves the previous
// configuration intact and is reported to the caller.
func (e *Engine) Import(configJSON []byte) (*service.Service, error) {
	var svc service.Service
	if err := json.Unmarshal(configJSON, &svc); err != nil {
		return nil, fmt.Errorf("failed to parse service configuration: %w", err)
	}

	if !e.mu.TryLock() {
		return nil, ErrUpdateInProgress
	}
	e.current = &svc
	e.mu.Unlock()

	log.WithField(logfields.ServiceID, svc.ID).Debug("Installed service configuration")
	return &svc, nil
}

// Config returns the active configuration.
func (e *Engine) Config() *service.Service {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Match scans the rules in declaration order and accumulates the deltas of
// every matching rule into a mapping keyed by metric name; when several
// matching rules share a metric name the later rule overwrites the earlier
// delta. It returns whether at least one rule matched and the serialized
// mapping. Match never fails: absence of a match yields (false, "{}") so the
// metering path cannot gate the proxied traffic itself.
func (e *Engine) Match(method, path string) (bool, string) {
	svc := e.Config()

	deltas := make(map[string]uint32)
	for i := range svc.ProxyRules {
		rule := &svc.ProxyRules[i]
		if rule.Matches(method, path) {
			deltas[rule.MetricSystemName] = rule.Delta
		}
	}

	serialized, err := json.Marshal(deltas)
	if err != nil {
		// Cannot happen for a map[string]uint32; degrade to no match
		// rather than propagating into the request path.
		log.WithError(err).Error("Failed to serialize metrics")
		return false, "{}"
	}

	if len(deltas) == 0 {
		metrics.RuleMatches.WithLabelValues(metrics.LabelValueOutcomeMiss).Inc()
		return false, string(serialized)
	}
	metrics.RuleMatches.WithLabelValues(metrics.LabelValueOutcomeMatch).Inc()
	return true, string(serialized)
}
