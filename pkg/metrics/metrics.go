// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package metrics holds prometheus metrics objects and related utility
// functions. It does not abstract away the prometheus client but the caller
// rarely needs to refer to prometheus directly.
package metrics

// Adding a metric
// - Add a metric object of the appropriate type as an exported variable
// - Register the new object in the init function

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewPedanticRegistry()

	// Namespace is prepended to metric names and separated with a '_'.
	Namespace = "gateway_ng"

	// LabelValueOutcomeSuccess is used as a successful outcome of an operation
	LabelValueOutcomeSuccess = "success"

	// LabelValueOutcomeFail is used as an unsuccessful outcome of an operation
	LabelValueOutcomeFail = "fail"

	// LabelValueOutcomeMatch marks a request classification that matched a rule
	LabelValueOutcomeMatch = "match"

	// LabelValueOutcomeMiss marks a request classification with no matching rule
	LabelValueOutcomeMiss = "miss"

	// ServiceExports counts service compilations, tagged by outcome.
	ServiceExports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "service_exports_total",
		Help:      "Count of completed service exports, tagged by outcome",
	}, []string{"outcome"})

	// ConfigReloads counts service configuration reloads, tagged by outcome.
	ConfigReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "config_reloads_total",
		Help:      "Count of service configuration reloads, tagged by outcome",
	}, []string{"outcome"})

	// RuleMatches counts request classifications by the mapping-rule engine,
	// tagged by outcome.
	RuleMatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rule_matches_total",
		Help:      "Count of request classifications, tagged by outcome",
	}, []string{"outcome"})

	// SnapshotVersion is the version of the currently installed xDS snapshot.
	SnapshotVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "snapshot_version",
		Help:      "Version of the xDS snapshot currently served to proxies",
	})

	// ExportedResources is the number of resources in the current snapshot.
	ExportedResources = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "exported_resources",
		Help:      "Number of proxy resources in the current snapshot",
	})
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(ServiceExports)
	registry.MustRegister(ConfigReloads)
	registry.MustRegister(RuleMatches)
	registry.MustRegister(SnapshotVersion)
	registry.MustRegister(ExportedResources)
}

// Handler returns the HTTP handler serving the metrics of the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
