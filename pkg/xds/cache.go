// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package xds distributes compiled resource bundles to proxies over the
// aggregated discovery service.
package xds

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	cache_types "github.com/envoyproxy/go-control-plane/pkg/cache/types"
	cache "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	envoy_resource "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	"github.com/sirupsen/logrus"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
	"github.com/3scale-labs/gateway-ng-controller/pkg/metrics"
)

// Cache wraps a snapshot cache and installs compiled export bundles into it
// as monotonically versioned snapshots.
type Cache struct {
	logger        logrus.FieldLogger
	snapshotCache cache.SnapshotCache
	nodeID        string
	version       atomic.Uint64
}

// NewCache returns a Cache installing snapshots for the given node id.
func NewCache(nodeID string) *Cache {
	logger := logging.DefaultLogger.WithField(logfields.LogSubsys, "xds")
	return &Cache{
		logger:        logger,
		snapshotCache: cache.NewSnapshotCache(true, cache.IDHash{}, logger),
		nodeID:        nodeID,
	}
}

// SnapshotCache exposes the underlying cache for the discovery server.
func (c *Cache) SnapshotCache() cache.SnapshotCache {
	return c.snapshotCache
}

// SetExports merges the keyed exports into a new snapshot and installs it.
// Entries sharing a key overwrite earlier ones, collapsing auxiliary clusters
// that several services legitimately produce, such as a shared identity
// provider cluster.
func (c *Cache) SetExports(ctx context.Context, exports []envoy.EnvoyExport) error {
	merged := make(map[string]envoy.EnvoyExport, len(exports))
	for _, export := range exports {
		merged[export.Key] = export
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var clusters, listeners []cache_types.Resource
	for _, key := range keys {
		resource := merged[key].Config
		switch {
		case resource.Cluster != nil:
			clusters = append(clusters, resource.Cluster)
		case resource.Listener != nil:
			listeners = append(listeners, resource.Listener)
		}
	}

	version := strconv.FormatUint(c.version.Add(1), 10)
	snapshot, err := cache.NewSnapshot(version, map[envoy_resource.Type][]cache_types.Resource{
		envoy_resource.ClusterType:  clusters,
		envoy_resource.ListenerType: listeners,
	})
	if err != nil {
		return fmt.Errorf("failed to build snapshot version %s: %w", version, err)
	}

	if err := c.snapshotCache.SetSnapshot(ctx, c.nodeID, snapshot); err != nil {
		return fmt.Errorf("failed to install snapshot version %s: %w", version, err)
	}

	metrics.SnapshotVersion.Set(float64(c.version.Load()))
	metrics.ExportedResources.Set(float64(len(merged)))

	c.logger.WithFields(logrus.Fields{
		logfields.NodeID:  c.nodeID,
		logfields.Version: version,
		"clusters":        len(clusters),
		"listeners":       len(listeners),
	}).Info("Installed xDS snapshot")

	return nil
}
