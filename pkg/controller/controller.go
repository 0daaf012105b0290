// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package controller ties configuration loading, the export engine and the
// distribution cache together: whenever the service set changes it recompiles
// every service and installs the merged bundle as a new snapshot.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/3scale-labs/gateway-ng-controller/pkg/envoy"
	"github.com/3scale-labs/gateway-ng-controller/pkg/export"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
	"github.com/3scale-labs/gateway-ng-controller/pkg/metrics"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
	"github.com/3scale-labs/gateway-ng-controller/pkg/xds"
)

// Controller compiles the service set and pushes the result to the
// distribution cache.
type Controller struct {
	logger   logrus.FieldLogger
	exporter *export.Exporter
	cache    *xds.Cache
}

// New returns a Controller publishing through the given cache.
func New(exporter *export.Exporter, cache *xds.Cache) *Controller {
	return &Controller{
		logger:   logging.DefaultLogger.WithField(logfields.LogSubsys, "controller"),
		exporter: exporter,
		cache:    cache,
	}
}

// Reload exports all services and installs the merged bundle. A service that
// fails to export contributes nothing to the snapshot - its bundle is
// withheld entirely - but does not block the other services' resources. The
// returned error joins all per-service failures.
func (c *Controller) Reload(ctx context.Context, services []service.Service) error {
	var reloadErr error
	var bundle []envoy.EnvoyExport

	for i := range services {
		svc := &services[i]

		exports, err := c.exporter.Export(ctx, svc)
		if err != nil {
			metrics.ServiceExports.WithLabelValues(metrics.LabelValueOutcomeFail).Inc()
			c.logger.WithError(err).WithField(logfields.ServiceID, svc.ID).
				Error("Failed to export service, withholding its resources")
			reloadErr = errors.Join(reloadErr, err)
			continue
		}
		metrics.ServiceExports.WithLabelValues(metrics.LabelValueOutcomeSuccess).Inc()
		bundle = append(bundle, exports...)
	}

	if err := c.cache.SetExports(ctx, bundle); err != nil {
		reloadErr = errors.Join(reloadErr, fmt.Errorf("failed to install snapshot: %w", err))
	}

	return reloadErr
}
