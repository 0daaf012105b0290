// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
	"github.com/3scale-labs/gateway-ng-controller/pkg/metrics"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
)

const debounceInterval = 500 * time.Millisecond

// Watcher reloads the service configuration file when it changes. A reload
// failure keeps the last good service set.
type Watcher struct {
	logger     logrus.FieldLogger
	watcher    *fsnotify.Watcher
	configPath string

	mu        sync.Mutex
	callbacks []func([]service.Service)
	last      []service.Service
}

// NewWatcher loads the configuration at configPath and returns a watcher for
// it. The initial load must succeed; later reload failures are tolerated.
func NewWatcher(configPath string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	services, err := Load(configPath)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		logger:     logging.DefaultLogger.WithField(logfields.LogSubsys, "config-watcher"),
		watcher:    fsWatcher,
		configPath: configPath,
		last:       services,
	}, nil
}

// Services returns the last successfully loaded service set.
func (w *Watcher) Services() []service.Service {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// OnChange registers a callback invoked with the new service set after each
// successful reload.
func (w *Watcher) OnChange(callback func([]service.Service)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for configuration changes. Editors typically replace
// the file rather than write it in place, so the containing directory is
// watched instead of the file itself.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return err
	}
	go w.watch()
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) watch() {
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Configuration watch error")
		}
	}
}

func (w *Watcher) reload() {
	services, err := Load(w.configPath)
	if err != nil {
		metrics.ConfigReloads.WithLabelValues(metrics.LabelValueOutcomeFail).Inc()
		w.logger.WithError(err).WithField(logfields.ConfigPath, w.configPath).
			Error("Failed to reload service configuration, keeping previous")
		return
	}
	metrics.ConfigReloads.WithLabelValues(metrics.LabelValueOutcomeSuccess).Inc()

	w.mu.Lock()
	w.last = services
	callbacks := make([]func([]service.Service), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.WithField("services", len(services)).Info("Service configuration reloaded")
	for _, callback := range callbacks {
		callback(services)
	}
}
