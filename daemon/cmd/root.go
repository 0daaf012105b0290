// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package cmd implements the gateway-ng-controller daemon command.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/3scale-labs/gateway-ng-controller/pkg/config"
	"github.com/3scale-labs/gateway-ng-controller/pkg/controller"
	"github.com/3scale-labs/gateway-ng-controller/pkg/export"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging"
	"github.com/3scale-labs/gateway-ng-controller/pkg/logging/logfields"
	"github.com/3scale-labs/gateway-ng-controller/pkg/oidc"
	"github.com/3scale-labs/gateway-ng-controller/pkg/option"
	"github.com/3scale-labs/gateway-ng-controller/pkg/server"
	"github.com/3scale-labs/gateway-ng-controller/pkg/service"
	"github.com/3scale-labs/gateway-ng-controller/pkg/xds"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "daemon")

var (
	vp = viper.New()

	rootCmd = &cobra.Command{
		Use:   "gateway-ng-controller",
		Short: "Compile service descriptors into proxy configuration and serve it over xDS",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.SetupLogging(logging.LogOptions{
				logging.LevelOpt:  vp.GetString(option.LogLevel),
				logging.FormatOpt: vp.GetString(option.LogFormat),
			}); err != nil {
				return err
			}
			if err := option.Config.Populate(vp); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return runDaemon(cmd.Context())
		},
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.String(option.ConfigFile, "", "Path of the service configuration file")
	flags.String(option.XDSAddress, option.Config.XDSAddress, "Listen address of the xDS gRPC server")
	flags.String(option.HTTPAddress, option.Config.HTTPAddress, "Listen address of the asset/admin HTTP server")
	flags.String(option.StaticDir, option.Config.StaticDir, "Directory served under /static/")
	flags.String(option.WasmFilterPath, option.Config.WasmFilterPath, "Path of the bundled metering filter binary")
	flags.String(option.AssetBaseURL, option.Config.AssetBaseURL, "External base URL proxies fetch assets from")
	flags.String(option.NodeID, option.Config.NodeID, "xDS node identifier snapshots are installed for")
	flags.String(option.LogLevel, "info", "Log level (trace, debug, info, warning, error)")
	flags.String(option.LogFormat, logging.LogFormatText, "Log format (text, json)")

	vp.BindPFlags(flags)
	vp.SetEnvPrefix("GATEWAY_NG")
	vp.AutomaticEnv()
}

// Execute runs the daemon command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Daemon startup failed")
	}
}

func runDaemon(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, err := config.NewWatcher(option.Config.ConfigFile)
	if err != nil {
		return err
	}
	defer watcher.Close()

	exporter := export.NewExporter(
		oidc.NewDiscovery(),
		option.Config.WasmFilterPath,
		option.Config.AssetBaseURL,
	)
	cache := xds.NewCache(option.Config.NodeID)
	ctrl := controller.New(exporter, cache)

	if err := ctrl.Reload(ctx, watcher.Services()); err != nil {
		// Degraded start: the healthy services' resources are served,
		// the failing ones retry on the next configuration change.
		log.WithError(err).Error("Initial compilation incomplete")
	}

	watcher.OnChange(func(services []service.Service) {
		if err := ctrl.Reload(ctx, services); err != nil {
			log.WithError(err).Error("Recompilation incomplete")
		}
	})
	if err := watcher.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- xds.NewServer(ctx, cache, option.Config.XDSAddress).Serve(ctx)
	}()
	go func() {
		errCh <- server.New(option.Config.HTTPAddress, option.Config.StaticDir).Serve(ctx)
	}()

	select {
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
		return nil
	}
}
