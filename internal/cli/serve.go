// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
)

// serveCmd starts the passkey server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the passkey server",
	Long: `Start the passkey REST API server.

Configuration is read from the file given with --config, falling back
to /etc/passkey/config.yaml, then to built-in defaults. Environment
variables prefixed with PASSKEY_ override file settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := logging.New(cfg.Logging)

		server, err := rest.NewServer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		// Graceful shutdown on SIGINT/SIGTERM
		shutdownCtx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Info("Shutdown signal received")
		case err := <-errChan:
			if err != nil {
				return err
			}
			return nil
		}

		timeoutCtx, cancel := context.WithTimeout(context.Background(),
			cfg.Server.ShutdownTimeout)
		defer cancel()

		return server.Stop(timeoutCtx)
	},
}

// loadConfig resolves the configuration file path and loads it. When
// no file exists at the resolved path, defaults with environment
// overrides are used.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("PASSKEY_CONFIG")
	}
	if path == "" {
		path = "/etc/passkey/config.yaml"
	}

	if _, err := os.Stat(path); err != nil {
		if configFile != "" {
			// An explicitly requested config file must exist
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		cfg := config.DefaultConfig()
		config.ApplyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	return config.Load(path)
}
