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

// Package cli implements the passkey command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// configFile is the path to the YAML configuration file
	configFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "passkey",
	Short: "go-passkey - WebAuthn passkey ceremony server",
	Long: `go-passkey runs a WebAuthn relying party server that manages
passkey registration and authentication ceremonies.

The server issues single-use challenges, verifies authenticator
responses, tracks signature counters to detect cloned credentials,
and persists credentials in a pluggable storage backend:

  - memory: in-process storage for development and testing
  - file:   encrypted-at-rest friendly on-disk storage
  - redis:  shared storage for multi-instance deployments`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is /etc/passkey/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
