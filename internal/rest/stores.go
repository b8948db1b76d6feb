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

package rest

import (
	"fmt"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
	filestorage "github.com/jeremyhahn/go-passkey/pkg/storage/file"
	redisstorage "github.com/jeremyhahn/go-passkey/pkg/storage/redis"
)

// newBackend creates the storage backend selected by the configuration.
func newBackend(cfg *config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.New(), nil
	case config.BackendFile:
		return filestorage.New(cfg.Path)
	case config.BackendRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis backend selected but not configured")
		}
		return redisstorage.New(*cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
