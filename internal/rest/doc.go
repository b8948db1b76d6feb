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

// Package rest implements the passkey REST API server.
//
// The server wires the ceremony service to a configured storage
// backend, mounts the ceremony endpoints under /api/v1/passkey,
// exposes Kubernetes-style health probes and a Prometheus metrics
// endpoint, and records ceremony metrics from the outcome event bus.
package rest
