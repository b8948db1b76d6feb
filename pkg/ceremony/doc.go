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

// Package ceremony implements the server side of WebAuthn passkey
// registration and authentication ceremonies.
//
// Each ceremony is a two-step exchange. The begin step mints a fresh
// random challenge, binds it to an identity and a purpose, and returns
// client-facing options plus an opaque ceremony token. The finish step
// resolves the identity from the token, consumes the challenge, and
// verifies the authenticator response: challenge echo, origin, relying
// party binding, signature, and signature counter, in that order.
//
// Challenges are strictly single-use. A finish attempt consumes the
// pending challenge whether verification succeeds or fails, and a new
// begin for the same identity and purpose overwrites any unconsumed
// challenge. Signature counters must strictly increase across
// authentications unless the authenticator never implements them
// (both stored and reported zero); a non-increasing counter is
// rejected as a cloned authenticator signal.
//
// # Architecture
//
//  1. Service - orchestrates ceremonies inside per-identity critical
//     sections
//  2. Issuer / Verifier - challenge minting and response verification
//  3. CredentialStore / ChallengeStore - pluggable persistence
//  4. HTTP layer (pkg/ceremony/http) - composable HTTP handlers
//
// # Usage
//
// Basic usage with in-memory storage (for development):
//
//	svc, err := ceremony.NewService(ceremony.ServiceParams{
//	    Config: &ceremony.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "My App",
//	        RPOrigins:     []string{"https://localhost:3000"},
//	    },
//	    CredentialStore: ceremony.NewMemoryCredentialStore(),
//	    ChallengeStore:  ceremony.NewMemoryChallengeStore(),
//	})
//
// For production, implement the storage interfaces with your database
// or use pkg/store over a storage backend.
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package ceremony
