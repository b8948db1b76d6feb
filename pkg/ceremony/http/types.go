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

package http

// HeaderCeremonyToken is the header carrying the ceremony token issued
// at start and required at finish. The identity is resolved from this
// token server-side; finish requests never carry an identity.
const HeaderCeremonyToken = "X-Ceremony-Token"

// StartRequest is the request body for starting a registration or
// login ceremony.
type StartRequest struct {
	// Identity is the opaque identity handle, typically a username or
	// email (required).
	Identity string `json:"identity"`

	// DisplayName is the human-readable name shown by the
	// authenticator UI (optional, defaults to Identity). Only used
	// for registration.
	DisplayName string `json:"display_name,omitempty"`
}

// FinishResponse is the response after a successful ceremony.
type FinishResponse struct {
	// Verified is always true on a 200 response.
	Verified bool `json:"verified"`

	// Token is the post-ceremony session token.
	Token string `json:"token"`
}

// StatusResponse is the response for registration status.
type StatusResponse struct {
	// Registered indicates whether the identity has registered
	// credentials.
	Registered bool `json:"registered"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse. Verification failures share a
// single code so responses never reveal which check failed.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeNoPendingCeremony  = "no_pending_ceremony"
	ErrorCodeNoCredentials      = "no_credentials"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeStoreUnavailable   = "store_unavailable"
	ErrorCodeInternalError      = "internal_error"
)
