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

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
)

// Handler provides HTTP handlers for passkey ceremonies. The handlers
// can be mounted on any HTTP router.
type Handler struct {
	service *ceremony.Service
	logger  *slog.Logger
}

// NewHandler creates a new ceremony HTTP handler.
func NewHandler(service *ceremony.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// RegisterStart handles POST /register/start
//
// Request body:
//
//	{
//	    "identity": "user@example.com",
//	    "display_name": "User Name" // optional
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions
// Header: X-Ceremony-Token (required for RegisterFinish)
func (h *Handler) RegisterStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Identity == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identity is required")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Identity
	}

	options, token, err := h.service.BeginRegistration(r.Context(), req.Identity, displayName)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderCeremonyToken, token)
	h.writeJSON(w, http.StatusOK, options)
}

// RegisterFinish handles POST /register/finish
//
// Header: X-Ceremony-Token (from RegisterStart)
// Request body: attestation response from the authenticator
// Response: FinishResponse with the session token
func (h *Handler) RegisterFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	token := r.Header.Get(HeaderCeremonyToken)
	if token == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "ceremony token header is required")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	sessionToken, _, err := h.service.FinishRegistration(r.Context(), token, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, FinishResponse{
		Verified: true,
		Token:    sessionToken,
	})
}

// LoginStart handles POST /login/start
//
// Request body:
//
//	{
//	    "identity": "user@example.com"
//	}
//
// Response: WebAuthn PublicKeyCredentialRequestOptions
// Header: X-Ceremony-Token (required for LoginFinish)
func (h *Handler) LoginStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Identity == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identity is required")
		return
	}

	options, token, err := h.service.BeginAuthentication(r.Context(), req.Identity)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderCeremonyToken, token)
	h.writeJSON(w, http.StatusOK, options)
}

// LoginFinish handles POST /login/finish
//
// Header: X-Ceremony-Token (from LoginStart)
// Request body: assertion response from the authenticator
// Response: FinishResponse with the session token
func (h *Handler) LoginFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	token := r.Header.Get(HeaderCeremonyToken)
	if token == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "ceremony token header is required")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	sessionToken, _, err := h.service.FinishAuthentication(r.Context(), token, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, FinishResponse{
		Verified: true,
		Token:    sessionToken,
	})
}

// RegisterStatus handles GET /register/status
//
// Query param: identity
// Response: {"registered": true/false}
func (h *Handler) RegisterStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	identity := r.URL.Query().Get("identity")
	if identity == "" {
		h.writeJSON(w, http.StatusOK, StatusResponse{Registered: false})
		return
	}

	registered, err := h.service.IsRegistered(r.Context(), identity)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Registered: registered})
}

// handleServiceError maps service errors to HTTP responses. Every
// verification failure collapses to the same status, code, and
// message so responses never reveal which check failed.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ceremony.ErrVerificationFailed):
		h.writeError(w, http.StatusBadRequest, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, ceremony.ErrCredentialNotFound),
		errors.Is(err, ceremony.ErrCredentialExists):
		h.writeError(w, http.StatusBadRequest, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, ceremony.ErrNoPendingChallenge):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoPendingCeremony, "no pending ceremony")
	case errors.Is(err, ceremony.ErrNoCredentials):
		h.writeError(w, http.StatusNotFound, ErrorCodeNoCredentials, "no credentials registered")
	case errors.Is(err, ceremony.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request")
	case errors.Is(err, ceremony.ErrStoreUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, ErrorCodeStoreUnavailable, "temporarily unavailable")
	default:
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
