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

package ceremony

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a structurally invalid request: empty
	// identity, malformed ceremony token, or an unparseable
	// authenticator response.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoPendingChallenge indicates no unconsumed challenge exists
	// for the ceremony token, either because none was issued, it was
	// already consumed, or it expired.
	ErrNoPendingChallenge = errors.New("no pending challenge")

	// ErrVerificationFailed is the umbrella for every verification
	// failure class. The specific failures below wrap it so callers
	// can match either the class or the umbrella.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrChallengeMismatch indicates the signed client data does not
	// echo the issued challenge.
	ErrChallengeMismatch = fmt.Errorf("%w: challenge mismatch", ErrVerificationFailed)

	// ErrOriginMismatch indicates the client data origin is not an
	// allowed relying party origin.
	ErrOriginMismatch = fmt.Errorf("%w: origin mismatch", ErrVerificationFailed)

	// ErrRelyingPartyMismatch indicates the authenticator data relying
	// party ID hash does not match the configured relying party.
	ErrRelyingPartyMismatch = fmt.Errorf("%w: relying party mismatch", ErrVerificationFailed)

	// ErrSignatureInvalid indicates the assertion or attestation
	// signature does not verify against the credential public key.
	ErrSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrVerificationFailed)

	// ErrCounterRegressed indicates the reported signature counter did
	// not advance past the stored value, a possible cloned
	// authenticator.
	ErrCounterRegressed = fmt.Errorf("%w: signature counter regressed", ErrVerificationFailed)

	// ErrUserNotPresent indicates the authenticator did not assert
	// user presence.
	ErrUserNotPresent = fmt.Errorf("%w: user presence not asserted", ErrVerificationFailed)

	// ErrUserNotVerified indicates the relying party policy requires
	// user verification and the authenticator did not assert it.
	ErrUserNotVerified = fmt.Errorf("%w: user verification not asserted", ErrVerificationFailed)

	// ErrNoCredentials indicates an authentication ceremony was
	// requested for an identity with no registered credentials.
	ErrNoCredentials = errors.New("no credentials registered")

	// ErrCredentialNotFound indicates the asserted credential ID is
	// not registered for the identity bound to the ceremony.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists indicates a registration attempted to reuse
	// an already registered credential ID.
	ErrCredentialExists = errors.New("credential already registered")

	// ErrStoreUnavailable indicates the backing store failed or timed
	// out. The operation may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// CeremonyError wraps an underlying error with the operation that
// produced it.
type CeremonyError struct {
	Op  string
	Err error
}

// Error returns the formatted error string.
func (e *CeremonyError) Error() string {
	return fmt.Sprintf("ceremony: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the underlying error matches target.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapError wraps err with the operation name. Nil errors pass through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CeremonyError{Op: op, Err: err}
}

// IsInvalidInput reports whether err is an invalid input error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNoPendingChallenge reports whether err indicates a missing, used,
// or expired challenge.
func IsNoPendingChallenge(err error) bool {
	return errors.Is(err, ErrNoPendingChallenge)
}

// IsVerificationFailed reports whether err is any verification
// failure class.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsCounterRegressed reports whether err is a signature counter
// regression.
func IsCounterRegressed(err error) bool {
	return errors.Is(err, ErrCounterRegressed)
}

// IsNoCredentials reports whether err indicates an identity with no
// registered credentials.
func IsNoCredentials(err error) bool {
	return errors.Is(err, ErrNoCredentials)
}

// IsCredentialNotFound reports whether err indicates an unknown
// credential ID.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsStoreUnavailable reports whether err indicates a retryable store
// failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// FailureReason maps a verification error to a short stable reason
// string for events and metrics. Returns "unknown" for errors outside
// the verification taxonomy.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrChallengeMismatch):
		return "challenge_mismatch"
	case errors.Is(err, ErrOriginMismatch):
		return "origin_mismatch"
	case errors.Is(err, ErrRelyingPartyMismatch):
		return "rp_mismatch"
	case errors.Is(err, ErrCounterRegressed):
		return "counter_regressed"
	case errors.Is(err, ErrUserNotPresent):
		return "user_not_present"
	case errors.Is(err, ErrUserNotVerified):
		return "user_not_verified"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, ErrNoPendingChallenge):
		return "no_pending_challenge"
	case errors.Is(err, ErrCredentialNotFound):
		return "credential_not_found"
	case errors.Is(err, ErrCredentialExists):
		return "credential_exists"
	case errors.Is(err, ErrNoCredentials):
		return "no_credentials"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "unknown"
	}
}
