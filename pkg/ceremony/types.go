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
	"encoding/binary"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Purpose identifies which of the two WebAuthn ceremonies a challenge
// was issued for. A challenge minted for one purpose is never valid
// for the other.
type Purpose string

const (
	// PurposeRegistration is the attestation (credential creation) ceremony.
	PurposeRegistration Purpose = "registration"

	// PurposeAuthentication is the assertion (login) ceremony.
	PurposeAuthentication Purpose = "authentication"
)

// Identity is a registrant as the relying party sees it: an opaque
// handle (username or email) plus the credentials enrolled for it.
// It implements webauthn.User so it can be passed directly to the
// option generators.
type Identity struct {
	// Handle is the unique opaque identifier for this registrant.
	Handle string `json:"handle"`

	// Name is the human-readable display name (defaults to Handle).
	Name string `json:"name,omitempty"`

	// Credentials are the authenticators registered for this identity.
	Credentials []*Credential `json:"credentials,omitempty"`
}

// UserHandleFor derives the stable WebAuthn user handle for an identity
// handle. The result is an 8-byte FNV-1a digest, deterministic so the
// same identity always maps to the same user handle.
func UserHandleFor(handle string) []byte {
	var h uint64 = 14695981039346656037 // FNV offset basis
	for _, b := range []byte(handle) {
		h ^= uint64(b)
		h *= 1099511628211 // FNV prime
	}
	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, h)
	return id
}

// WebAuthnID returns the user handle bytes.
func (i *Identity) WebAuthnID() []byte {
	return UserHandleFor(i.Handle)
}

// WebAuthnName returns the account name.
func (i *Identity) WebAuthnName() string {
	return i.Handle
}

// WebAuthnDisplayName returns the display name, falling back to the handle.
func (i *Identity) WebAuthnDisplayName() string {
	if i.Name == "" {
		return i.Handle
	}
	return i.Name
}

// WebAuthnCredentials returns the registered credentials in the
// go-webauthn library's representation.
func (i *Identity) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(i.Credentials))
	for n, c := range i.Credentials {
		creds[n] = c.ToWebAuthn()
	}
	return creds
}

// Credential is one registered authenticator for an Identity: the
// public key material the relying party stores plus the bookkeeping
// needed for clone detection.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	// Globally unique across all identities.
	ID []byte `json:"id"`

	// PublicKey is the credential public key in COSE format. It is
	// used only for signature verification, never for derivation.
	PublicKey []byte `json:"public_key"`

	// AttestationType records the attestation format conveyed at
	// registration ("none", "packed", ...).
	AttestationType string `json:"attestation_type,omitempty"`

	// Transport lists the transports the authenticator declared.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// AAGUID identifies the authenticator model.
	AAGUID []byte `json:"aaguid,omitempty"`

	// SignCount is the signature counter reported at the last
	// successful authentication. Monotonically non-decreasing.
	SignCount uint32 `json:"sign_count"`

	// UserPresent and UserVerified are the flags observed at registration.
	UserPresent  bool `json:"user_present"`
	UserVerified bool `json:"user_verified"`

	// BackupEligible and BackupState are the credential backup flags.
	BackupEligible bool `json:"backup_eligible"`
	BackupState    bool `json:"backup_state"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed an
	// authentication ceremony.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// ToWebAuthn converts the credential to the go-webauthn library type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.UserPresent,
			UserVerified:   c.UserVerified,
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// ChallengeRecord is the pending ceremony state persisted between the
// begin and finish steps. At most one record exists per
// (identity, purpose) pair; issuing a new challenge overwrites any
// prior unconsumed one.
type ChallengeRecord struct {
	// Token is the unguessable ceremony token returned to the client
	// at begin and required at finish. The identity is resolved from
	// the token server-side and never re-accepted from the client.
	Token string `json:"token"`

	// Identity is the handle the challenge is bound to.
	Identity string `json:"identity"`

	// Purpose is the ceremony the challenge was minted for.
	Purpose Purpose `json:"purpose"`

	// Challenge is the base64url-encoded challenge value.
	Challenge string `json:"challenge"`

	// IssuedAt and ExpiresAt bound the challenge lifetime.
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge lifetime has elapsed.
func (r *ChallengeRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Outcome describes a completed ceremony attempt. Outcomes are handed
// to the configured EventPublisher so presentation layers can react
// without the core knowing anything about them.
type Outcome struct {
	// Identity is the handle the ceremony was bound to.
	Identity string `json:"identity"`

	// Purpose is the ceremony that completed.
	Purpose Purpose `json:"purpose"`

	// Verified reports whether the ceremony succeeded.
	Verified bool `json:"verified"`

	// Reason carries the internal failure class for diagnostics.
	// Empty on success. Never exposed to clients.
	Reason string `json:"reason,omitempty"`

	// CredentialID is the base64url credential identifier involved,
	// when known.
	CredentialID string `json:"credential_id,omitempty"`

	// At is when the ceremony completed.
	At time.Time `json:"at"`
}
