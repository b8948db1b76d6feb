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
	"context"
)

// CredentialStore manages credential persistence. Credentials are the
// public key records stored by the Relying Party, keyed by identity
// handle.
type CredentialStore interface {
	// GetCredentials retrieves all credentials for an identity.
	// Returns an empty slice if the identity has no credentials.
	GetCredentials(ctx context.Context, identity string) ([]*Credential, error)

	// AppendCredential adds a credential to an identity.
	// Returns ErrCredentialExists if the credential ID is already
	// registered.
	AppendCredential(ctx context.Context, identity string, cred *Credential) error

	// GetByCredentialID retrieves the identity and credential owning a
	// credential ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetByCredentialID(ctx context.Context, credID []byte) (string, *Credential, error)

	// UpdateCredential persists changes to an existing credential
	// (sign counter, last used).
	// Returns ErrCredentialNotFound if the credential does not exist.
	UpdateCredential(ctx context.Context, identity string, cred *Credential) error

	// DeleteCredentials removes all credentials for an identity.
	DeleteCredentials(ctx context.Context, identity string) error
}

// ChallengeStore manages pending challenge state between the begin and
// finish steps of a ceremony. Records are short-lived and single-use.
type ChallengeStore interface {
	// SaveChallenge stores a challenge record, replacing any existing
	// record for the same (identity, purpose) pair and invalidating
	// that record's token.
	SaveChallenge(ctx context.Context, rec *ChallengeRecord) error

	// GetChallenge retrieves a pending challenge by its ceremony token.
	// Returns ErrNoPendingChallenge if the token is unknown or the
	// record was consumed.
	GetChallenge(ctx context.Context, token string) (*ChallengeRecord, error)

	// DeleteChallenge consumes a challenge record by its ceremony
	// token. The delete is the single-use claim: it must be atomic
	// with respect to concurrent deletes of the same token, and it
	// returns ErrNoPendingChallenge when the token is already gone so
	// that exactly one of two racing consumers wins.
	DeleteChallenge(ctx context.Context, token string) error
}

// TokenGenerator is an optional interface for minting session tokens
// after a successful ceremony. If not provided, the service returns
// the base64-encoded user handle.
type TokenGenerator interface {
	// GenerateToken creates a token for the verified identity.
	GenerateToken(ctx context.Context, identity *Identity) (string, error)
}

// EventPublisher receives ceremony outcomes. Implementations must not
// block; publish errors are logged and never fail the ceremony.
type EventPublisher interface {
	// PublishOutcome delivers a completed ceremony outcome.
	PublishOutcome(ctx context.Context, outcome *Outcome) error
}
