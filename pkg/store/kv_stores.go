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

// Package store implements the ceremony storage contracts on top of a
// storage.Backend, giving the ceremony service durable credential and
// challenge state on any backend (memory, file, Redis).
//
// Records are encoded with CBOR. Identity handles are base64url
// encoded in keys so arbitrary handles remain safe on path-based
// backends.
package store

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

const (
	credentialPrefix     = "credential/"
	credentialIndexKey   = "credindex/"
	challengeTokenPrefix = "challenge/token/"
	challengeOwnerPrefix = "challenge/owner/"
)

// credentialIndex maps a credential ID back to its owning identity.
type credentialIndex struct {
	Identity string `cbor:"identity"`
}

func identityKey(identity string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(identity))
}

func credentialKey(identity string, credID []byte) string {
	return credentialPrefix + identityKey(identity) + "/" + hex.EncodeToString(credID)
}

func indexKey(credID []byte) string {
	return credentialIndexKey + hex.EncodeToString(credID)
}

func ownerKey(identity string, purpose ceremony.Purpose) string {
	return challengeOwnerPrefix + identityKey(identity) + "/" + string(purpose)
}

// CredentialStore is a storage.Backend-backed implementation of
// ceremony.CredentialStore.
type CredentialStore struct {
	backend storage.Backend
}

// NewCredentialStore creates a credential store over the backend.
func NewCredentialStore(backend storage.Backend) *CredentialStore {
	return &CredentialStore{backend: backend}
}

// GetCredentials retrieves all credentials for an identity.
func (s *CredentialStore) GetCredentials(ctx context.Context, identity string) ([]*ceremony.Credential, error) {
	keys, err := s.backend.List(credentialPrefix + identityKey(identity) + "/")
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	creds := make([]*ceremony.Credential, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Get(key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get credential %q: %w", key, err)
		}
		var cred ceremony.Credential
		if err := cbor.Unmarshal(data, &cred); err != nil {
			return nil, fmt.Errorf("decode credential %q: %w", key, err)
		}
		creds = append(creds, &cred)
	}
	return creds, nil
}

// AppendCredential adds a credential to an identity.
func (s *CredentialStore) AppendCredential(ctx context.Context, identity string, cred *ceremony.Credential) error {
	exists, err := s.backend.Exists(indexKey(cred.ID))
	if err != nil {
		return fmt.Errorf("check credential index: %w", err)
	}
	if exists {
		return ceremony.ErrCredentialExists
	}

	data, err := cbor.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.backend.Put(credentialKey(identity, cred.ID), data, nil); err != nil {
		return fmt.Errorf("put credential: %w", err)
	}

	idx, err := cbor.Marshal(credentialIndex{Identity: identity})
	if err != nil {
		return fmt.Errorf("encode credential index: %w", err)
	}
	if err := s.backend.Put(indexKey(cred.ID), idx, nil); err != nil {
		return fmt.Errorf("put credential index: %w", err)
	}
	return nil
}

// GetByCredentialID retrieves the owning identity and credential for a
// credential ID.
func (s *CredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (string, *ceremony.Credential, error) {
	data, err := s.backend.Get(indexKey(credID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ceremony.ErrCredentialNotFound
		}
		return "", nil, fmt.Errorf("get credential index: %w", err)
	}

	var idx credentialIndex
	if err := cbor.Unmarshal(data, &idx); err != nil {
		return "", nil, fmt.Errorf("decode credential index: %w", err)
	}

	credData, err := s.backend.Get(credentialKey(idx.Identity, credID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ceremony.ErrCredentialNotFound
		}
		return "", nil, fmt.Errorf("get credential: %w", err)
	}

	var cred ceremony.Credential
	if err := cbor.Unmarshal(credData, &cred); err != nil {
		return "", nil, fmt.Errorf("decode credential: %w", err)
	}
	return idx.Identity, &cred, nil
}

// UpdateCredential persists changes to an existing credential.
func (s *CredentialStore) UpdateCredential(ctx context.Context, identity string, cred *ceremony.Credential) error {
	key := credentialKey(identity, cred.ID)
	exists, err := s.backend.Exists(key)
	if err != nil {
		return fmt.Errorf("check credential: %w", err)
	}
	if !exists {
		return ceremony.ErrCredentialNotFound
	}

	data, err := cbor.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.backend.Put(key, data, nil); err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// DeleteCredentials removes all credentials for an identity.
func (s *CredentialStore) DeleteCredentials(ctx context.Context, identity string) error {
	keys, err := s.backend.List(credentialPrefix + identityKey(identity) + "/")
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}

	for _, key := range keys {
		data, err := s.backend.Get(key)
		if err == nil {
			var cred ceremony.Credential
			if err := cbor.Unmarshal(data, &cred); err == nil {
				if err := s.backend.Delete(indexKey(cred.ID)); err != nil && !errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("delete credential index: %w", err)
				}
			}
		}
		if err := s.backend.Delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete credential: %w", err)
		}
	}
	return nil
}

// ChallengeStore is a storage.Backend-backed implementation of
// ceremony.ChallengeStore. Records carry a storage TTL on backends
// that support expiry, record expiry is still enforced by the service.
type ChallengeStore struct {
	backend storage.Backend
}

// NewChallengeStore creates a challenge store over the backend.
func NewChallengeStore(backend storage.Backend) *ChallengeStore {
	return &ChallengeStore{backend: backend}
}

// SaveChallenge stores a challenge record, replacing any existing
// record for the same (identity, purpose) pair and invalidating its
// token.
func (s *ChallengeStore) SaveChallenge(ctx context.Context, rec *ceremony.ChallengeRecord) error {
	owner := ownerKey(rec.Identity, rec.Purpose)

	if prev, err := s.backend.Get(owner); err == nil {
		if err := s.backend.Delete(challengeTokenPrefix + string(prev)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete stale challenge: %w", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get challenge owner: %w", err)
	}

	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}

	opts := &storage.Options{}
	if !rec.ExpiresAt.IsZero() {
		if ttl := time.Until(rec.ExpiresAt); ttl > 0 {
			opts.TTL = ttl
		}
	}

	if err := s.backend.Put(challengeTokenPrefix+rec.Token, data, opts); err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	if err := s.backend.Put(owner, []byte(rec.Token), opts); err != nil {
		return fmt.Errorf("put challenge owner: %w", err)
	}
	return nil
}

// GetChallenge retrieves a pending challenge by its ceremony token.
func (s *ChallengeStore) GetChallenge(ctx context.Context, token string) (*ceremony.ChallengeRecord, error) {
	data, err := s.backend.Get(challengeTokenPrefix + token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ceremony.ErrNoPendingChallenge
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	var rec ceremony.ChallengeRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &rec, nil
}

// DeleteChallenge consumes a challenge record by its ceremony token.
// The token key delete is the single-use claim: the backend reports
// a missing key, so of two racing consumers only the one whose delete
// removed the key succeeds. The loser gets ErrNoPendingChallenge.
func (s *ChallengeStore) DeleteChallenge(ctx context.Context, token string) error {
	data, err := s.backend.Get(challengeTokenPrefix + token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ceremony.ErrNoPendingChallenge
		}
		return fmt.Errorf("get challenge: %w", err)
	}

	if err := s.backend.Delete(challengeTokenPrefix + token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ceremony.ErrNoPendingChallenge
		}
		return fmt.Errorf("delete challenge: %w", err)
	}

	// Owner index cleanup happens after the claim, and only if the
	// index still points at this token (a newer challenge may have
	// displaced it).
	var rec ceremony.ChallengeRecord
	if err := cbor.Unmarshal(data, &rec); err == nil {
		owner := ownerKey(rec.Identity, rec.Purpose)
		if current, ownerErr := s.backend.Get(owner); ownerErr == nil && string(current) == token {
			if err := s.backend.Delete(owner); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("delete challenge owner: %w", err)
			}
		}
	}
	return nil
}
