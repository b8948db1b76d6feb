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
	"encoding/hex"
	"sync"
)

// MemoryCredentialStore is an in-memory implementation of
// CredentialStore. This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu         sync.RWMutex
	byIdentity map[string][]*Credential
	byCredID   map[string]string
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byIdentity: make(map[string][]*Credential),
		byCredID:   make(map[string]string),
	}
}

// GetCredentials retrieves all credentials for an identity.
func (s *MemoryCredentialStore) GetCredentials(ctx context.Context, identity string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.byIdentity[identity]
	if !ok {
		return []*Credential{}, nil
	}

	// Return a copy to prevent external modification
	result := make([]*Credential, len(creds))
	copy(result, creds)
	return result, nil
}

// AppendCredential adds a credential to an identity.
func (s *MemoryCredentialStore) AppendCredential(ctx context.Context, identity string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(cred.ID)
	if _, ok := s.byCredID[credKey]; ok {
		return ErrCredentialExists
	}

	s.byIdentity[identity] = append(s.byIdentity[identity], cred)
	s.byCredID[credKey] = identity

	return nil
}

// GetByCredentialID retrieves the owning identity and credential for a
// credential ID.
func (s *MemoryCredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (string, *Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credKey := hex.EncodeToString(credID)
	identity, ok := s.byCredID[credKey]
	if !ok {
		return "", nil, ErrCredentialNotFound
	}

	for _, cred := range s.byIdentity[identity] {
		if hex.EncodeToString(cred.ID) == credKey {
			return identity, cred, nil
		}
	}
	return "", nil, ErrCredentialNotFound
}

// UpdateCredential persists changes to an existing credential.
func (s *MemoryCredentialStore) UpdateCredential(ctx context.Context, identity string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(cred.ID)
	if s.byCredID[credKey] != identity {
		return ErrCredentialNotFound
	}

	creds := s.byIdentity[identity]
	for i, c := range creds {
		if hex.EncodeToString(c.ID) == credKey {
			creds[i] = cred
			return nil
		}
	}
	return ErrCredentialNotFound
}

// DeleteCredentials removes all credentials for an identity.
func (s *MemoryCredentialStore) DeleteCredentials(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cred := range s.byIdentity[identity] {
		delete(s.byCredID, hex.EncodeToString(cred.ID))
	}
	delete(s.byIdentity, identity)
	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCredID)
}

// Clear removes all credentials from the store.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byIdentity = make(map[string][]*Credential)
	s.byCredID = make(map[string]string)
}

// MemoryChallengeStore is an in-memory implementation of
// ChallengeStore. This is intended for development and testing only.
type MemoryChallengeStore struct {
	mu      sync.RWMutex
	byToken map[string]*ChallengeRecord
	byOwner map[string]string
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		byToken: make(map[string]*ChallengeRecord),
		byOwner: make(map[string]string),
	}
}

func challengeOwnerKey(identity string, purpose Purpose) string {
	return identity + "/" + string(purpose)
}

// SaveChallenge stores a challenge record, replacing any existing
// record for the same (identity, purpose) pair.
func (s *MemoryChallengeStore) SaveChallenge(ctx context.Context, rec *ChallengeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ownerKey := challengeOwnerKey(rec.Identity, rec.Purpose)
	if prevToken, ok := s.byOwner[ownerKey]; ok {
		delete(s.byToken, prevToken)
	}

	s.byToken[rec.Token] = rec
	s.byOwner[ownerKey] = rec.Token
	return nil
}

// GetChallenge retrieves a pending challenge by its ceremony token.
func (s *MemoryChallengeStore) GetChallenge(ctx context.Context, token string) (*ChallengeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byToken[token]
	if !ok {
		return nil, ErrNoPendingChallenge
	}
	return rec, nil
}

// DeleteChallenge consumes a challenge record by its ceremony token.
// Returns ErrNoPendingChallenge if the token was already consumed, so
// only one of two racing consumers succeeds.
func (s *MemoryChallengeStore) DeleteChallenge(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byToken[token]
	if !ok {
		return ErrNoPendingChallenge
	}

	delete(s.byToken, token)
	ownerKey := challengeOwnerKey(rec.Identity, rec.Purpose)
	if s.byOwner[ownerKey] == token {
		delete(s.byOwner, ownerKey)
	}
	return nil
}

// Count returns the number of pending challenges in the store.
func (s *MemoryChallengeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byToken)
}

// Clear removes all challenges from the store.
func (s *MemoryChallengeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken = make(map[string]*ChallengeRecord)
	s.byOwner = make(map[string]string)
}
