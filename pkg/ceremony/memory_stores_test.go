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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCredentialStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()

	// Empty store returns an empty slice, not an error.
	creds, err := store.GetCredentials(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, creds)

	cred := &Credential{ID: []byte{1, 2, 3}, PublicKey: []byte{4}}
	require.NoError(t, store.AppendCredential(ctx, "alice", cred))
	assert.Equal(t, 1, store.Count())

	// Credential IDs are globally unique, even across identities.
	err = store.AppendCredential(ctx, "bob", &Credential{ID: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrCredentialExists)

	owner, got, err := store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, cred.ID, got.ID)

	_, _, err = store.GetByCredentialID(ctx, []byte{9, 9, 9})
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	// Update persists counter changes.
	cred.SignCount = 10
	require.NoError(t, store.UpdateCredential(ctx, "alice", cred))
	_, got, err = store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(10), got.SignCount)

	// Updating under the wrong identity is rejected.
	err = store.UpdateCredential(ctx, "bob", cred)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	require.NoError(t, store.DeleteCredentials(ctx, "alice"))
	assert.Equal(t, 0, store.Count())
	_, _, err = store.GetByCredentialID(ctx, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryChallengeStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChallengeStore()

	_, err := store.GetChallenge(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoPendingChallenge)

	rec := &ChallengeRecord{
		Token:     "token-1",
		Identity:  "alice",
		Purpose:   PurposeRegistration,
		Challenge: "abc",
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, store.SaveChallenge(ctx, rec))

	got, err := store.GetChallenge(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Identity)

	// The delete is the single-use claim: a second delete of the same
	// token loses.
	require.NoError(t, store.DeleteChallenge(ctx, "token-1"))
	assert.ErrorIs(t, store.DeleteChallenge(ctx, "token-1"), ErrNoPendingChallenge)
	_, err = store.GetChallenge(ctx, "token-1")
	assert.ErrorIs(t, err, ErrNoPendingChallenge)
}

func TestMemoryChallengeStore_OverwritePerPurpose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChallengeStore()

	first := &ChallengeRecord{Token: "t1", Identity: "alice", Purpose: PurposeRegistration}
	second := &ChallengeRecord{Token: "t2", Identity: "alice", Purpose: PurposeRegistration}
	authRec := &ChallengeRecord{Token: "t3", Identity: "alice", Purpose: PurposeAuthentication}

	require.NoError(t, store.SaveChallenge(ctx, first))
	require.NoError(t, store.SaveChallenge(ctx, second))

	// The second registration challenge displaced the first.
	_, err := store.GetChallenge(ctx, "t1")
	assert.ErrorIs(t, err, ErrNoPendingChallenge)
	_, err = store.GetChallenge(ctx, "t2")
	require.NoError(t, err)

	// A different purpose coexists.
	require.NoError(t, store.SaveChallenge(ctx, authRec))
	_, err = store.GetChallenge(ctx, "t2")
	require.NoError(t, err)
	_, err = store.GetChallenge(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count())
}
