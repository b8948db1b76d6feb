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

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_PutGet(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	err := m.Put("credentials/alice", []byte("value"), nil)
	require.NoError(t, err)

	got, err := m.Get("credentials/alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryBackend_GetNotFound(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, err := m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend_GetReturnsCopy(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("key", []byte("original"), nil))

	got, err := m.Get("key")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := m.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryBackend_Overwrite(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("key", []byte("one"), nil))
	require.NoError(t, m.Put("key", []byte("two"), nil))

	got, err := m.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestMemoryBackend_Delete(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("key", []byte("value"), nil))
	require.NoError(t, m.Delete("key"))

	_, err := m.Get("key")
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.Delete("key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend_TTL(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("ephemeral", []byte("value"), &Options{TTL: time.Millisecond}))
	require.NoError(t, m.Put("durable", []byte("value"), nil))

	time.Sleep(10 * time.Millisecond)

	_, err := m.Get("ephemeral")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := m.Exists("ephemeral")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.Get("durable")
	assert.NoError(t, err)
}

func TestMemoryBackend_TTLClearedOnOverwrite(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("key", []byte("one"), &Options{TTL: time.Millisecond}))
	require.NoError(t, m.Put("key", []byte("two"), nil))

	time.Sleep(10 * time.Millisecond)

	got, err := m.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestMemoryBackend_List(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("credentials/alice", []byte("a"), nil))
	require.NoError(t, m.Put("credentials/bob", []byte("b"), nil))
	require.NoError(t, m.Put("challenges/alice", []byte("c"), nil))

	keys, err := m.List("credentials/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"credentials/alice", "credentials/bob"}, keys)

	all, err := m.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryBackend_ListSkipsExpired(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("challenges/stale", []byte("x"), &Options{TTL: time.Millisecond}))
	require.NoError(t, m.Put("challenges/fresh", []byte("y"), nil))

	time.Sleep(10 * time.Millisecond)

	keys, err := m.List("challenges/")
	require.NoError(t, err)
	assert.Equal(t, []string{"challenges/fresh"}, keys)
}

func TestMemoryBackend_Exists(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	exists, err := m.Exists("key")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.Put("key", []byte("value"), nil))

	exists, err = m.Exists("key")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryBackend_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put("key", []byte("value"), nil))
	require.NoError(t, m.Close())

	_, err := m.Get("key")
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, m.Put("key", []byte("value"), nil), ErrClosed)
	assert.ErrorIs(t, m.Delete("key"), ErrClosed)

	_, err = m.List("")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = m.Exists("key")
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	assert.NoError(t, m.Close())
}
