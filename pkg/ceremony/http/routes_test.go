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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountChi(t *testing.T) {
	h := newTestHandler(t)
	r := chi.NewRouter()
	MountChi(r, h)

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/register/start", "application/json",
		strings.NewReader(`{"identity":"alice@example.com"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(HeaderCeremonyToken))

	resp, err = http.Get(srv.URL + "/register/status?identity=alice@example.com")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMountStdlib(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	MountStdlib(mux, "/api/v1/passkey", h)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/passkey/login/start", "application/json",
		strings.NewReader(`{"identity":"nobody@example.com"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Handlers enforce methods themselves when mounted on a bare mux.
	resp, err = http.Get(srv.URL + "/api/v1/passkey/register/start")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRoutes(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()
	require.Len(t, routes, 5)

	paths := make(map[string]string, len(routes))
	for _, rt := range routes {
		require.NotNil(t, rt.Handler)
		paths[rt.Path] = rt.Method
	}
	assert.Equal(t, "POST", paths["/register/start"])
	assert.Equal(t, "POST", paths["/register/finish"])
	assert.Equal(t, "GET", paths["/register/status"])
	assert.Equal(t, "POST", paths["/login/start"])
	assert.Equal(t, "POST", paths["/login/finish"])
}
