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

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilConfig(t *testing.T) {
	l := New(nil)
	defer l.Stop()

	assert.False(t, l.IsEnabled())
	assert.True(t, l.Allow("client"))
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(&Config{Enabled: false, RequestsPerMinute: 1})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("client"))
	}
}

func TestLimiter_Burst(t *testing.T) {
	l := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             3,
	})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("client"), "request %d within burst should pass", i)
	}
	assert.False(t, l.Allow("client"))
}

func TestLimiter_PerClientIsolation(t *testing.T) {
	l := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             1,
	})
	defer l.Stop()

	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))

	// A different client has its own bucket.
	assert.True(t, l.Allow("bob"))
}

func TestLimiter_BurstDefaultsToRate(t *testing.T) {
	l := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 5,
	})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("client"), "request %d within burst should pass", i)
	}
	assert.False(t, l.Allow("client"))
}

func TestLimiter_Stats(t *testing.T) {
	l := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             10,
	})
	defer l.Stop()

	l.Allow("alice")
	l.Allow("bob")

	stats := l.Stats()
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 2, stats["active_clients"])
	assert.Equal(t, float64(60), stats["rate_per_min"])
	assert.Equal(t, 10, stats["burst"])
}

func TestMiddleware(t *testing.T) {
	l := New(&Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             2,
	})
	defer l.Stop()

	handler := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, doRequest("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, doRequest("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest("10.0.0.1:1234"))

	// Other clients are unaffected.
	assert.Equal(t, http.StatusOK, doRequest("10.0.0.2:1234"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:   "remote addr only",
			remote: "192.168.1.1:5000",
			want:   "192.168.1.1:5000",
		},
		{
			name:    "x-forwarded-for single",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5"},
			remote:  "10.0.0.1:5000",
			want:    "203.0.113.5",
		},
		{
			name:    "x-forwarded-for chain takes first",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2, 10.0.0.3"},
			remote:  "10.0.0.1:5000",
			want:    "203.0.113.5",
		},
		{
			name:    "x-real-ip fallback",
			headers: map[string]string{"X-Real-IP": "203.0.113.9"},
			remote:  "10.0.0.1:5000",
			want:    "203.0.113.9",
		},
		{
			name: "x-forwarded-for wins over x-real-ip",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.5",
				"X-Real-IP":       "203.0.113.9",
			},
			remote: "10.0.0.1:5000",
			want:   "203.0.113.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
