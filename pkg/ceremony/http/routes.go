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

	"github.com/go-chi/chi/v5"
)

// MountChi mounts ceremony routes on a chi router.
//
// Example:
//
//	handler := ceremonyhttp.NewHandler(svc)
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    ceremonyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/register/start", h.RegisterStart)
	r.Post("/register/finish", h.RegisterFinish)
	r.Get("/register/status", h.RegisterStatus)
	r.Post("/login/start", h.LoginStart)
	r.Post("/login/finish", h.LoginFinish)
}

// MountStdlib mounts ceremony routes on a stdlib http.ServeMux.
// The prefix should not include a trailing slash.
//
// Example:
//
//	handler := ceremonyhttp.NewHandler(svc)
//	ceremonyhttp.MountStdlib(mux, "/api/v1/passkey", handler)
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc(prefix+"/register/start", h.RegisterStart)
	mux.HandleFunc(prefix+"/register/finish", h.RegisterFinish)
	mux.HandleFunc(prefix+"/register/status", h.RegisterStatus)
	mux.HandleFunc(prefix+"/login/start", h.LoginStart)
	mux.HandleFunc(prefix+"/login/finish", h.LoginFinish)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting on
// frameworks not directly supported.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/register/start", Handler: h.RegisterStart},
		{Method: "POST", Path: "/register/finish", Handler: h.RegisterFinish},
		{Method: "GET", Path: "/register/status", Handler: h.RegisterStatus},
		{Method: "POST", Path: "/login/start", Handler: h.LoginStart},
		{Method: "POST", Path: "/login/finish", Handler: h.LoginFinish},
	}
}
