// Package api serves the credential vault over HTTP for the web UI.
//
// The owner of every credential request is taken from the X-Owner-ID
// header, which an authenticating proxy in front of this server sets.
package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forest6511/quantavault/pkg/security"
	"github.com/forest6511/quantavault/pkg/vault"
)

// OwnerHeader carries the authenticated owner ID.
const OwnerHeader = "X-Owner-ID"

// requestTimeout bounds every request.
const requestTimeout = 30 * time.Second

// SetupRouter builds the HTTP routes over v.
func SetupRouter(v *vault.Vault, auditor *security.Auditor, reports *ReportCache, logger *slog.Logger) *chi.Mux {
	h := NewHandler(v, auditor, reports, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Post("/passphrase", h.Passphrase)
		r.Post("/strength", h.Strength)

		r.Group(func(r chi.Router) {
			r.Use(requireOwner)

			r.Route("/credentials", func(r chi.Router) {
				r.Get("/", h.ListCredentials)
				r.Post("/", h.CreateCredential)
				r.Get("/{id}", h.GetCredential)
				r.Patch("/{id}", h.UpdateCredential)
				r.Delete("/{id}", h.DeleteCredential)
				r.Post("/{id}/favorite", h.ToggleFavorite)
			})
			r.Post("/import", h.Import)
			r.Get("/security", h.SecurityReport)
		})
	})

	return r
}
