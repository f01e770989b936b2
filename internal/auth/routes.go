package auth

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the authentication endpoint on the router.
// A single path with an action query parameter matches the contract
// the review frontend already speaks.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Post("/auth", handler.Handle)
	r.Get("/auth", handler.Handle)
}
