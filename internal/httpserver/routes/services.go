package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/axondata/go-supervise/internal/httpserver/deps"
	"github.com/axondata/go-supervise/internal/httpserver/handlers"
)

func init() { Register(registerServices) }

func registerServices(r chi.Router, d deps.Deps) {
	r.Route("/api/services", func(r chi.Router) {
		r.Get("/", handlers.List(d))
		r.Get("/{name}/status", handlers.Status(d))
		r.Post("/{name}/{op}", handlers.Control(d))
	})
}
