package sales

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the document lifecycle endpoints. Authentication is
// applied by the caller; capability checks happen per operation in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/import", h.Import)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Edit)
			r.Delete("/", h.Delete)
			r.Post("/send", h.Send)
			r.Post("/accept", h.Accept)
			r.Post("/reject", h.Reject)
			r.Post("/fulfill", h.Fulfill)
			r.Post("/reopen", h.Reopen)
			r.Post("/convert", h.Convert)
		})
	})
}
