package chat

import (
	"github.com/go-chi/chi/v5"
)

// RegisterStreamRoutes registers the streaming endpoint. Mounted outside
// the request timeout middleware: a response stream can legitimately
// outlive any sane request deadline.
func RegisterStreamRoutes(r chi.Router, h *Handler) {
	r.Post("/chat", h.StreamChat)
}

// RegisterRoutes registers chat management routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/chats", func(r chi.Router) {
		r.Post("/", h.CreateChat)
		r.Get("/", h.ListChats)
		r.Get("/{id}", h.FetchChat)
		r.Delete("/{id}", h.DeleteChat)
		r.Delete("/{id}/messages", h.ClearChat)
		r.Post("/{id}/files", h.UploadFile)
		r.Get("/{id}/export", h.ExportChat)
	})
}
