package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the account endpoints, the chat endpoint, the live
// socket and the metrics scrape onto one mux.
func NewRouter(h *Handler, live http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/register", h.Register)
	r.Post("/auth", h.Authenticate)
	r.Post("/logout", h.Logout)
	r.Post("/chats", h.CreateChat)

	r.Handle("/chatws", live)

	return r
}
