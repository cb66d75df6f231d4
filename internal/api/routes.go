package api

import (
	"net/http"
)

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.GetStatus)))

	mux.Handle("GET /api/v1/actions", chain(http.HandlerFunc(h.ListActions)))
	mux.Handle("POST /api/v1/actions", chain(http.HandlerFunc(h.LogAction)))
	mux.Handle("GET /api/v1/actions/{id}", chain(http.HandlerFunc(h.GetAction)))
}
