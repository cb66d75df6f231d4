package api

import (
	"net/http"
)

// GetStatus возвращает состояние диспетчера.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		Unavailable(w, "dispatcher is not running")
		return
	}

	pending, err := h.actions.CountPending(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, StatusFromDispatcher(h.dispatcher.Status(), pending))
}
