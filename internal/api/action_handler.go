package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/mq"
	"github.com/shaiso/syncback/internal/repo"
	"github.com/shaiso/syncback/internal/telemetry"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// ListActions возвращает записи лога.
// GET /api/v1/actions?pending=true&after_id=...&limit=...
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.ActionFilter{PendingOnly: q.Get("pending") == "true"}

	afterID, err := parseInt64(q.Get("after_id"), 0)
	if err != nil || afterID < 0 {
		BadRequest(w, "invalid after_id")
		return
	}
	filter.AfterID = afterID

	limit, err := parseInt64(q.Get("limit"), defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		BadRequest(w, "invalid limit")
		return
	}
	filter.Limit = int(limit)

	entries, err := h.actions.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ActionResponse, len(entries))
	for i, e := range entries {
		result[i] = ActionFromDomain(e)
	}

	List(w, result, len(result))
}

// GetAction возвращает запись по ID.
// GET /api/v1/actions/{id}
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64(r.PathValue("id"), 0)
	if err != nil || id <= 0 {
		BadRequest(w, "invalid action id")
		return
	}

	entry, err := h.actions.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "action not found") {
		return
	}

	Success(w, ActionFromDomain(*entry))
}

// LogAction добавляет запись в лог и будит диспетчеры.
// POST /api/v1/actions
func (h *Handler) LogAction(w http.ResponseWriter, r *http.Request) {
	var req LogActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	kind, err := domain.ParseActionKind(req.Action)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if req.NamespaceID <= 0 || req.RecordID <= 0 {
		BadRequest(w, "namespace_id and record_id are required")
		return
	}

	entry := &domain.ActionLogEntry{
		NamespaceID: req.NamespaceID,
		Action:      kind,
		RecordID:    req.RecordID,
	}
	if err := h.actions.Create(r.Context(), entry); HandleRepoError(w, h.logger, err, "namespace not found") {
		return
	}

	logger := telemetry.WithActionID(h.logger, entry.ID)
	logger.Info("action logged", "action", entry.Action, "namespace_id", entry.NamespaceID)

	// Событие только ускоряет диспетчер: запись подберёт следующий poll
	if h.publisher != nil {
		payload := mq.ActionLoggedPayload{
			ActionID:    entry.ID,
			NamespaceID: entry.NamespaceID,
			Action:      string(entry.Action),
		}
		if err := h.publisher.PublishActionLogged(r.Context(), payload); err != nil {
			logger.Warn("failed to publish action.logged", "error", err)
		}
	}

	Created(w, ActionFromDomain(*entry))
}
