package api

import (
	"time"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/syncback"
)

// LogActionRequest — запрос на запись действия в лог.
type LogActionRequest struct {
	NamespaceID int64  `json:"namespace_id"`
	Action      string `json:"action"`
	RecordID    int64  `json:"record_id"`
}

// ActionResponse — запись action_log.
type ActionResponse struct {
	ID          int64      `json:"id"`
	NamespaceID int64      `json:"namespace_id"`
	Action      string     `json:"action"`
	RecordID    int64      `json:"record_id"`
	Executed    bool       `json:"executed"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ActionFromDomain конвертирует domain.ActionLogEntry в ActionResponse.
func ActionFromDomain(e domain.ActionLogEntry) ActionResponse {
	return ActionResponse{
		ID:          e.ID,
		NamespaceID: e.NamespaceID,
		Action:      string(e.Action),
		RecordID:    e.RecordID,
		Executed:    e.Executed,
		ExecutedAt:  e.ExecutedAt,
		CreatedAt:   e.CreatedAt,
	}
}

// StatusResponse — состояние диспетчера и backlog.
type StatusResponse struct {
	InstanceID  string  `json:"instance_id"`
	State       string  `json:"state"`
	LockHeld    bool    `json:"lock_held"`
	InFlight    []int64 `json:"in_flight"`
	PoolSize    int     `json:"pool_size"`
	PoolRunning int     `json:"pool_running"`
	Pending     int64   `json:"pending"`
}

// StatusFromDispatcher собирает StatusResponse.
func StatusFromDispatcher(s syncback.Status, pending int64) StatusResponse {
	inFlight := s.InFlight
	if inFlight == nil {
		inFlight = []int64{}
	}
	return StatusResponse{
		InstanceID:  s.InstanceID,
		State:       string(s.State),
		LockHeld:    s.LockHeld,
		InFlight:    inFlight,
		PoolSize:    s.PoolSize,
		PoolRunning: s.PoolRunning,
		Pending:     pending,
	}
}
