package domain

import (
	"fmt"
	"time"
)

// ActionKind — тип syncback-действия.
//
// Набор закрытый: каждому значению соответствует ровно один handler
// в syncback.Registry. Неизвестное значение в action_log означает
// рассинхрон между деплоем и содержимым лога.
type ActionKind string

const (
	ActionArchive      ActionKind = "archive"
	ActionUnarchive    ActionKind = "unarchive"
	ActionMarkRead     ActionKind = "mark_read"
	ActionMarkUnread   ActionKind = "mark_unread"
	ActionStar         ActionKind = "star"
	ActionUnstar       ActionKind = "unstar"
	ActionMarkSpam     ActionKind = "mark_spam"
	ActionUnmarkSpam   ActionKind = "unmark_spam"
	ActionMarkTrash    ActionKind = "mark_trash"
	ActionUnmarkTrash  ActionKind = "unmark_trash"
	ActionSendDraft    ActionKind = "send_draft"
	ActionSaveDraft    ActionKind = "save_draft"
	ActionDeleteDraft  ActionKind = "delete_draft"
	ActionSendDirectly ActionKind = "send_directly"
)

var allActionKinds = []ActionKind{
	ActionArchive,
	ActionUnarchive,
	ActionMarkRead,
	ActionMarkUnread,
	ActionStar,
	ActionUnstar,
	ActionMarkSpam,
	ActionUnmarkSpam,
	ActionMarkTrash,
	ActionUnmarkTrash,
	ActionSendDraft,
	ActionSaveDraft,
	ActionDeleteDraft,
	ActionSendDirectly,
}

// AllActionKinds возвращает все известные типы действий.
func AllActionKinds() []ActionKind {
	out := make([]ActionKind, len(allActionKinds))
	copy(out, allActionKinds)
	return out
}

// ParseActionKind проверяет, что s — известный тип действия.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

// IsValid возвращает true для известных типов.
func (k ActionKind) IsValid() bool {
	for _, known := range allActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsDraftAction возвращает true, если действие применимо только к черновикам.
func (k ActionKind) IsDraftAction() bool {
	switch k {
	case ActionSendDraft, ActionSaveDraft, ActionDeleteDraft:
		return true
	default:
		return false
	}
}

// ActionLogEntry — запись в action_log.
//
// Лог append-only: записи добавляются API, диспетчер читает
// невыполненные записи по возрастанию ID и выставляет Executed
// после успешного выполнения. Executed=true — терминальное состояние.
type ActionLogEntry struct {
	// ID — монотонно возрастающий идентификатор записи.
	ID int64 `json:"id"`

	// NamespaceID — namespace, через который определяется аккаунт.
	NamespaceID int64 `json:"namespace_id"`

	// Action — тип действия.
	Action ActionKind `json:"action"`

	// RecordID — ID объекта (сообщения, черновика), к которому применяется действие.
	RecordID int64 `json:"record_id"`

	// Executed — действие выполнено на удалённой стороне.
	Executed bool `json:"executed"`

	// ExecutedAt — время выполнения.
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	// CreatedAt — время записи в лог.
	CreatedAt time.Time `json:"created_at"`
}

// MarkExecuted переводит запись в терминальное состояние.
func (e *ActionLogEntry) MarkExecuted() {
	now := time.Now()
	e.Executed = true
	e.ExecutedAt = &now
}
