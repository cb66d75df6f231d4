package domain

import "time"

// Namespace — пространство данных одного аккаунта.
type Namespace struct {
	ID        int64 `json:"id"`
	AccountID int64 `json:"account_id"`
}

// Message — локальная копия сообщения или черновика.
//
// Удаление мягкое: DeletedAt выставляется, строка остаётся.
// Syncback-действиям вроде delete_draft нужен доступ к уже
// удалённым объектам, чтобы удалить их на удалённой стороне.
type Message struct {
	ID          int64      `json:"id"`
	NamespaceID int64      `json:"namespace_id"`
	Folder      string     `json:"folder"`
	RemoteUID   int64      `json:"remote_uid"`
	IsDraft     bool       `json:"is_draft"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted возвращает true для мягко удалённых сообщений.
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}
