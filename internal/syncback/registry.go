package syncback

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/syncback/internal/domain"
	"github.com/shaiso/syncback/internal/repo"
)

// Handler выполняет одно действие на удалённой стороне.
//
// tx — транзакция воркера; мягко удалённые объекты в ней видимы.
// Любая ошибка (и паника) считается неудачей и ведёт к повтору.
type Handler func(ctx context.Context, accountID, recordID int64, tx repo.Tx) error

// Registry — реестр handler'ов по типу действия.
//
// Неизменяем после создания.
type Registry struct {
	handlers map[domain.ActionKind]Handler
}

// NewRegistry создаёт реестр.
//
// Каждому типу из domain.AllActionKinds нужен handler; лишние
// или неизвестные типы — тоже ошибка конфигурации.
func NewRegistry(handlers map[domain.ActionKind]Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[domain.ActionKind]Handler, len(handlers))}

	for kind, h := range handlers {
		if !kind.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownActionKind, kind)
		}
		if h == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, kind)
		}
		r.handlers[kind] = h
	}

	for _, kind := range domain.AllActionKinds() {
		if _, ok := r.handlers[kind]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, kind)
		}
	}

	return r, nil
}

// Get возвращает handler для типа действия.
func (r *Registry) Get(kind domain.ActionKind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionKind, kind)
	}
	return h, nil
}

// Kinds возвращает зарегистрированные типы в лексикографическом порядке.
func (r *Registry) Kinds() []domain.ActionKind {
	kinds := make([]domain.ActionKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
