package syncback

import (
	"slices"
	"sync"
)

// ExclusionSet — ID записей лога, захваченных воркерами.
//
// Потокобезопасен: диспетчер добавляет, воркеры удаляют.
type ExclusionSet struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

// NewExclusionSet создаёт пустое множество.
func NewExclusionSet() *ExclusionSet {
	return &ExclusionSet{ids: make(map[int64]struct{})}
}

// Add захватывает id. Возвращает false, если id уже захвачен.
func (s *ExclusionSet) Add(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove освобождает id. Возвращает false, если id не был захвачен.
func (s *ExclusionSet) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	return true
}

// Contains проверяет, захвачен ли id.
func (s *ExclusionSet) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len возвращает количество захваченных id.
func (s *ExclusionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Snapshot возвращает копию множества по возрастанию.
func (s *ExclusionSet) Snapshot() []int64 {
	s.mu.Lock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()

	slices.Sort(out)
	return out
}
