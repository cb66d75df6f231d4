package syncback

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize — размер пула воркеров по умолчанию.
const DefaultPoolSize = 22

// Pool — пул фиксированной ёмкости.
//
// Submit блокирует вызывающего, пока заняты все слоты.
// Порядок завершения задач не гарантируется.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	running atomic.Int64
	wg      sync.WaitGroup
}

// NewPool создаёт пул на size слотов (size <= 0 → DefaultPoolSize).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Submit ждёт свободный слот и запускает fn в отдельной горутине.
//
// Возвращает ctx.Err(), если контекст отменён раньше, чем освободился слот;
// fn в этом случае не запускается.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.running.Add(1)
	p.wg.Add(1)
	go func() {
		defer func() {
			p.running.Add(-1)
			p.sem.Release(1)
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Running возвращает количество выполняющихся задач.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Size возвращает ёмкость пула.
func (p *Pool) Size() int {
	return p.size
}

// Wait ждёт завершения всех запущенных задач.
func (p *Pool) Wait() {
	p.wg.Wait()
}
