package bufferpool

import "sync"

// Synchronized wraps a Pool with a mutex so it can be shared across
// worker goroutines, mirroring the sync.RWMutex-guarded map idiom used
// for the backend's session manifest.
type Synchronized struct {
	mu   sync.Mutex
	pool *Pool
}

// NewSynchronized wraps a pool retaining at most maxPooled buffers.
func NewSynchronized(maxPooled int) *Synchronized {
	return &Synchronized{pool: New(maxPooled)}
}

func (s *Synchronized) Lease(minCapacity int) *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pool.Lease(minCapacity)
}

func (s *Synchronized) Return(b *Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pool.Return(b)
}

func (s *Synchronized) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pool.Size()
}

func (s *Synchronized) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pool.Clear()
}
