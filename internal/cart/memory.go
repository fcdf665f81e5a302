package cart

import (
	"context"
	"sync"
)

// MemoryBackend keeps snapshots in process. It is used in tests and when
// running without Redis.
type MemoryBackend struct {
	mu          sync.Mutex
	snapshots   map[string][]byte
	subscribers map[string]map[chan []byte]struct{}
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		snapshots:   make(map[string][]byte),
		subscribers: make(map[string]map[chan []byte]struct{}),
	}
}

func (b *MemoryBackend) Load(_ context.Context, sessionID string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.snapshots[sessionID]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Save(_ context.Context, sessionID string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.snapshots[sessionID] = append([]byte(nil), data...)
	return nil
}

// Publish delivers to every subscriber with buffer space; slow subscribers
// miss the message.
func (b *MemoryBackend) Publish(_ context.Context, sessionID string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers[sessionID] {
		select {
		case ch <- append([]byte(nil), data...):
		default:
		}
	}
	return nil
}

func (b *MemoryBackend) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)

	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[chan []byte]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers[sessionID], ch)
		if len(b.subscribers[sessionID]) == 0 {
			delete(b.subscribers, sessionID)
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}
