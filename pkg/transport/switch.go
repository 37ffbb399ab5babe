package transport

import (
	"sync"

	"github.com/ormasoftchile/labguide/pkg/queue"
)

// Switch holds the currently attached transport. Its Locate method is a
// queue.Locator, so a queue built on it tolerates a missing transport.
type Switch struct {
	mu sync.RWMutex
	t  queue.Transport
}

// Set attaches t; nil detaches.
func (s *Switch) Set(t queue.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = t
}

// Locate implements queue.Locator.
func (s *Switch) Locate() (queue.Transport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t, s.t != nil
}
