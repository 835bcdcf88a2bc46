package app

import (
	"sync"

	"github.com/ayusman/handsynth/internal/gesture"
)

// Mailbox holds the most recent detection. Put overwrites; nothing queues.
type Mailbox struct {
	mu    sync.Mutex
	frame gesture.Frame
	seq   uint64
}

// Put replaces the held frame.
func (m *Mailbox) Put(f gesture.Frame) {
	m.mu.Lock()
	m.frame = f
	m.seq++
	m.mu.Unlock()
}

// Latest returns the held frame and how many frames have been put. Before
// the first Put it returns an empty frame and 0.
func (m *Mailbox) Latest() (gesture.Frame, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, m.seq
}
