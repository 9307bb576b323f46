// Package notifier broadcasts user-visible notices (toasts) to any number of
// listeners: the REPL prints them, the HTTP server queues them for clients.
package notifier

import (
	"sync"
	"time"
)

// Level classifies a notice.
type Level string

// Notice levels.
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a user-visible message.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier fans notices out to subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Notice]struct{}
	buffer    int
}

// New creates a new Notifier. Each subscriber channel holds up to 8 notices.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Notice]struct{}),
		buffer:    8,
	}
}

// Subscribe returns a channel that receives notices.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Notice {
	ch := make(chan Notice, n.buffer)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Notice) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends a notice to all listeners.
// Non-blocking: a listener whose channel is full misses the notice.
func (n *Notifier) Broadcast(notice Notice) {
	if notice.At.IsZero() {
		notice.At = time.Now()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- notice:
		default:
		}
	}
}

// Info broadcasts an informational notice.
func (n *Notifier) Info(msg string) {
	n.Broadcast(Notice{Level: LevelInfo, Message: msg})
}

// Error broadcasts an error notice.
func (n *Notifier) Error(msg string) {
	n.Broadcast(Notice{Level: LevelError, Message: msg})
}

// Drain returns every notice currently queued on ch without blocking.
func Drain(ch chan Notice) []Notice {
	var out []Notice
	for {
		select {
		case notice, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, notice)
		default:
			return out
		}
	}
}
