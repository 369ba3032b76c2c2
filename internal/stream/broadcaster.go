// Package stream publishes the running session to network listeners: a
// paced Source stands in for a sound card, a Broadcaster fans its frames
// out, and HTTP (MP3) and WebRTC (Opus) handlers deliver them.
package stream

import (
	"context"
	"sync"

	"github.com/satindergrewal/binaural/internal/metrics"
)

// listenerBuffer is about 3 seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans out PCM frames from one source to any number of
// listeners. Slow listeners lose frames instead of stalling the others.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives PCM frames until it is unsubscribed.
type Listener struct {
	C    chan []int16
	done chan struct{}
	once sync.Once
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[*Listener]struct{})}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	metrics.StreamListeners.Inc()
	return l
}

// Unsubscribe removes l and closes its Done channel. Repeated calls are
// no-ops.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	l.once.Do(func() {
		b.mu.Lock()
		delete(b.listeners, l)
		b.mu.Unlock()
		close(l.done)
		metrics.StreamListeners.Dec()
	})
}

// ListenerCount returns the number of subscribed listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Run copies frames from source to every listener until ctx is done or
// source is closed.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
				}
			}
			b.mu.RUnlock()
		}
	}
}
