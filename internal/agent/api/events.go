package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/auto-dns/docker-image-watch/internal/agent"
	"github.com/google/uuid"
)

const subscriberBuffer = 64

type message struct {
	name string
	data []byte
}

// broker fans container events out to the open event streams.
type broker struct {
	mu      sync.RWMutex
	clients map[string]chan message
	closed  bool
}

func newBroker() *broker {
	return &broker{clients: make(map[string]chan message)}
}

func (b *broker) add() (string, <-chan message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", nil, false
	}
	id := uuid.NewString()
	ch := make(chan message, subscriberBuffer)
	b.clients[id] = ch
	return id, ch, true
}

func (b *broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.clients[id]; ok {
		delete(b.clients, id)
		close(ch)
	}
}

func (b *broker) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// publish never blocks; a subscriber with a full buffer misses the event.
func (b *broker) publish(name string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	dropped := 0
	for _, ch := range b.clients {
		select {
		case ch <- message{name: name, data: data}:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

func writeEvent(w io.Writer, name string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, ch, ok := s.broker.add()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer s.broker.remove(id)
	logger := s.logger.With().Str("subscriber", id).Logger()
	logger.Debug().Msg("Event subscriber connected")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ack, _ := json.Marshal(agent.Ack{Version: s.opts.Version})
	if err := writeEvent(w, agent.EventAck, ack); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("Event subscriber disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, msg.name, msg.data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
