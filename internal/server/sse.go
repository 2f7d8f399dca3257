package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/trackd/internal/events"
)

const (
	// streamBacklogSize bounds the events kept for Last-Event-ID replay.
	streamBacklogSize = 1000

	streamKeepalive    = 15 * time.Second
	streamClientBuffer = 64
)

// streamEvent is one server-sent event. IDs increase by one per broadcast.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// streamFilter decides which events a subscriber sees. A notification topic
// reaches only its recipient, whatever the topic patterns say.
type streamFilter struct {
	patterns []string // empty matches every topic
	user     string
}

func (f streamFilter) allows(topic string) bool {
	if uid, ok := events.NotificationRecipient(topic); ok && uid != f.user {
		return false
	}
	if len(f.patterns) == 0 {
		return true
	}
	return slices.ContainsFunc(f.patterns, func(p string) bool {
		return matchTopicPattern(p, topic)
	})
}

// parseStreamFilter reads ?topics=a,b and the acting user from r.
func parseStreamFilter(r *http.Request) streamFilter {
	f := streamFilter{user: r.Header.Get(ActorHeader)}
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.patterns = append(f.patterns, t)
		}
	}
	return f
}

// backlog is a bounded, ID-ordered log of recent events. IDs are assigned
// under the same lock that appends, so the log is always sorted.
type backlog struct {
	mu     sync.Mutex
	limit  int
	lastID uint64
	events []streamEvent
}

func (b *backlog) append(topic string, data []byte) streamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	e := streamEvent{ID: b.lastID, Topic: topic, Data: data}
	if len(b.events) >= b.limit {
		b.events = b.events[1:]
	}
	b.events = append(b.events, e)
	return e
}

// since returns the retained events with ID > lastID, oldest first.
func (b *backlog) since(lastID uint64) []streamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, _ := slices.BinarySearchFunc(b.events, lastID+1, func(e streamEvent, id uint64) int {
		switch {
		case e.ID < id:
			return -1
		case e.ID > id:
			return 1
		}
		return 0
	})
	return slices.Clone(b.events[i:])
}

type subscriber struct {
	filter  streamFilter
	ch      chan streamEvent
	dropped atomic.Int64
}

// sseHub fans ticket, comment and notification events out to connected
// clients of GET /v1/events/stream.
type sseHub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
	log  *backlog
}

func newSSEHub() *sseHub {
	return &sseHub{
		subs: make(map[*subscriber]struct{}),
		log:  &backlog{limit: streamBacklogSize},
	}
}

// Broadcast records the event and hands it to every matching subscriber.
// A subscriber whose buffer is full misses the event. It satisfies
// notify.Broadcaster.
func (h *sseHub) Broadcast(topic string, payload []byte) {
	e := h.log.append(topic, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.filter.allows(topic) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			s.dropped.Add(1)
		}
	}
}

func (h *sseHub) subscribe(f streamFilter) *subscriber {
	s := &subscriber{filter: f, ch: make(chan streamEvent, streamClientBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *sseHub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// matchTopicPattern matches a dot-separated topic NATS-style: "*" is one
// segment, a trailing ">" is one or more segments.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// handleEventStream serves GET /v1/events/stream. Clients narrow the stream
// with ?topics= and receive their own notifications by sending the actor
// header and subscribing to trackd.notification.<id>. A Last-Event-ID header
// replays whatever of the backlog the client missed.
func (s *TrackerServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := parseStreamFilter(r)
	sub := s.sseHub.subscribe(filter)
	defer func() {
		s.sseHub.unsubscribe(sub)
		if n := sub.dropped.Load(); n > 0 {
			slog.Debug("event stream dropped events for slow client", "user", filter.user, "dropped", n)
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Events broadcast between subscribe and replay arrive on both paths;
	// sent tracks the highest id written so none is sent twice.
	var sent uint64
	if lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		sent = lastID
		for _, e := range s.sseHub.log.since(lastID) {
			if filter.allows(e.Topic) {
				writeSSEEvent(w, e)
			}
			sent = e.ID
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-sub.ch:
			if e.ID <= sent {
				continue
			}
			sent = e.ID
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, e streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", e.ID, e.Topic, e.Data)
}

// broadcastEvent hands a published event to SSE subscribers.
func (s *TrackerServer) broadcastEvent(topic string, event any) {
	if s.sseHub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event for SSE broadcast", "topic", topic, "error", err)
		return
	}
	s.sseHub.Broadcast(topic, payload)
}
