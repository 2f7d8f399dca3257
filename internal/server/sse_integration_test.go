package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// frame is one parsed server-sent event.
type frame struct {
	ID, Event, Data string
}

// liveServer is a TrackerServer behind a real listener, for tests that need
// a streaming HTTP client.
type liveServer struct {
	t   *testing.T
	url string
}

func startLiveServer(t *testing.T) *liveServer {
	t.Helper()
	_, _, handler := newTestServer()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &liveServer{t: t, url: ts.URL}
}

// do sends a request as alice and fails the test unless it returns want.
// The decoded JSON body is returned.
func (ls *liveServer) do(method, path string, body any, want int) map[string]any {
	ls.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ls.url+path, rd)
	if err != nil {
		ls.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, alice)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ls.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		ls.t.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, want)
	}
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out
}

func (ls *liveServer) createTicket(fields map[string]any) string {
	ls.t.Helper()
	id, _ := ls.do("POST", ticketsPath, fields, http.StatusCreated)["id"].(string)
	if id == "" {
		ls.t.Fatal("created ticket has no id")
	}
	return id
}

// stream opens the event stream as actor and returns parsed frames. The
// stream is closed when the test ends.
func (ls *liveServer) stream(actor, topics string) <-chan frame {
	ls.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	u := ls.url + "/v1/events/stream"
	if topics != "" {
		u += "?topics=" + url.QueryEscape(topics)
	}
	req, _ := http.NewRequestWithContext(ctx, "GET", u, nil)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		ls.t.Fatalf("open stream: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		resp.Body.Close()
		cancel()
		ls.t.Fatalf("Content-Type = %q", ct)
	}
	ls.t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})

	ch := make(chan frame, 32)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(resp.Body)
		var f frame
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				if f.Event != "" {
					ch <- f
				}
				f = frame{}
				continue
			}
			key, val, _ := strings.Cut(line, ":")
			switch key {
			case "id":
				f.ID = val
			case "event":
				f.Event = val
			case "data":
				f.Data = val
			}
		}
	}()
	// Let the handler register its subscription.
	time.Sleep(50 * time.Millisecond)
	return ch
}

// next returns the first frame for topic, skipping others.
func next(t *testing.T, ch <-chan frame, topic string) frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed before %q", topic)
			}
			if f.Event == topic {
				return f
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", topic)
		}
	}
}

func decodeFrame[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(f.Data), &v); err != nil {
		t.Fatalf("decode %s payload: %v", f.Event, err)
	}
	return v
}

func TestSSEIntegration_TicketLifecycle(t *testing.T) {
	ls := startLiveServer(t)
	stream := ls.stream("", "trackd.ticket.*")

	id := ls.createTicket(map[string]any{"title": "Integration"})
	created := decodeFrame[struct {
		Ticket struct {
			ID        string `json:"id"`
			DisplayID string `json:"display_id"`
		} `json:"ticket"`
	}](t, next(t, stream, "trackd.ticket.created"))
	if created.Ticket.ID != id || created.Ticket.DisplayID != "WEB-1" {
		t.Fatalf("created payload = %+v", created.Ticket)
	}

	ls.do("PATCH", ticketsPath+"/"+id, map[string]any{"title": "Renamed"}, http.StatusOK)
	updated := decodeFrame[struct {
		Changes map[string]any `json:"changes"`
	}](t, next(t, stream, "trackd.ticket.updated"))
	if updated.Changes["title"] != "Renamed" {
		t.Fatalf("changes = %v", updated.Changes)
	}

	ls.do("DELETE", ticketsPath+"/"+id, nil, http.StatusNoContent)
	if f := next(t, stream, "trackd.ticket.deleted"); f.ID == "" {
		t.Fatal("event frame has no id")
	}
}

func TestSSEIntegration_LinkEventsCoverBothSides(t *testing.T) {
	ls := startLiveServer(t)
	a := ls.createTicket(map[string]any{"title": "A"})
	b := ls.createTicket(map[string]any{"title": "B"})
	stream := ls.stream("", "trackd.link.*")

	ls.do("PUT", ticketsPath+"/"+a+"/links", map[string]any{"links": map[string]any{b: "6"}}, http.StatusOK)
	added := decodeFrame[struct {
		TicketID        string `json:"ticket_id"`
		RelatedTicketID string `json:"related_ticket_id"`
		Relation        int    `json:"relation"`
	}](t, next(t, stream, "trackd.link.added"))
	if added.TicketID != a || added.RelatedTicketID != b || added.Relation != 6 {
		t.Fatalf("link.added payload = %+v", added)
	}

	ls.do("PUT", ticketsPath+"/"+a+"/links", map[string]any{"links": map[string]any{}}, http.StatusOK)
	next(t, stream, "trackd.link.removed")
}

func TestSSEIntegration_NotificationsReachOnlyRecipient(t *testing.T) {
	ls := startLiveServer(t)
	bobTopic := "trackd.notification." + bob
	bobStream := ls.stream(bob, bobTopic)
	// alice asks for bob's subject but must not see it.
	aliceStream := ls.stream(alice, bobTopic)

	ls.createTicket(map[string]any{"title": "Review", "description": "@bob please look"})

	n := decodeFrame[struct {
		Notification struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"notification"`
	}](t, next(t, bobStream, bobTopic))
	if n.Notification.Kind != "mention" || n.Notification.Message != "you were mentioned in WEB-1" {
		t.Fatalf("notification = %+v", n.Notification)
	}

	select {
	case f := <-aliceStream:
		t.Fatalf("alice received %q", f.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSEIntegration_CommentAdded(t *testing.T) {
	ls := startLiveServer(t)
	id := ls.createTicket(map[string]any{"title": "Discuss"})
	stream := ls.stream("", "trackd.comment.*")

	ls.do("POST", ticketsPath+"/"+id+"/comments", map[string]any{"content": "looks good"}, http.StatusCreated)
	c := decodeFrame[struct {
		Comment struct {
			TicketID string `json:"ticket_id"`
			Content  string `json:"content"`
		} `json:"comment"`
	}](t, next(t, stream, "trackd.comment.added"))
	if c.Comment.TicketID != id || c.Comment.Content != "looks good" {
		t.Fatalf("comment payload = %+v", c.Comment)
	}
}
