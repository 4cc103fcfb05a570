package web_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"grove/internal/events"
)

// readSSEFrame consumes one "event:"/"data:" frame, up to the blank line
// that terminates it.
func readSSEFrame(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return event, data
		}
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
		}
	}
}

func TestEvents_Stream(t *testing.T) {
	h := startAPIServer(t, &fakeOps{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", h.base+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)

	event, data := readSSEFrame(t, reader)
	if event != "connected" || data != "ok" {
		t.Fatalf("first frame = %q/%q, want connected/ok", event, data)
	}

	h.broker.Publish(events.Event{Type: events.WorktreeCreated, Project: "/tmp/proj", Name: "feature-x"})

	event, data = readSSEFrame(t, reader)
	if event != "change" {
		t.Fatalf("second frame event = %q, want change", event)
	}

	var ev events.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("unmarshal data %q: %v", data, err)
	}
	if ev.Type != events.WorktreeCreated || ev.Project != "/tmp/proj" || ev.Name != "feature-x" {
		t.Errorf("event = %+v", ev)
	}

	// Cancel so the handler returns and shutdown is not held open.
	cancel()
}

func TestEvents_ClientDisconnect(t *testing.T) {
	h := startAPIServer(t, &fakeOps{})

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, "GET", h.base+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	reader := bufio.NewReader(resp.Body)
	readSSEFrame(t, reader) // connected

	// Disconnecting must not wedge the broker: later publishes still fan
	// out to live subscribers.
	cancel()

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)
	h.broker.Publish(events.Event{Type: events.ProjectAdded, Project: "/p"})

	select {
	case ev := <-ch:
		if ev.Type != events.ProjectAdded {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not reach live subscriber")
	}
}
