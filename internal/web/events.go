// pattern: Imperative Shell

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents is the SSE endpoint. It sends a "connected" event on open,
// then one "change" event per broker event, with the typed payload as JSON
// data. Delivery is best-effort: a slow consumer misses events rather than
// blocking publishers, and consumers are expected to re-fetch whatever state
// an event names.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(ch)

	// Send initial connected event.
	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
