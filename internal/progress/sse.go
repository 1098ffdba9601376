package progress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// KeepaliveInterval is how long a stream may sit idle before a comment
// line is written to hold the connection open through proxies.
const KeepaliveInterval = 15 * time.Second

// Stream writes a session's events to w as server-sent events until the
// session terminates or the consumer disconnects. Returns false when the
// ResponseWriter cannot stream.
func Stream(w http.ResponseWriter, r *http.Request, session *Session) bool {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, Event{Type: EventConnected})
	flusher.Flush()

	keepalive := time.NewTicker(KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Consumer left. The pipeline keeps running; the caller
			// releases the session.
			return true

		case event, open := <-session.Events():
			if !open {
				return true
			}
			writeEvent(w, event)
			flusher.Flush()
			keepalive.Reset(KeepaliveInterval)

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
}
