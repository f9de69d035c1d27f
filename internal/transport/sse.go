// Package transport formats orchestrator events as server-sent events for
// the stream endpoint described in spec.md section 6. The HTTP routes
// themselves (chat submission, stream consumption, plan preview, cache
// administration) are registered by internal/server.
package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"logforensics/internal/orchestrator"

	"github.com/sirupsen/logrus"
)

// WriteEvent formats one orchestrator.Event as a single SSE frame:
// "event: <name>\ndata: <json>\n\n", per spec.md section 6. Data is
// marshaled to JSON even when it's already a string, since a bare string
// still needs to be a valid SSE data payload.
func WriteEvent(w http.ResponseWriter, event orchestrator.Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, payload)
	return err
}

// StreamEvents drains events onto w as they arrive, flushing after every
// frame so the client sees progress incrementally rather than buffered
// until the pipeline finishes. Returns when events closes or the request
// context is canceled (client disconnect) — per spec.md section 5's
// cancellation model, in-flight compute is not aborted, only the stream
// write loop stops.
func StreamEvents(w http.ResponseWriter, r *http.Request, events <-chan orchestrator.Event, logger *logrus.Logger) {
	flusher, ok := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if ok {
		flusher.Flush()
	}

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			if err := WriteEvent(w, event); err != nil {
				logger.WithError(err).Warn("transport: failed to write SSE frame")
				return
			}
			if ok {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
