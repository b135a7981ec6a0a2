package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hperssn/dojo/internal/pubsub"
	"github.com/hperssn/dojo/internal/runner"
)

// StreamTimerEvents sends the current snapshot, then every runner event, as
// server-sent events until the client goes away or the runner closes.
func StreamTimerEvents(manager *runner.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			respondError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		rn, err := manager.Runner(r.Context(), GetUserID(r))
		if err != nil {
			fail(w, r, err)
			return
		}

		events := rn.Subscribe(r.Context())
		snap := rn.Snapshot()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		writeEvent(w, pubsub.Message[runner.Event]{
			Payload: runner.Event{Type: runner.EventState, State: snap.Timer, Metronome: snap.Metronome},
		})
		flusher.Flush()

		for {
			select {
			case msg, ok := <-events:
				if !ok {
					return
				}
				writeEvent(w, msg)
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}

// writeEvent emits one event. Runner messages carry their sequence number as
// the event id; the initial snapshot has none.
func writeEvent(w http.ResponseWriter, msg pubsub.Message[runner.Event]) {
	data, _ := json.Marshal(msg.Payload)
	if msg.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", msg.Seq)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Payload.Type, data)
}
