package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"pixpago/internal/order"

	"github.com/go-chi/chi/v5"
)

// orderEvents streams order progress as server-sent events. The current
// state is emitted immediately; the stream ends after the terminal event,
// or when the client disconnects.
func (s *Server) orderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	stream, err := s.orders.OpenStream(orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	defer stream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case view := <-stream.Events():
			if err := writeEvent(w, flusher, view); err != nil {
				return
			}
			if view.Status.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, view order.StatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
