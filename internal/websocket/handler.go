package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pixpago/internal/order"

	"github.com/go-chi/chi/v5"
	gw "github.com/gorilla/websocket"
)

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves order progress over a websocket: the same event channel
// the SSE endpoint exposes, for clients behind proxies that buffer SSE.
type Handler struct {
	orders *order.Service
	logger *slog.Logger
}

func NewHandler(orders *order.Service, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, logger: logger}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	stream, err := h.orders.OpenStream(orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		stream.Close()
		return
	}

	done := make(chan struct{})
	go readPump(conn, done)

	defer func() {
		stream.Close()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case view := <-stream.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(view); err != nil {
				return
			}
			if view.Status.Terminal() {
				msg := gw.FormatCloseMessage(gw.CloseNormalClosure, "")
				_ = conn.WriteControl(gw.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}
		}
	}
}

// readPump drains the connection purely to detect client disconnect;
// inbound frames carry no meaning on this endpoint.
func readPump(conn *gw.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
