package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"pixpago/internal/order"
	"pixpago/internal/payment"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	orders        *order.Service
	webhookSecret string
	logger        *slog.Logger
	router        chi.Router
}

func NewServer(orders *order.Service, webhookSecret string, logger *slog.Logger) *Server {
	s := &Server{
		orders:        orders,
		webhookSecret: webhookSecret,
		logger:        logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", s.createOrder)
		r.Post("/orders/{orderID}/verify", s.verifyOrder)
		r.Get("/orders/{orderID}/events", s.orderEvents)
		r.Post("/webhooks/payments", s.paymentWebhook)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HandleGet mounts an extra GET route; the app uses it to attach the
// websocket transport without httpapi importing it.
func (s *Server) HandleGet(pattern string, h http.HandlerFunc) {
	s.router.Get(pattern, h)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.orders.Create(r.Context(), req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, "a prompt is required")
		case errors.Is(err, order.ErrProviderUnavailable):
			writeError(w, http.StatusInternalServerError, "failed to create payment order")
		default:
			s.logger.Error("create order", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"orderId":    o.ID,
		"cvu":        o.CVU,
		"alias":      o.Alias,
		"paymentUrl": o.PaymentURL,
		"expiresAt":  o.ExpiresAt,
	})
}

func (s *Server) verifyOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	view, err := s.orders.Verify(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, order.ErrProviderUnavailable):
			writeError(w, http.StatusBadGateway, "failed to verify payment status")
		default:
			s.logger.Error("verify order", "order_id", orderID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// paymentWebhook acknowledges every authenticated delivery with 200, even
// for unknown external ids: the provider redelivers obsolete references
// and treating them as errors would only cause retry storms.
func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !payment.VerifySignature(s.webhookSecret, body, r.Header.Get(payment.SignatureHeader)) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var evt payment.WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.orders.ProcessPaymentUpdate(evt.ExternalID, evt.Status); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			s.logger.Warn("webhook for unknown order", "external_id", evt.ExternalID)
		} else {
			s.logger.Error("process payment update", "external_id", evt.ExternalID, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
