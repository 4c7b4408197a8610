package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"pixpago/internal/generation"
	"pixpago/internal/payment"

	"github.com/google/uuid"
)

var (
	ErrEmptyPrompt         = errors.New("a prompt is required")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// PaymentGateway is the slice of the provider API the service consumes.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req payment.CreatePaymentRequest) (*payment.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
}

type ServiceConfig struct {
	PayerID           string
	Amount            int64
	Currency          string
	WebhookURL        string
	GenerationTimeout time.Duration
	GenerationWorkers int
}

// Service drives the order state machine. All transitions out of
// pending_payment go through applyPaymentStatus, which holds a per-order
// lock and re-reads the order before acting, so racing signals (webhook
// delivery vs. client poll) produce at most one transition.
type Service struct {
	store   *Store
	gateway PaymentGateway
	worker  *generation.Worker
	cfg     ServiceConfig
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store *Store, gateway PaymentGateway, gen generation.Generator, cfg ServiceConfig, logger *slog.Logger) *Service {
	s := &Service{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
	s.worker = generation.NewWorker(gen, s, cfg.GenerationWorkers, cfg.GenerationTimeout, logger)
	return s
}

// Start launches the generation workers. Jobs submitted after ctx is
// cancelled are not processed.
func (s *Service) Start(ctx context.Context) {
	s.worker.Start(ctx)
}

// Create registers a payment with the provider and inserts the order in
// pending_payment. No store mutation happens if the provider call fails.
func (s *Service) Create(ctx context.Context, prompt string) (*Order, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	id := uuid.NewString()
	externalID := "img_" + id

	p, err := s.gateway.CreatePayment(ctx, payment.CreatePaymentRequest{
		UserID:     s.cfg.PayerID,
		Amount:     s.cfg.Amount,
		Currency:   s.cfg.Currency,
		ExternalID: externalID,
		WebhookURL: s.cfg.WebhookURL,
		Motive:     "Image generation: " + truncate(prompt, 100),
	})
	if err != nil {
		s.logger.Error("create payment failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	o := Order{
		ID:         id,
		ExternalID: externalID,
		Prompt:     prompt,
		PaymentID:  p.ID,
		Status:     StatusPendingPayment,
		CVU:        p.CVU,
		Alias:      p.Alias,
		PaymentURL: p.PaymentURL,
		ExpiresAt:  p.ExpiresAt,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.Create(o); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}

	return &o, nil
}

func (s *Service) Get(id string) (*Order, error) {
	return s.store.Get(id)
}

// Subscribe registers fn for future updates of the order; see Store.Subscribe.
func (s *Service) Subscribe(id string, fn Subscriber) func() {
	return s.store.Subscribe(id, fn)
}

// Verify reconciles the order against the provider's authoritative payment
// record. It is idempotent: once the order has left pending_payment, it
// reports the current state without contacting the provider. A provider
// failure is reported as ErrProviderUnavailable and never mutates state.
func (s *Service) Verify(ctx context.Context, id string) (StatusView, error) {
	o, err := s.store.Get(id)
	if err != nil {
		return StatusView{}, err
	}

	if o.Status != StatusPendingPayment {
		return o.View(), nil
	}

	p, err := s.gateway.GetPayment(ctx, o.PaymentID)
	if err != nil {
		s.logger.Error("verify payment failed", "order_id", id, "err", err)
		return StatusView{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return s.applyPaymentStatus(id, p.Status)
}

// ProcessPaymentUpdate handles a provider webhook delivery. Unknown
// external ids return ErrNotFound; the receiver logs and ignores them,
// since the provider redelivers obsolete references.
func (s *Service) ProcessPaymentUpdate(externalID string, status payment.Status) error {
	o, err := s.store.GetByExternalID(externalID)
	if err != nil {
		return err
	}

	_, err = s.applyPaymentStatus(o.ID, status)
	return err
}

// applyPaymentStatus decides the transition out of pending_payment for a
// provider-reported status. The per-order lock plus the re-read closes the
// window between a caller's earlier status check and the provider
// round-trip it waited on: whichever signal arrives second sees the fresh
// state and becomes a no-op.
func (s *Service) applyPaymentStatus(id string, status payment.Status) (StatusView, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	o, err := s.store.Get(id)
	if err != nil {
		return StatusView{}, err
	}
	if o.Status != StatusPendingPayment {
		return o.View(), nil
	}

	switch {
	case status.Confirms():
		updated, err := s.store.Update(id, statusPatch(StatusPaymentConfirmed))
		if err != nil {
			return StatusView{}, err
		}
		s.worker.Submit(id, o.Prompt)
		return updated.View(), nil

	case status == payment.StatusExpired:
		updated, err := s.store.Update(id, statusPatch(StatusExpired))
		if err != nil {
			return StatusView{}, err
		}
		return updated.View(), nil

	case status == payment.StatusUnderpaid:
		s.logger.Warn("underpaid order", "order_id", id)
		return o.View(), nil

	default:
		// PENDING: nothing to do yet.
		return o.View(), nil
	}
}

// GenerationStarted, GenerationCompleted and GenerationFailed re-enter the
// state machine from the worker. They are reachable at most once per order:
// payment_confirmed is a one-shot transition and failed jobs are never
// retried.

func (s *Service) GenerationStarted(orderID string) {
	s.transition(orderID, StatusGeneratingImage, nil)
}

func (s *Service) GenerationCompleted(orderID, imageURL string) {
	s.transition(orderID, StatusCompleted, &imageURL)
}

func (s *Service) GenerationFailed(orderID string) {
	s.transition(orderID, StatusFailed, nil)
}

func (s *Service) transition(id string, status Status, imageURL *string) {
	if _, err := s.store.Update(id, Patch{Status: &status, ImageURL: imageURL}); err != nil {
		s.logger.Error("order transition failed", "order_id", id, "status", status, "err", err)
	}
}

func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

func statusPatch(status Status) Patch {
	return Patch{Status: &status}
}

// truncate cuts s to at most n runes, never splitting a multi-byte
// character.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
