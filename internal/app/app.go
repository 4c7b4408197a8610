package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pixpago/internal/config"
	"pixpago/internal/generation"
	"pixpago/internal/httpapi"
	"pixpago/internal/order"
	"pixpago/internal/payment"
	"pixpago/internal/websocket"
)

type App struct {
	cfg      config.Config
	logger   *slog.Logger
	orderSvc *order.Service
	httpSrv  *http.Server
}

func New(cfg config.Config, logger *slog.Logger) *App {
	store := order.NewStore()

	payments := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentClientID, cfg.PaymentClientSecret, cfg.PaymentTimeout)
	generator := generation.NewClient(cfg.GenerationAPIURL, cfg.GenerationToken, cfg.GenerationModel)

	orderSvc := order.NewService(store, payments, generator, order.ServiceConfig{
		PayerID:           cfg.PayerID,
		Amount:            cfg.PriceAmount,
		Currency:          cfg.PriceCurrency,
		WebhookURL:        cfg.BaseURL + "/api/webhooks/payments",
		GenerationTimeout: cfg.GenerationTimeout,
		GenerationWorkers: cfg.GenerationWorkers,
	}, logger)

	api := httpapi.NewServer(orderSvc, cfg.PaymentWebhookSecret, logger)
	wsHandler := websocket.NewHandler(orderSvc, logger)
	api.HandleGet("/api/orders/{orderID}/ws", wsHandler.ServeWS)

	return &App{
		cfg:      cfg,
		logger:   logger,
		orderSvc: orderSvc,
		httpSrv: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: api,
		},
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.orderSvc.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
}

func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := New(cfg, logger)
	defer app.Close(context.Background())

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
