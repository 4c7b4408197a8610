package generation

import (
	"context"
	"log/slog"
	"time"
)

// Generator is the provider capability the worker consumes: one blocking
// call that either yields an artifact URL or fails.
type Generator interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Recorder re-enters the order state machine with the outcome of a job.
// Implemented by the order service.
type Recorder interface {
	GenerationStarted(orderID string)
	GenerationCompleted(orderID, imageURL string)
	GenerationFailed(orderID string)
}

type Job struct {
	OrderID string
	Prompt  string
}

// Worker executes generation jobs detached from the request that submitted
// them: the provider call frequently outlives the HTTP exchange that
// confirmed the payment. Outcomes land back in the state machine through
// the Recorder; they are never raised to the submitter.
type Worker struct {
	gen     Generator
	rec     Recorder
	timeout time.Duration
	workers int
	logger  *slog.Logger
	jobs    chan Job
}

func NewWorker(gen Generator, rec Recorder, workers int, timeout time.Duration, logger *slog.Logger) *Worker {
	if workers < 1 {
		workers = 1
	}
	return &Worker{
		gen:     gen,
		rec:     rec,
		timeout: timeout,
		workers: workers,
		logger:  logger,
		jobs:    make(chan Job, 64),
	}
}

func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		go w.loop(ctx)
	}
}

// Submit enqueues a job. A full queue counts as a generation failure:
// the job never started, so the order lands in failed like any other
// provider-side failure.
func (w *Worker) Submit(orderID, prompt string) {
	select {
	case w.jobs <- Job{OrderID: orderID, Prompt: prompt}:
	default:
		w.logger.Error("generation queue full, dropping job", "order_id", orderID)
		w.rec.GenerationFailed(orderID)
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	w.rec.GenerationStarted(job.OrderID)

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	imageURL, err := w.gen.Run(runCtx, job.Prompt)
	if err != nil {
		w.logger.Error("image generation failed", "order_id", job.OrderID, "err", err)
		w.rec.GenerationFailed(job.OrderID)
		return
	}

	w.rec.GenerationCompleted(job.OrderID, imageURL)
}
