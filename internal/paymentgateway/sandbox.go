// Package paymentgateway is a sandbox stand-in for the gateway and the
// money-transfer collaborator. It settles new transactions and disburses new
// payouts after a random delay, reporting each outcome to the engine's
// callback endpoints. It is never used against real money.
package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/events"
)

type JobKind string

const (
	JobSettleTransaction JobKind = "settle_transaction"
	JobDisbursePayout    JobKind = "disburse_payout"
)

var ErrQueueFull = errors.New("sandbox job queue full")

type Job struct {
	Kind   JobKind
	ID     string
	Amount int64
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "kind", job.Kind, "id", job.ID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Option func(*Sandbox)

// WithRandom replaces the source used for delays and outcomes. f must return
// values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(s *Sandbox) {
		s.random = f
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sandbox) {
		s.http = c
	}
}

// Sandbox runs a dispatcher and a fixed pool of workers over a bounded queue.
type Sandbox struct {
	transactionWebhookURL string
	payoutWebhookURL      string
	successRate           float64
	maxDelay              time.Duration
	logger                *slog.Logger
	http                  *http.Client
	random                func() float64

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
	randMu     sync.Mutex
}

func NewSandbox(cfg internal.SandboxConfig, logger *slog.Logger, opts ...Option) *Sandbox {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := cfg.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	s := &Sandbox{
		transactionWebhookURL: cfg.TransactionWebhookURL,
		payoutWebhookURL:      cfg.PayoutWebhookURL,
		successRate:           cfg.SuccessRate,
		maxDelay:              cfg.MaxDelay,
		logger:                logger.With("component", "sandbox_gateway"),
		http:                  &http.Client{Timeout: 10 * time.Second},
		random:                rand.Float64,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, jobQueueSize),
		workerPool: make(chan chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startWorkerPool()

	return s
}

func (s *Sandbox) startWorkerPool() {
	s.once.Do(func() {
		for i := 0; i < s.maxWorkers; i++ {
			worker := NewWorker(i, s.workerPool, s.logger)
			worker.Start(s.ctx, &s.wg, s.process)
		}

		s.wg.Add(1)
		go s.dispatch()

		s.logger.Info("sandbox worker pool started",
			"max_workers", s.maxWorkers,
			"queue_size", cap(s.jobQueue))
	})
}

func (s *Sandbox) dispatch() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.jobQueue:
			select {
			case jobChannel := <-s.workerPool:
				select {
				case jobChannel <- job:
				case <-s.ctx.Done():
					s.logger.Info("dispatcher shutting down")
					return
				}
			case <-s.ctx.Done():
				s.logger.Info("dispatcher shutting down")
				return
			}
		case <-s.ctx.Done():
			s.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Subscribe enqueues a job for every created transaction and payout.
func (s *Sandbox) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeTransactionCreated, func(_ context.Context, e events.Event) error {
		created, ok := e.(*events.TransactionCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", e)
		}
		return s.Enqueue(Job{Kind: JobSettleTransaction, ID: created.TransactionID, Amount: created.GrossAmount})
	})
	bus.Subscribe(events.EventTypePayoutCreated, func(_ context.Context, e events.Event) error {
		created, ok := e.(*events.PayoutCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", e)
		}
		return s.Enqueue(Job{Kind: JobDisbursePayout, ID: created.PayoutID, Amount: created.Amount})
	})
}

// Enqueue never blocks; a full queue rejects the job.
func (s *Sandbox) Enqueue(job Job) error {
	select {
	case s.jobQueue <- job:
		s.logger.Info("sandbox job queued",
			"kind", job.Kind,
			"id", job.ID,
			"queue_length", len(s.jobQueue))
		return nil
	default:
		s.logger.Warn("sandbox job queue full, rejecting job",
			"kind", job.Kind,
			"id", job.ID,
			"queue_capacity", cap(s.jobQueue))
		return ErrQueueFull
	}
}

func (s *Sandbox) Shutdown() {
	s.logger.Info("shutting down sandbox gateway")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("sandbox gateway shutdown complete")
}

func (s *Sandbox) process(job Job) {
	if !s.wait() {
		s.logger.Info("sandbox job cancelled", "kind", job.Kind, "id", job.ID)
		return
	}
	succeeded := s.roll() < s.successRate

	switch job.Kind {
	case JobSettleTransaction:
		status := "completed"
		if !succeeded {
			status = "failed"
		}
		s.post(s.transactionWebhookURL, job, map[string]interface{}{
			"transaction_id": job.ID,
			"status":         status,
			"occurred_at":    time.Now().UTC(),
		})
	case JobDisbursePayout:
		s.post(s.payoutWebhookURL, job, map[string]interface{}{
			"payout_id":   job.ID,
			"status":      "processing",
			"occurred_at": time.Now().UTC(),
		})
		if !s.wait() {
			return
		}
		payload := map[string]interface{}{
			"payout_id":   job.ID,
			"status":      "completed",
			"occurred_at": time.Now().UTC(),
		}
		if !succeeded {
			payload["status"] = "failed"
			payload["failure_reason"] = "destination account rejected the transfer"
		}
		s.post(s.payoutWebhookURL, job, payload)
	default:
		s.logger.Error("unknown sandbox job kind", "kind", job.Kind, "id", job.ID)
	}
}

// wait sleeps up to maxDelay. It reports false when the sandbox shut down.
func (s *Sandbox) wait() bool {
	delay := time.Duration(s.roll() * float64(s.maxDelay))
	select {
	case <-time.After(delay):
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Sandbox) roll() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.random()
}

func (s *Sandbox) post(url string, job Job, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("sandbox: failed to marshal callback", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("sandbox: failed to create callback request", "error", err, "id", job.ID)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Error("sandbox: callback failed", "error", err, "kind", job.Kind, "id", job.ID)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		s.logger.Info("sandbox: callback delivered",
			"kind", job.Kind,
			"id", job.ID,
			"status", payload["status"])
	} else {
		s.logger.Warn("sandbox: callback rejected",
			"kind", job.Kind,
			"id", job.ID,
			"status_code", resp.StatusCode)
	}
}
