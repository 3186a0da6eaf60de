// Package relay drains the relay queue to the external push API and runs the
// daily check-in sweep.
package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage"
)

// Queue is the storage the worker reads requests from and reports failures to.
type Queue interface {
	storage.RelayQueue
	storage.AlertStore
}

// Worker polls the relay queue and delivers pending requests at most once.
// Each request is claimed before sending so concurrent workers never post it
// twice, and a failed request is marked as error and never retried.
type Worker struct {
	queue        Queue
	sender       Sender
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
	log          *log.Logger

	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Now          func() time.Time
}

func NewWorker(queue Queue, sender Sender, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultRelayPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = constants.RelayBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{
		queue:        queue,
		sender:       sender,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		now:          cfg.Now,
		log:          logger.With("component", "relay"),
		done:         make(chan struct{}),
	}
}

// Start begins the background poll loop. Later calls are ignored.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.log.Warn("Start called more than once, ignoring")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.pollLoop(loopCtx)
}

// Drain stops the loop after one final batch and waits until it exits or ctx expires.
func (w *Worker) Drain(ctx context.Context) {
	if !w.started.Load() {
		return
	}
	w.cancel()
	select {
	case <-w.done:
	case <-ctx.Done():
		w.log.Warn("drain timed out")
	}
}

// Done is closed once the poll loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Flush whatever was queued during shutdown.
			final, cancel := context.WithTimeout(context.Background(), constants.RelayRequestTimeout)
			w.ProcessBatch(final)
			cancel()
			return
		case <-ticker.C:
			// Shutdown stops the batch between requests but lets an
			// in-flight send finish under the sender's own timeout.
			w.process(ctx, context.WithoutCancel(ctx))
		}
	}
}

// ProcessBatch delivers up to one batch of pending requests and reports how
// many were sent and how many failed. Requests claimed by another worker or
// interrupted by ctx are not counted and stay deliverable.
func (w *Worker) ProcessBatch(ctx context.Context) (sent, failed int) {
	return w.process(ctx, ctx)
}

func (w *Worker) process(ctx, sendCtx context.Context) (sent, failed int) {
	pending, err := w.queue.PendingRelays(ctx, w.batchSize)
	if err != nil {
		w.log.Error("failed to load pending relays", "error", err)
		return 0, 0
	}

	for _, req := range pending {
		if ctx.Err() != nil {
			break
		}
		switch w.deliver(ctx, sendCtx, req) {
		case outcomeSent:
			sent++
		case outcomeFailed:
			failed++
		}
	}
	if sent+failed > 0 {
		w.log.Info("relay batch processed", "sent", sent, "failed", failed)
	}
	return sent, failed
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (w *Worker) deliver(ctx, sendCtx context.Context, req models.RelayRequest) outcome {
	if err := w.queue.ClaimRelay(ctx, req.ID); err != nil {
		if errors.Is(err, storage.ErrRelayClaimed) {
			w.log.Debug("relay already claimed", "id", req.ID)
		} else {
			w.log.Error("failed to claim relay", "id", req.ID, "error", err)
		}
		return outcomeSkipped
	}

	// Bookkeeping for a claimed request must land even during shutdown.
	book := context.WithoutCancel(ctx)

	if err := req.Validate(); err != nil {
		w.fail(book, req, err.Error(), false)
		return outcomeFailed
	}

	message := req.Message
	if req.Urgent {
		message = constants.UrgentBanner + message
	}

	if err := w.sender.Send(sendCtx, req.DeliveryToken, message); err != nil {
		if sendCtx.Err() != nil {
			w.log.Info("relay interrupted, returning to queue", "id", req.ID)
			if err := w.queue.ReleaseRelay(book, req.ID); err != nil {
				w.log.Error("failed to release relay", "id", req.ID, "error", err)
			}
			return outcomeSkipped
		}
		w.fail(book, req, err.Error(), true)
		return outcomeFailed
	}

	if err := w.queue.MarkRelaySent(book, req.ID, w.now()); err != nil {
		w.log.Error("failed to mark relay sent", "id", req.ID, "error", err)
	}
	return outcomeSent
}

// fail records the error on the request. Transport failures are also
// surfaced to the family as an info alert written straight to the store,
// so they can never feed back into the relay queue.
func (w *Worker) fail(ctx context.Context, req models.RelayRequest, reason string, surface bool) {
	w.log.Warn("relay delivery failed", "id", req.ID, "reason", reason)
	if err := w.queue.MarkRelayFailed(ctx, req.ID, reason); err != nil {
		w.log.Error("failed to mark relay failed", "id", req.ID, "error", err)
	}
	if !surface {
		return
	}
	alert := models.Alert{
		ID:        uuid.New().String(),
		Kind:      models.AlertInfo,
		Message:   "Relay delivery failed: " + reason,
		CreatedAt: w.now(),
	}
	if err := w.queue.AppendAlert(ctx, alert); err != nil {
		w.log.Error("failed to record relay failure alert", "error", err)
	}
}
