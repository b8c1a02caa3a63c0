// Package dispatcher drives queue items through validation, box assignment
// and write-back, translating every failure into a state transition.
// Nothing escapes a tick as an unhandled fault.
package dispatcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/packhub/boxflow/internal/assign"
	"github.com/packhub/boxflow/internal/domain"
	"github.com/packhub/boxflow/internal/notify"
	"github.com/packhub/boxflow/internal/refcache"
	"github.com/packhub/boxflow/internal/repository"
	"github.com/packhub/boxflow/internal/writeback"
)

// Hooks carries the metric callback functions injected by main.
// All are optional (nil = no-op).
type Hooks struct {
	OnCompleted    func(latency time.Duration, missingSKUs int)
	OnRetried      func()
	OnFailed       func()
	OnDeadLettered func()
}

func (h *Hooks) fillDefaults() {
	if h.OnCompleted == nil {
		h.OnCompleted = func(time.Duration, int) {}
	}
	if h.OnRetried == nil {
		h.OnRetried = func() {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func() {}
	}
	if h.OnDeadLettered == nil {
		h.OnDeadLettered = func() {}
	}
}

// Dispatcher claims a bounded batch of ready items per tick and processes
// them strictly one at a time. The timer path (Run) and the on-demand path
// (RunTick) share the same claim/process/update logic.
type Dispatcher struct {
	repo   repository.QueueRepository
	audit  repository.AuditRepository
	cache  *refcache.Cache
	engine *assign.Engine
	client writeback.Client

	failures chan<- notify.FailureEvent

	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	pace        *rate.Limiter

	logger *zap.Logger
	hooks  Hooks
}

func New(
	repo repository.QueueRepository,
	audit repository.AuditRepository,
	cache *refcache.Cache,
	engine *assign.Engine,
	client writeback.Client,
	failures chan<- notify.FailureEvent,
	batchSize int,
	maxAttempts int,
	retryDelay time.Duration,
	itemDelay time.Duration,
	logger *zap.Logger,
	hooks Hooks,
) *Dispatcher {
	hooks.fillDefaults()

	limit := rate.Inf
	if itemDelay > 0 {
		limit = rate.Every(itemDelay)
	}

	return &Dispatcher{
		repo:        repo,
		audit:       audit,
		cache:       cache,
		engine:      engine,
		client:      client,
		failures:    failures,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		pace:        rate.NewLimiter(limit, 1),
		logger:      logger,
		hooks:       hooks,
	}
}

// Run ticks every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		zap.Duration("interval", interval),
		zap.Int("batch_size", d.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			if _, err := d.RunTick(ctx); err != nil {
				d.logger.Error("dispatch tick error", zap.Error(err))
			}
		}
	}
}

// RunTick claims and processes up to batchSize ready items, pacing between
// them to bound the external call rate. An empty ready pool ends the tick
// without error. Returns the number of items processed.
func (d *Dispatcher) RunTick(ctx context.Context) (int, error) {
	processed := 0
	for i := 0; i < d.batchSize; i++ {
		// Explicit suspension between items, not polling.
		if err := d.pace.Wait(ctx); err != nil {
			return processed, err
		}

		item, err := d.repo.ClaimNext(ctx, time.Now().UTC())
		if err != nil {
			return processed, err
		}
		if item == nil {
			return processed, nil
		}

		d.process(ctx, item)
		processed++
	}
	return processed, nil
}

func (d *Dispatcher) process(ctx context.Context, item *domain.QueueItem) {
	start := time.Now()
	log := d.logger.With(
		zap.String("item_id", item.ID),
		zap.String("order_number", item.OrderNumber),
	)

	ev, verr := domain.DecodeOrderEvent(item.Payload)
	if verr != nil {
		d.deadLetter(ctx, item, verr, start, log)
		return
	}

	// Attempts count genuine processing attempts only, so the increment
	// happens after structural validation, never for dead-letters.
	attempts, err := d.repo.RecordAttempt(ctx, item.ID)
	if err != nil {
		// The item stays in processing; the recovery scanner reclaims it.
		log.Error("failed to record attempt", zap.Error(err))
		return
	}

	res, procErr := d.engine.Assign(ev.LineItems, d.cache.Fresh(ctx))
	if procErr == nil {
		if len(res.MissingSKUs) > 0 {
			log.Warn("unknown SKUs, default unit size substituted",
				zap.Strings("skus", res.MissingSKUs))
		}
		procErr = d.client.AssignBox(ctx, ev.OrderID, res.BoxName, res.StatusLabel)
	}
	if procErr != nil {
		d.handleFailure(ctx, item, ev, attempts, procErr, start, log)
		return
	}

	now := time.Now().UTC()
	result := &domain.AssignmentResult{
		OrderNumber: ev.OrderNumber,
		TotalSize:   res.TotalSize,
		BoxName:     res.BoxName,
		StatusLabel: res.StatusLabel,
		MissingSKUs: res.MissingSKUs,
	}
	if err := d.repo.MarkCompleted(ctx, item.ID, result, now); err != nil {
		log.Error("failed to mark completed", zap.Error(err))
		return
	}

	d.recordAudit(ctx, &domain.AuditEntry{
		OrderNumber: ev.OrderNumber,
		Success:     true,
		TotalSize:   res.TotalSize,
		BoxName:     res.BoxName,
		MissingSKUs: res.MissingSKUs,
		Duration:    time.Since(start),
	}, log)

	d.hooks.OnCompleted(time.Since(start), len(res.MissingSKUs))
	log.Info("box assigned",
		zap.String("box", res.BoxName),
		zap.Int("total_size", res.TotalSize),
		zap.Int("attempts", attempts),
		zap.Duration("latency", time.Since(start)),
	)
}

// handleFailure either returns the item to the ready pool (retries remain)
// or marks it permanently failed and emits a failure event.
func (d *Dispatcher) handleFailure(
	ctx context.Context,
	item *domain.QueueItem,
	ev *domain.OrderAllocatedEvent,
	attempts int,
	procErr error,
	start time.Time,
	log *zap.Logger,
) {
	now := time.Now().UTC()

	if attempts < d.maxAttempts {
		if err := d.repo.ScheduleRetry(ctx, item.ID, procErr.Error(), now.Add(d.retryDelay)); err != nil {
			log.Error("failed to schedule retry", zap.Error(err))
			return
		}
		d.hooks.OnRetried()
		log.Warn("processing failed, returned to ready pool",
			zap.Int("attempts", attempts),
			zap.Error(procErr),
		)
		return
	}

	if err := d.repo.MarkFailed(ctx, item.ID, procErr.Error(), now); err != nil {
		log.Error("failed to mark failed", zap.Error(err))
		return
	}

	failMsg := procErr.Error()
	d.recordAudit(ctx, &domain.AuditEntry{
		OrderNumber: ev.OrderNumber,
		Success:     false,
		Error:       &failMsg,
		Duration:    time.Since(start),
	}, log)

	// Non-blocking: a full notifier backlog must never stall the dispatcher.
	select {
	case d.failures <- notify.FailureEvent{
		ItemID:      item.ID,
		OrderID:     ev.OrderID,
		OrderNumber: ev.OrderNumber,
		Attempts:    attempts,
		LastError:   procErr.Error(),
		CreatedAt:   item.CreatedAt,
		FailedAt:    now,
	}:
	default:
		log.Warn("failure event dropped: notifier backlog full")
	}

	d.hooks.OnFailed()
	log.Error("retries exhausted, item failed permanently",
		zap.Int("attempts", attempts),
		zap.Error(procErr),
	)
}

// deadLetter fails a structurally invalid item immediately: the retry budget
// is never consumed and no failure event is emitted.
func (d *Dispatcher) deadLetter(ctx context.Context, item *domain.QueueItem, verr error, start time.Time, log *zap.Logger) {
	now := time.Now().UTC()
	if err := d.repo.MarkFailed(ctx, item.ID, verr.Error(), now); err != nil {
		log.Error("failed to dead-letter item", zap.Error(err))
		return
	}

	failMsg := verr.Error()
	d.recordAudit(ctx, &domain.AuditEntry{
		OrderNumber: item.OrderNumber,
		Success:     false,
		Error:       &failMsg,
		Duration:    time.Since(start),
	}, log)

	d.hooks.OnDeadLettered()
	log.Warn("item dead-lettered", zap.Error(verr))
}

func (d *Dispatcher) recordAudit(ctx context.Context, entry *domain.AuditEntry, log *zap.Logger) {
	if err := d.audit.Record(ctx, entry); err != nil {
		log.Warn("failed to record audit entry", zap.Error(err))
	}
}
