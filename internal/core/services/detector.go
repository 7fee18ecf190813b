package services

import (
	"context"
	"errors"
	"time"

	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/event"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/internal/gateways"
	"github.com/novatrust/bio-gateway/internal/log"
	"github.com/novatrust/bio-gateway/internal/pubsub"
	"github.com/novatrust/bio-gateway/internal/syncttlmap"
)

// verifiedPageName is the capture surface page whose success notification
// counts as a completion signal. Every other event shape is logged and
// ignored.
const verifiedPageName = "verifiedPage"

// Detector reconciles the two completion signals for an operation: the
// capture surface event (fast, best effort) and the status poll (slow,
// reliable fallback). Either one can win; the transition applier guarantees
// only the first terminal proposal takes effect.
//
// The event signal is preferred when it arrives: the provider's status
// endpoint is known to lag the true terminal state by up to several minutes,
// so the detector goes straight to the result endpoint instead of waiting
// for the next poll to observe terminality.
type Detector struct {
	gateway        ports.VerificationGateway
	applier        ports.TransitionApplier
	operationsRepo ports.OperationsRepository
	subscriber     pubsub.Subscriber
	pollInterval   time.Duration
	maxAttempts    int
	inflight       *syncttlmap.TTLMap

	// watchCtx outlives the request that starts a watch. Polling stops when
	// the daemon shuts down, not when the request ends.
	watchCtx context.Context
}

// NewDetector returns a completion detector. ctx bounds the lifetime of all
// polling goroutines.
func NewDetector(
	ctx context.Context,
	gateway ports.VerificationGateway,
	applier ports.TransitionApplier,
	operationsRepo ports.OperationsRepository,
	subscriber pubsub.Subscriber,
	pollInterval time.Duration,
	maxAttempts int,
	operationTTL time.Duration,
) *Detector {
	return &Detector{
		gateway:        gateway,
		applier:        applier,
		operationsRepo: operationsRepo,
		subscriber:     subscriber,
		pollInterval:   pollInterval,
		maxAttempts:    maxAttempts,
		inflight:       syncttlmap.New(operationTTL),
		watchCtx:       ctx,
	}
}

// Start subscribes the detector to capture surface events
func (d *Detector) Start(ctx context.Context) {
	d.subscriber.Subscribe(ctx, event.CaptureSurfaceEvent, d.onCaptureEvent)
}

// Watch starts the polling fallback for one operation. A second Watch for
// the same operation id while the first is alive is a no-op.
func (d *Detector) Watch(ctx context.Context, op *domain.Operation) {
	if op.IsTerminal() || op.RequiresReview {
		return
	}
	if _, alreadyWatching := d.inflight.LoadOrStore(op.OperationID, true); alreadyWatching {
		log.Debug(ctx, "operation already being watched", "operationID", op.OperationID)
		return
	}
	go d.poll(d.watchCtx, op.OperationID)
}

// Resume re-attaches watchers for all persisted pending operations. Called
// on daemon start: in-process watchers do not survive a restart, the
// database does.
func (d *Detector) Resume(ctx context.Context) error {
	pending, err := d.operationsRepo.GetPending(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, op := range pending {
		if now.After(op.ExpiresAt) {
			if _, err := d.applier.Expire(ctx, op.OperationID); err != nil {
				log.Error(ctx, "expiring stale operation on resume", "err", err, "operationID", op.OperationID)
			}
			continue
		}
		d.Watch(ctx, op)
	}

	log.Info(ctx, "resumed pending operation watchers", "count", len(pending))
	return nil
}

// poll drives the polling signal for one operation: a fixed interval ticker
// bounded by an attempt budget. On budget exhaustion the operation expires
// and no further query is issued.
func (d *Detector) poll(ctx context.Context, operationID string) {
	defer d.inflight.Delete(operationID)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < d.maxAttempts; {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attempt++
			if done := d.pollOnce(ctx, operationID); done {
				return
			}
		}
	}

	if _, err := d.applier.Expire(ctx, operationID); err != nil {
		log.Error(ctx, "expiring operation after budget exhaustion", "err", err, "operationID", operationID)
	}
}

// pollOnce performs a single status query. It returns true when polling must
// stop: terminal transition applied, manual review recorded, or the
// operation turned out to be already terminal.
func (d *Detector) pollOnce(ctx context.Context, operationID string) bool {
	outcome, err := d.gateway.QueryStatus(ctx, operationID)
	if err != nil {
		// Transient provider trouble. The attempt is spent, the budget
		// decides when to give up.
		log.Warn(ctx, "status query failed", "err", err, "operationID", operationID)
		return false
	}

	if outcome.NotYetQueryable {
		// Normal registration lag, the operation stays pending.
		log.Debug(ctx, "operation not yet queryable", "operationID", operationID)
		return false
	}

	if !outcome.Terminal {
		if _, err := d.applier.MarkQueryable(ctx, operationID, outcome.RemoteState); err != nil {
			log.Error(ctx, "marking operation queryable", "err", err, "operationID", operationID)
		}
		return false
	}

	if outcome.ResultCode == domain.ResultCodeSuccess && outcome.CompletedAt == nil {
		// Success-shaped state without a completion timestamp. Known
		// provider anomaly, not a completion.
		log.Warn(ctx, "terminal success state with null completedAt, still pending", "operationID", operationID)
		return false
	}

	return d.settle(ctx, operationID)
}

// settle fetches the proof result and proposes it to the applier
func (d *Detector) settle(ctx context.Context, operationID string) bool {
	result, err := d.gateway.FetchResult(ctx, operationID)
	if err != nil {
		if errors.Is(err, gateways.ErrResultNotReady) {
			// The result endpoint lags the status endpoint. Keep polling.
			log.Debug(ctx, "result not ready yet", "operationID", operationID)
			return false
		}
		log.Warn(ctx, "fetching result failed", "err", err, "operationID", operationID)
		return false
	}

	op, err := d.applier.ApplyResult(ctx, operationID, result)
	if err != nil {
		log.Error(ctx, "applying terminal result", "err", err, "operationID", operationID)
		return false
	}
	return op.IsTerminal() || op.RequiresReview
}

// onCaptureEvent handles a capture surface notification. Only the verified
// page success shape acts as a completion signal; the proof is verified
// against the result endpoint before any transition, so a forged or
// premature event can never produce an unearned success.
func (d *Detector) onCaptureEvent(ctx context.Context, msg pubsub.Message) error {
	var ev event.CaptureSurface
	if err := ev.Unmarshal(msg); err != nil {
		return errors.New("capture surface event: unexpected data type")
	}

	if ev.PageName != verifiedPageName || !ev.Success {
		log.Info(ctx, "ignoring capture surface event", "operationID", ev.OperationID, "type", ev.Type, "pageName", ev.PageName, "success", ev.Success)
		return nil
	}

	log.Info(ctx, "capture surface reported success", "operationID", ev.OperationID)
	d.settle(ctx, ev.OperationID)
	return nil
}
