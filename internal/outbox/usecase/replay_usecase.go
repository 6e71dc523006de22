// Package usecase implements the replay engine: draining buffered outbox
// events into idempotent remote calls. One event's failure never blocks the
// others in the same or other queues.
package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	"github.com/allisson/agentrelay/internal/gateway"
	"github.com/allisson/agentrelay/internal/outbox/domain"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
)

// QueueRepository defines the outbox queue operations consumed by the
// replay engine.
type QueueRepository interface {
	Keys() ([]string, error)
	Read(queueKey string) ([]*domain.OutboxEvent, error)
	Prune(queueKey string, removed []uuid.UUID) error
	Stats() ([]domain.QueueStats, error)
}

// ReplayUseCase defines the replay engine interface.
type ReplayUseCase interface {
	Flush(ctx context.Context) error
	State() domain.ReplayState
}

// replayUseCase implements ReplayUseCase.
type replayUseCase struct {
	queueRepo QueueRepository
	gateway   gateway.Client
	logger    *slog.Logger

	mu    sync.Mutex
	state domain.ReplayState
}

// NewReplayUseCase creates a replay engine over the given queue repository
// and gateway client.
func NewReplayUseCase(queueRepo QueueRepository, gw gateway.Client, logger *slog.Logger) ReplayUseCase {
	return &replayUseCase{
		queueRepo: queueRepo,
		gateway:   gw,
		logger:    logger,
		state:     domain.ReplayState{Status: domain.ReplayStatusIdle},
	}
}

// State returns a copy of the most recent flush pass status.
func (uc *replayUseCase) State() domain.ReplayState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.state
}

// Flush drains every non-empty queue. Events that succeed or that can never
// be delivered are pruned from the queue; events that fail transiently keep
// their original relative order, and an event appended by a live-path
// emitter mid-pass is never lost to the rewrite. Flush itself only errors
// on local I/O failures; delivery failures are reflected in the replay
// state.
func (uc *replayUseCase) Flush(ctx context.Context) error {
	uc.beginPass()

	keys, err := uc.queueRepo.Keys()
	if err != nil {
		uc.finishPass(err.Error())
		return err
	}

	var lastDeliveryError string
	for _, key := range keys {
		events, err := uc.queueRepo.Read(key)
		if err != nil {
			uc.finishPass(err.Error())
			return err
		}
		if len(events) == 0 {
			continue
		}

		var removed []uuid.UUID
		for _, event := range events {
			replayErr := uc.replayOne(ctx, event)
			switch {
			case replayErr == nil:
				// Delivered; drop from the queue.
				removed = append(removed, event.ID)

			case !apperrors.IsRetryable(replayErr):
				// No amount of resubmission fixes missing data.
				removed = append(removed, event.ID)
				if uc.logger != nil {
					uc.logger.Warn("dropping malformed buffered event",
						slog.String("event_id", event.ID.String()),
						slog.String("event_type", string(event.Type)),
						slog.Any("error", replayErr),
					)
				}

			default:
				lastDeliveryError = replayErr.Error()
				if uc.logger != nil {
					uc.logger.Warn("replay failed, keeping event",
						slog.String("event_id", event.ID.String()),
						slog.String("event_type", string(event.Type)),
						slog.String("queue_key", key),
						slog.Any("error", replayErr),
					)
				}
			}
		}

		if err := uc.queueRepo.Prune(key, removed); err != nil {
			uc.finishPass(err.Error())
			return err
		}
	}

	uc.finishPass(lastDeliveryError)
	return nil
}

// replayOne translates one buffered event into an idempotent remote call.
func (uc *replayUseCase) replayOne(ctx context.Context, event *domain.OutboxEvent) error {
	switch payload := event.Payload.(type) {
	case *domain.ProgressPayload:
		return uc.replayProgress(ctx, event, payload)
	case *domain.DecisionPayload:
		return uc.replayDecision(ctx, event, payload)
	case *domain.ChangesetPayload:
		return uc.replayChangeset(ctx, event, payload)
	case *domain.ArtifactPayload:
		return uc.replayArtifact(ctx, event, payload)
	case *domain.OutcomePayload:
		return uc.replayOutcome(ctx, event, payload)
	case *domain.RetroPayload:
		return uc.replayRetro(ctx, event, payload)
	default:
		return apperrors.Wrap(apperrors.ErrMalformedPayload, string(event.Type))
	}
}

func (uc *replayUseCase) replayProgress(
	ctx context.Context,
	event *domain.OutboxEvent,
	payload *domain.ProgressPayload,
) error {
	if payload.Message == "" {
		return apperrors.Wrap(apperrors.ErrMalformedPayload, "progress event without message")
	}

	key := payload.IdempotencyKey
	if key == "" {
		key = reportingDomain.DeriveIdempotencyKey("progress", event.Context, payload.Message, event.ID.String())
	}
	_, err := uc.attemptWithRunFallback(ctx, event.Context, func(rctx reportingDomain.ReportingContext) (string, error) {
		return uc.gateway.EmitActivity(ctx, rctx, gateway.ActivityInput{
			Message:        payload.Message,
			IdempotencyKey: key,
		})
	})
	return err
}

func (uc *replayUseCase) replayDecision(
	ctx context.Context,
	event *domain.OutboxEvent,
	payload *domain.DecisionPayload,
) error {
	if payload.Question == "" || payload.Decision == "" {
		return apperrors.Wrap(apperrors.ErrMalformedPayload, "decision event missing question or decision")
	}

	// The fallback key hashes the question text so repeated replay of the
	// same buffered decision never double-creates it remotely.
	key := payload.IdempotencyKey
	if key == "" {
		key = reportingDomain.DeriveIdempotencyKey("decision", event.Context, payload.Question)
	}
	_, err := uc.attemptWithRunFallback(ctx, event.Context, func(rctx reportingDomain.ReportingContext) (string, error) {
		return uc.gateway.ApplyChangeset(ctx, rctx, gateway.ChangesetInput{
			Operations: []domain.Operation{{
				Kind:       domain.OperationCreate,
				EntityType: "decision",
				Fields: map[string]any{
					"question":  payload.Question,
					"decision":  payload.Decision,
					"reasoning": payload.Reasoning,
				},
			}},
			IdempotencyKey: key,
		})
	})
	return err
}

func (uc *replayUseCase) replayChangeset(
	ctx context.Context,
	event *domain.OutboxEvent,
	payload *domain.ChangesetPayload,
) error {
	if len(payload.Operations) == 0 {
		return apperrors.Wrap(apperrors.ErrMalformedPayload, "changeset event without operations")
	}

	key := payload.IdempotencyKey
	if key == "" {
		key = reportingDomain.DeriveIdempotencyKey("changeset", event.Context, event.ID.String())
	}

	// A batch of plain status updates replays through the narrower
	// per-entity update call, which is more broadly supported remotely.
	if payload.StatusOnly() {
		for _, op := range payload.Operations {
			opKey := reportingDomain.DeriveIdempotencyKey(
				"entity_status", event.Context, op.EntityType, op.EntityID, event.ID.String(),
			)
			_, err := uc.attemptWithRunFallback(ctx, event.Context,
				func(rctx reportingDomain.ReportingContext) (string, error) {
					return uc.gateway.UpdateEntity(ctx, rctx, gateway.EntityUpdateInput{
						EntityType:     op.EntityType,
						EntityID:       op.EntityID,
						Fields:         op.Fields,
						IdempotencyKey: opKey,
					})
				})
			if err != nil {
				return err
			}
		}
		return nil
	}

	_, err := uc.attemptWithRunFallback(ctx, event.Context, func(rctx reportingDomain.ReportingContext) (string, error) {
		return uc.gateway.ApplyChangeset(ctx, rctx, gateway.ChangesetInput{
			Operations:     payload.Operations,
			IdempotencyKey: key,
		})
	})
	return err
}

func (uc *replayUseCase) replayArtifact(
	ctx context.Context,
	event *domain.OutboxEvent,
	payload *domain.ArtifactPayload,
) error {
	// Artifacts whose entity association cannot be resolved are dropped:
	// the remote side has nothing to attach them to.
	if err := payload.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrMalformedPayload, err.Error())
	}

	key := reportingDomain.DeriveIdempotencyKey(
		"artifact", event.Context, payload.EntityType, payload.EntityID, payload.URI,
	)
	_, err := uc.attemptWithRunFallback(ctx, event.Context, func(rctx reportingDomain.ReportingContext) (string, error) {
		return uc.gateway.RegisterArtifact(ctx, rctx, gateway.ArtifactInput{
			EntityType:     payload.EntityType,
			EntityID:       payload.EntityID,
			Name:           payload.Name,
			URI:            payload.URI,
			MediaType:      payload.MediaType,
			IdempotencyKey: key,
		})
	})
	if apperrors.Is(err, apperrors.ErrUnknownEntity) {
		// The target entity does not exist remotely; resubmission cannot fix it.
		return apperrors.Wrap(apperrors.ErrMalformedPayload, err.Error())
	}
	return err
}

func (uc *replayUseCase) replayOutcome(
	ctx context.Context,
	event *domain.OutboxEvent,
	payload *domain.OutcomePayload,
) error {
	if payload.Summary == "" {
		return apperrors.Wrap(apperrors.ErrMalformedPayload, "outcome event without summary")
	}

	key := payload.IdempotencyKey
	if key == "" {
		key = reportingDomain.DeriveIdempotencyKey("outcome", event.Context)
	}
	_, err := uc.attemptWithRunFallback(ctx, event.Context, func(rctx reportingDomain.ReportingContext) (string, error) {
		return uc.gateway.RecordOutcome(ctx, rctx, gateway.OutcomeInput{
			Success:        payload.Success,
			Summary:        payload.Summary,
			TokensUsed:     payload.TokensUsed,
			CostUSD:        payload.CostUSD,
			IdempotencyKey: key,
		})
	})
	return err
}

func (uc *replayUseCase) replayRetro(
	ctx context.Context,
	event *domain.OutboxEvent,
	payload *domain.RetroPayload,
) error {
	if payload.Summary == "" {
		return apperrors.Wrap(apperrors.ErrMalformedPayload, "retro event without summary")
	}

	key := payload.IdempotencyKey
	if key == "" {
		key = reportingDomain.DeriveIdempotencyKey("retro", event.Context)
	}
	_, err := uc.attemptWithRunFallback(ctx, event.Context, func(rctx reportingDomain.ReportingContext) (string, error) {
		return uc.gateway.RecordRetro(ctx, rctx, gateway.RetroInput{
			Summary:        payload.Summary,
			FollowUps:      payload.FollowUps,
			IdempotencyKey: key,
		})
	})
	return err
}

// attemptWithRunFallback runs a gateway call and, when the remote side
// rejects a locally generated run id as unknown, retries once with a
// correlation id deterministically derived from that run id. The
// idempotency key is computed by the caller before the fallback, so both
// attempts carry the same key.
func (uc *replayUseCase) attemptWithRunFallback(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	attempt func(reportingDomain.ReportingContext) (string, error),
) (string, error) {
	remoteID, err := attempt(rctx)
	if err == nil {
		return remoteID, nil
	}
	if !apperrors.Is(err, apperrors.ErrUnknownEntity) {
		return "", err
	}
	if rctx.CorrelationID != "" || rctx.RunID == "" {
		return "", err
	}

	derived := rctx.WithDerivedCorrelation()
	if uc.logger != nil {
		uc.logger.Info("retrying with correlation id derived from local run id",
			slog.String("run_id", rctx.RunID),
			slog.String("correlation_id", derived.CorrelationID),
		)
	}
	return attempt(derived)
}

// beginPass resets the replay state to running.
func (uc *replayUseCase) beginPass() {
	now := time.Now().UTC()
	uc.mu.Lock()
	uc.state.Status = domain.ReplayStatusRunning
	uc.state.LastAttemptAt = &now
	uc.mu.Unlock()
}

// finishPass finalizes the replay state: success when every queue fully
// drained, error with the last failure's message otherwise.
func (uc *replayUseCase) finishPass(lastError string) {
	now := time.Now().UTC()
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if lastError == "" {
		uc.state.Status = domain.ReplayStatusSuccess
		uc.state.LastSuccessAt = &now
		uc.state.LastError = ""
		return
	}
	uc.state.Status = domain.ReplayStatusError
	uc.state.LastFailureAt = &now
	uc.state.LastError = lastError
}
