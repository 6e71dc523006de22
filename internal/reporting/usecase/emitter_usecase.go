package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	"github.com/allisson/agentrelay/internal/gateway"
	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
	"github.com/allisson/agentrelay/internal/reporting/domain"
)

const savedLocallyMessage = "saved locally; will sync when the gateway is reachable"

// ContextResolver resolves a full ReportingContext from explicit caller
// input plus configured defaults. It fails fast with a descriptive error
// when no initiative can be determined.
type ContextResolver struct {
	defaultInitiativeID string
	sourceClient        domain.SourceClient
}

// NewContextResolver creates a resolver with the given defaults.
func NewContextResolver(defaultInitiativeID string, sourceClient domain.SourceClient) *ContextResolver {
	return &ContextResolver{
		defaultInitiativeID: defaultInitiativeID,
		sourceClient:        sourceClient,
	}
}

// Resolve builds and validates the reporting context for a call.
func (r *ContextResolver) Resolve(cc CallerContext) (domain.ReportingContext, error) {
	initiativeID := cc.InitiativeID
	if initiativeID == "" {
		initiativeID = r.defaultInitiativeID
	}
	if initiativeID == "" {
		return domain.ReportingContext{}, apperrors.Wrap(
			apperrors.ErrInvalidInput,
			"initiative id could not be resolved: pass one explicitly or set DEFAULT_INITIATIVE_ID",
		)
	}

	rctx := domain.ReportingContext{
		InitiativeID:  initiativeID,
		RunID:         cc.RunID,
		CorrelationID: cc.CorrelationID,
		SourceClient:  r.sourceClient,
	}
	if err := rctx.Validate(); err != nil {
		return domain.ReportingContext{}, err
	}
	return rctx, nil
}

// emitterUseCase implements EmitterUseCase.
type emitterUseCase struct {
	gateway      gateway.Client
	outbox       OutboxAppender
	resolver     *ContextResolver
	credentialed bool
	logger       *slog.Logger
}

// NewEmitterUseCase creates the live-path emitter. When credentialed is
// false (no gateway token configured) remote calls are skipped entirely and
// every event goes straight to the outbox.
func NewEmitterUseCase(
	gw gateway.Client,
	outbox OutboxAppender,
	resolver *ContextResolver,
	credentialed bool,
	logger *slog.Logger,
) EmitterUseCase {
	return &emitterUseCase{
		gateway:      gw,
		outbox:       outbox,
		resolver:     resolver,
		credentialed: credentialed,
		logger:       logger,
	}
}

// EmitActivity posts a progress update, buffering it on failure.
func (uc *emitterUseCase) EmitActivity(ctx context.Context, input EmitActivityInput) (*Confirmation, error) {
	rctx, err := uc.resolver.Resolve(input.CallerContext)
	if err != nil {
		return nil, err
	}

	payload := &outboxDomain.ProgressPayload{
		Message: input.Message,
		IdempotencyKey: domain.DeriveIdempotencyKey(
			"progress", rctx, input.Message, time.Now().UTC().Format(time.RFC3339Nano),
		),
	}
	activity := outboxDomain.ActivityItem{Title: "Progress update", Detail: input.Message}

	return uc.deliverOrBuffer(ctx, rctx, payload, activity, func(callCtx context.Context) (string, error) {
		return uc.gateway.EmitActivity(callCtx, rctx, gateway.ActivityInput{
			Message:        input.Message,
			IdempotencyKey: payload.IdempotencyKey,
		})
	})
}

// RecordDecision records a decision. Live delivery goes through a changeset
// with a single decision-creation operation; the buffered form keeps the
// dedicated decision shape so replay can rebuild the same call.
func (uc *emitterUseCase) RecordDecision(ctx context.Context, input RecordDecisionInput) (*Confirmation, error) {
	rctx, err := uc.resolver.Resolve(input.CallerContext)
	if err != nil {
		return nil, err
	}

	payload := &outboxDomain.DecisionPayload{
		Question:       input.Question,
		Decision:       input.Decision,
		Reasoning:      input.Reasoning,
		IdempotencyKey: domain.DeriveIdempotencyKey("decision", rctx, input.Question),
	}
	activity := outboxDomain.ActivityItem{Title: "Decision: " + input.Question, Detail: input.Decision}

	return uc.deliverOrBuffer(ctx, rctx, payload, activity, func(callCtx context.Context) (string, error) {
		return uc.gateway.ApplyChangeset(callCtx, rctx, gateway.ChangesetInput{
			Operations: []outboxDomain.Operation{{
				Kind:       outboxDomain.OperationCreate,
				EntityType: "decision",
				Fields: map[string]any{
					"question":  input.Question,
					"decision":  input.Decision,
					"reasoning": input.Reasoning,
				},
			}},
			IdempotencyKey: payload.IdempotencyKey,
		})
	})
}

// ApplyChangeset applies a batch of typed operations.
func (uc *emitterUseCase) ApplyChangeset(ctx context.Context, input ApplyChangesetInput) (*Confirmation, error) {
	rctx, err := uc.resolver.Resolve(input.CallerContext)
	if err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = domain.DeriveIdempotencyKey("changeset", rctx, operationsFingerprint(input.Operations))
	}
	payload := &outboxDomain.ChangesetPayload{Operations: input.Operations, IdempotencyKey: key}
	activity := outboxDomain.ActivityItem{
		Title: fmt.Sprintf("Changeset with %d operation(s)", len(input.Operations)),
	}

	return uc.deliverOrBuffer(ctx, rctx, payload, activity, func(callCtx context.Context) (string, error) {
		return uc.gateway.ApplyChangeset(callCtx, rctx, gateway.ChangesetInput{
			Operations:     input.Operations,
			IdempotencyKey: key,
		})
	})
}

// RegisterArtifact registers an artifact against its target entity.
func (uc *emitterUseCase) RegisterArtifact(ctx context.Context, input RegisterArtifactInput) (*Confirmation, error) {
	rctx, err := uc.resolver.Resolve(input.CallerContext)
	if err != nil {
		return nil, err
	}

	payload := &outboxDomain.ArtifactPayload{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Name:       input.Name,
		URI:        input.URI,
		MediaType:  input.MediaType,
	}
	key := domain.DeriveIdempotencyKey("artifact", rctx, input.EntityType, input.EntityID, input.URI)
	activity := outboxDomain.ActivityItem{Title: "Artifact registered", Detail: input.URI}

	return uc.deliverOrBuffer(ctx, rctx, payload, activity, func(callCtx context.Context) (string, error) {
		return uc.gateway.RegisterArtifact(callCtx, rctx, gateway.ArtifactInput{
			EntityType:     input.EntityType,
			EntityID:       input.EntityID,
			Name:           input.Name,
			URI:            input.URI,
			MediaType:      input.MediaType,
			IdempotencyKey: key,
		})
	})
}

// RecordOutcome records how a run ended.
func (uc *emitterUseCase) RecordOutcome(ctx context.Context, input RecordOutcomeInput) (*Confirmation, error) {
	rctx, err := uc.resolver.Resolve(input.CallerContext)
	if err != nil {
		return nil, err
	}

	payload := &outboxDomain.OutcomePayload{
		Success:        input.Success,
		Summary:        input.Summary,
		TokensUsed:     input.TokensUsed,
		CostUSD:        input.CostUSD,
		IdempotencyKey: domain.DeriveIdempotencyKey("outcome", rctx),
	}
	title := "Run finished"
	if !input.Success {
		title = "Run failed"
	}
	activity := outboxDomain.ActivityItem{Title: title, Detail: input.Summary}

	return uc.deliverOrBuffer(ctx, rctx, payload, activity, func(callCtx context.Context) (string, error) {
		return uc.gateway.RecordOutcome(callCtx, rctx, gateway.OutcomeInput{
			Success:        input.Success,
			Summary:        input.Summary,
			TokensUsed:     input.TokensUsed,
			CostUSD:        input.CostUSD,
			IdempotencyKey: payload.IdempotencyKey,
		})
	})
}

// RecordRetro records a run retrospective.
func (uc *emitterUseCase) RecordRetro(ctx context.Context, input RecordRetroInput) (*Confirmation, error) {
	rctx, err := uc.resolver.Resolve(input.CallerContext)
	if err != nil {
		return nil, err
	}

	payload := &outboxDomain.RetroPayload{
		Summary:        input.Summary,
		FollowUps:      input.FollowUps,
		IdempotencyKey: domain.DeriveIdempotencyKey("retro", rctx),
	}
	activity := outboxDomain.ActivityItem{Title: "Run retrospective", Detail: input.Summary}

	return uc.deliverOrBuffer(ctx, rctx, payload, activity, func(callCtx context.Context) (string, error) {
		return uc.gateway.RecordRetro(callCtx, rctx, gateway.RetroInput{
			Summary:        input.Summary,
			FollowUps:      input.FollowUps,
			IdempotencyKey: payload.IdempotencyKey,
		})
	})
}

// deliverOrBuffer is the shared live-path mechanic: validate, attempt the
// remote call, and on any delivery failure buffer a validated event with a
// materialized activity item instead of raising. Only local validation and
// local I/O failures surface as errors.
func (uc *emitterUseCase) deliverOrBuffer(
	ctx context.Context,
	rctx domain.ReportingContext,
	payload outboxDomain.EventPayload,
	activity outboxDomain.ActivityItem,
	attempt func(context.Context) (string, error),
) (*Confirmation, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if uc.credentialed {
		remoteID, err := attempt(ctx)
		if err == nil {
			return &Confirmation{
				Delivered: true,
				RemoteID:  remoteID,
				Message:   fmt.Sprintf("recorded remotely as %s", remoteID),
			}, nil
		}
		if uc.logger != nil {
			uc.logger.Warn("live delivery failed, buffering event",
				slog.String("event_type", string(payload.Kind())),
				slog.String("queue_key", rctx.QueueKey()),
				slog.Any("error", err),
			)
		}
	}

	event, err := outboxDomain.NewOutboxEvent(rctx, payload, activity)
	if err != nil {
		return nil, err
	}
	if err := uc.outbox.Append(rctx.QueueKey(), event); err != nil {
		// Local I/O failure: the caller must not assume the event was
		// durably recorded.
		return nil, apperrors.Wrap(err, "buffering event")
	}

	return &Confirmation{Delivered: false, Message: savedLocallyMessage}, nil
}

// operationsFingerprint builds a stable string form of an operation batch
// for idempotency key derivation.
func operationsFingerprint(operations []outboxDomain.Operation) string {
	data, err := json.Marshal(operations)
	if err != nil {
		return fmt.Sprintf("%d-operations", len(operations))
	}
	return string(data)
}
