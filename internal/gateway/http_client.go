package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/allisson/agentrelay/internal/errors"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
)

// HTTPClient is the real gateway client. Every call is bounded by the
// configured client timeout; a call that exceeds it is reported as a
// transient failure so the caller falls back to buffering.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	tracker *connectionTracker
	logger  *slog.Logger
}

// HTTPClientConfig configures the gateway HTTP client.
type HTTPClientConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// NewHTTPClient creates a gateway client with request pacing.
func NewHTTPClient(cfg HTTPClientConfig, logger *slog.Logger) *HTTPClient {
	limit := rate.Limit(cfg.RequestsPerSec)
	if cfg.RequestsPerSec <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		tracker: newConnectionTracker(),
		logger:  logger,
	}
}

// ConnectionState returns the classification of the most recent call.
func (c *HTTPClient) ConnectionState() ConnectionState {
	return c.tracker.get()
}

// EmitActivity posts a progress activity to the initiative feed.
func (c *HTTPClient) EmitActivity(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input ActivityInput,
) (string, error) {
	path := fmt.Sprintf("/v1/initiatives/%s/activities", url.PathEscape(rctx.InitiativeID))
	return c.mutate(ctx, http.MethodPost, path, rctx, input, input.IdempotencyKey)
}

// ApplyChangeset applies a batch of typed operations.
func (c *HTTPClient) ApplyChangeset(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input ChangesetInput,
) (string, error) {
	path := fmt.Sprintf("/v1/initiatives/%s/changesets", url.PathEscape(rctx.InitiativeID))
	return c.mutate(ctx, http.MethodPost, path, rctx, input, input.IdempotencyKey)
}

// RegisterArtifact registers an artifact against its target entity.
func (c *HTTPClient) RegisterArtifact(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input ArtifactInput,
) (string, error) {
	path := fmt.Sprintf("/v1/initiatives/%s/artifacts", url.PathEscape(rctx.InitiativeID))
	return c.mutate(ctx, http.MethodPost, path, rctx, input, input.IdempotencyKey)
}

// RecordOutcome records a run outcome.
func (c *HTTPClient) RecordOutcome(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input OutcomeInput,
) (string, error) {
	path := fmt.Sprintf("/v1/initiatives/%s/run-outcomes", url.PathEscape(rctx.InitiativeID))
	return c.mutate(ctx, http.MethodPost, path, rctx, input, input.IdempotencyKey)
}

// RecordRetro records a run retrospective.
func (c *HTTPClient) RecordRetro(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input RetroInput,
) (string, error) {
	path := fmt.Sprintf("/v1/initiatives/%s/run-retros", url.PathEscape(rctx.InitiativeID))
	return c.mutate(ctx, http.MethodPost, path, rctx, input, input.IdempotencyKey)
}

// UpdateEntity performs a plain per-entity update.
func (c *HTTPClient) UpdateEntity(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input EntityUpdateInput,
) (string, error) {
	path := fmt.Sprintf("/v1/initiatives/%s/entities/%s/%s",
		url.PathEscape(rctx.InitiativeID),
		url.PathEscape(input.EntityType),
		url.PathEscape(input.EntityID),
	)
	return c.mutate(ctx, http.MethodPatch, path, rctx, input, input.IdempotencyKey)
}

// Snapshot fetches a best-effort view of the remote initiative state.
func (c *HTTPClient) Snapshot(ctx context.Context, initiativeID string) (*Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUnavailable, err.Error())
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/v1/initiatives/%s/snapshot", c.baseURL, url.PathEscape(initiativeID)),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("building snapshot request: %w", err)
	}
	c.setHeaders(req, "", reportingDomain.ReportingContext{})

	resp, err := c.client.Do(req)
	if err != nil {
		c.tracker.set(ConnectionStateUnreachable)
		return nil, apperrors.Wrap(apperrors.ErrGatewayUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUnavailable, err.Error())
	}
	if err := c.classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot response: %w", err)
	}
	snapshot.FetchedAt = time.Now().UTC()
	return &snapshot, nil
}

// mutate executes a write call and returns the remote identifier.
func (c *HTTPClient) mutate(
	ctx context.Context,
	method, path string,
	rctx reportingDomain.ReportingContext,
	body any,
	idempotencyKey string,
) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperrors.Wrap(apperrors.ErrGatewayUnavailable, err.Error())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building %s request: %w", path, err)
	}
	c.setHeaders(req, idempotencyKey, rctx)

	resp, err := c.client.Do(req)
	if err != nil {
		c.tracker.set(ConnectionStateUnreachable)
		return "", apperrors.Wrap(apperrors.ErrGatewayUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrGatewayUnavailable, err.Error())
	}
	if err := c.classifyStatus(resp.StatusCode, respBody); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", path, err)
	}
	return result.ID, nil
}

// setHeaders applies authentication, identity and idempotency headers.
func (c *HTTPClient) setHeaders(req *http.Request, idempotencyKey string, rctx reportingDomain.ReportingContext) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if rctx.SourceClient != "" {
		req.Header.Set("X-Source-Client", string(rctx.SourceClient))
	}
	if ref, isCorrelation := rctx.EffectiveRunRef(); ref != "" {
		if isCorrelation {
			req.Header.Set("X-Correlation-ID", ref)
		} else {
			req.Header.Set("X-Run-ID", ref)
		}
	}
}

// classifyStatus maps HTTP statuses onto the domain error taxonomy and
// updates the connection tracker.
func (c *HTTPClient) classifyStatus(statusCode int, body []byte) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		c.tracker.set(ConnectionStateConnected)
		return nil

	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		c.tracker.set(ConnectionStateUnauthenticated)
		return apperrors.Wrap(apperrors.ErrUnauthorized, errorMessage(statusCode, body))

	case statusCode == http.StatusNotFound || statusCode == http.StatusUnprocessableEntity:
		// The remote side does not know the referenced entity (commonly a
		// locally generated run id). Replay converts this into a
		// correlation-based resubmission.
		c.tracker.set(ConnectionStateConnected)
		return apperrors.Wrap(apperrors.ErrUnknownEntity, errorMessage(statusCode, body))

	case statusCode >= 500 || statusCode == http.StatusTooManyRequests:
		c.tracker.set(ConnectionStateUnreachable)
		return apperrors.Wrap(apperrors.ErrGatewayUnavailable, errorMessage(statusCode, body))

	default:
		c.tracker.set(ConnectionStateConnected)
		return &StatusError{StatusCode: statusCode, Message: errorMessage(statusCode, body)}
	}
}

// errorMessage extracts the structured error message from a response body,
// falling back to the raw status code.
func errorMessage(statusCode int, body []byte) string {
	var structured struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		if structured.Message != "" {
			return structured.Message
		}
		if structured.Error != "" {
			return structured.Error
		}
	}
	return fmt.Sprintf("status %d", statusCode)
}
