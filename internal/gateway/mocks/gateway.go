// Package mocks provides testify mocks for the gateway interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/agentrelay/internal/gateway"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
)

// MockClient is a mock implementation of gateway.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) EmitActivity(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input gateway.ActivityInput,
) (string, error) {
	args := m.Called(ctx, rctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockClient) ApplyChangeset(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input gateway.ChangesetInput,
) (string, error) {
	args := m.Called(ctx, rctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockClient) RegisterArtifact(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input gateway.ArtifactInput,
) (string, error) {
	args := m.Called(ctx, rctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockClient) RecordOutcome(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input gateway.OutcomeInput,
) (string, error) {
	args := m.Called(ctx, rctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockClient) RecordRetro(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input gateway.RetroInput,
) (string, error) {
	args := m.Called(ctx, rctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockClient) UpdateEntity(
	ctx context.Context,
	rctx reportingDomain.ReportingContext,
	input gateway.EntityUpdateInput,
) (string, error) {
	args := m.Called(ctx, rctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockClient) Snapshot(ctx context.Context, initiativeID string) (*gateway.Snapshot, error) {
	args := m.Called(ctx, initiativeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Snapshot), args.Error(1)
}
