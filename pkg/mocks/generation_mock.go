package mocks

import (
	"context"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/llm"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/retrieval"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock implementation of llm.Generator interface.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)

	return args.String(0), args.Error(1)
}

// MockSearcher is a mock implementation of retrieval.Searcher interface.
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Hit, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]retrieval.Hit), args.Error(1)
}
