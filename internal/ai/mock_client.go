package ai

import (
	"context"

	"mailcleaner/internal/model"
)

// MockAIClient is a mock implementation of Client for testing. Unset funcs
// report the model as unavailable.
type MockAIClient struct {
	AvailableFunc          func(ctx context.Context) bool
	ClassifyEmailFunc      func(ctx context.Context, subject, sender, snippet string) (model.Category, float64, error)
	SummarizeEmailFunc     func(ctx context.Context, subject, sender, body string) (string, error)
	SummarizeSenderFunc    func(ctx context.Context, sender string, subjects []string) (string, error)
	ReviewEmailFunc        func(ctx context.Context, subject, sender, snippet string) (*Review, error)
	SuggestDeletionsFunc   func(ctx context.Context, msgs []*model.Message) ([]string, error)
	AdviseSubscriptionFunc func(ctx context.Context, c *model.SubscriptionCandidate) (string, error)
}

func NewMockAIClient() *MockAIClient {
	return &MockAIClient{}
}

func (m *MockAIClient) Available(ctx context.Context) bool {
	if m.AvailableFunc != nil {
		return m.AvailableFunc(ctx)
	}
	return false
}

func (m *MockAIClient) ClassifyEmail(ctx context.Context, subject, sender, snippet string) (model.Category, float64, error) {
	if m.ClassifyEmailFunc != nil {
		return m.ClassifyEmailFunc(ctx, subject, sender, snippet)
	}
	return model.CategoryUncertain, 0.3, nil
}

func (m *MockAIClient) SummarizeEmail(ctx context.Context, subject, sender, body string) (string, error) {
	if m.SummarizeEmailFunc != nil {
		return m.SummarizeEmailFunc(ctx, subject, sender, body)
	}
	return "", ErrEmptyResponse
}

func (m *MockAIClient) SummarizeSender(ctx context.Context, sender string, subjects []string) (string, error) {
	if m.SummarizeSenderFunc != nil {
		return m.SummarizeSenderFunc(ctx, sender, subjects)
	}
	return "", ErrEmptyResponse
}

func (m *MockAIClient) ReviewEmail(ctx context.Context, subject, sender, snippet string) (*Review, error) {
	if m.ReviewEmailFunc != nil {
		return m.ReviewEmailFunc(ctx, subject, sender, snippet)
	}
	return nil, ErrEmptyResponse
}

func (m *MockAIClient) SuggestDeletions(ctx context.Context, msgs []*model.Message) ([]string, error) {
	if m.SuggestDeletionsFunc != nil {
		return m.SuggestDeletionsFunc(ctx, msgs)
	}
	return nil, ErrEmptyResponse
}

func (m *MockAIClient) AdviseSubscription(ctx context.Context, c *model.SubscriptionCandidate) (string, error) {
	if m.AdviseSubscriptionFunc != nil {
		return m.AdviseSubscriptionFunc(ctx, c)
	}
	return "", ErrEmptyResponse
}
