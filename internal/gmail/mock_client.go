package gmail

import (
	"context"

	"mailcleaner/internal/model"
)

// MockMailbox is a Mailbox whose behavior is set per test.
type MockMailbox struct {
	FetchFunc          func(ctx context.Context, query string, maxCount int, progress func(int)) ([]*model.Message, error)
	DeleteMessagesFunc func(ctx context.Context, ids []string, permanent bool) (int, int, error)
	SendMailFunc       func(ctx context.Context, to, subject, body string) error
}

func NewMockMailbox() *MockMailbox {
	return &MockMailbox{}
}

func (m *MockMailbox) Fetch(ctx context.Context, query string, maxCount int, progress func(int)) ([]*model.Message, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, query, maxCount, progress)
	}
	return []*model.Message{}, nil
}

func (m *MockMailbox) DeleteMessages(ctx context.Context, ids []string, permanent bool) (int, int, error) {
	if m.DeleteMessagesFunc != nil {
		return m.DeleteMessagesFunc(ctx, ids, permanent)
	}
	return len(ids), 0, nil
}

func (m *MockMailbox) SendMail(ctx context.Context, to, subject, body string) error {
	if m.SendMailFunc != nil {
		return m.SendMailFunc(ctx, to, subject, body)
	}
	return nil
}
