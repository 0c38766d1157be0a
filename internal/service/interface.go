package service

import (
	"context"

	"mailcleaner/internal/ai"
	"mailcleaner/internal/model"
)

// DeleteResult reports a bulk deletion against the mail provider.
type DeleteResult struct {
	Selector  string `json:"selector,omitempty"`
	Succeeded int    `json:"success"`
	Failed    int    `json:"failure"`
	Total     int    `json:"total"`
}

// CategoryListing is one category with its counts and a bounded preview.
type CategoryListing struct {
	Count    int              `json:"count"`
	Unread   int              `json:"unread"`
	Messages []*model.Message `json:"emails"`
}

type MessageService interface {
	List(ctx context.Context, q model.MessageQuery) ([]*model.Message, error)
	ByCategory(ctx context.Context, previews int) (map[model.Category]*CategoryListing, error)
	Delete(ctx context.Context, ids []string, permanent bool) (*DeleteResult, error)
	DeleteBySender(ctx context.Context, senderEmail string, permanent bool) (*DeleteResult, error)
	DeleteByCategory(ctx context.Context, category string, permanent bool) (*DeleteResult, error)
}

type FeedbackService interface {
	Submit(ctx context.Context, messageID, decision, correctCategory string) error
	Train(ctx context.Context) (int, error)
}

// SummaryService wraps the language model and falls back to heuristics
// whenever it is unavailable.
type SummaryService interface {
	SummarizeMessage(ctx context.Context, id string) (string, error)
	SummarizeSender(ctx context.Context, senderEmail string) (summary string, count int, err error)
	Review(ctx context.Context, id string) (*ai.Review, error)
	DeletionSuggestions(ctx context.Context, limit int) ([]*model.Message, error)
	Subscriptions(ctx context.Context, limit int, advise bool) ([]*model.SubscriptionCandidate, error)
}

// UnsubscribeResult is the outcome for one sender.
type UnsubscribeResult struct {
	SenderEmail string `json:"sender"`
	Success     bool   `json:"success"`
	Method      string `json:"method,omitempty"`
	Message     string `json:"message"`
}

type UnsubscribeService interface {
	Unsubscribe(ctx context.Context, messageID, senderEmail string) (*UnsubscribeResult, error)
	UnsubscribeSenders(ctx context.Context, senderEmails []string) ([]*UnsubscribeResult, error)
}
