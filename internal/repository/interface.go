package repository

import (
	"context"
	"errors"

	"mailcleaner/internal/model"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// Fixed settings keys.
const (
	SettingDashboardCache  = "dashboard_cache"
	SettingSyncNewest      = "sync_newest_ts"
	SettingSyncOldest      = "sync_oldest_ts"
	SettingClassifierModel = "classifier_model"
)

// MessageRepository defines the interface for message data operations.
// Every listing excludes logically deleted messages.
type MessageRepository interface {
	Upsert(ctx context.Context, msg *model.Message) error
	UpsertBatch(ctx context.Context, msgs []*model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	Query(ctx context.Context, q model.MessageQuery) ([]*model.Message, error)
	FindBySender(ctx context.Context, senderEmail string) ([]*model.Message, error)
	FindByCategory(ctx context.Context, category model.Category) ([]*model.Message, error)
	MarkDeleted(ctx context.Context, ids []string) (int64, error)
	SetUserAction(ctx context.Context, id, action string) error
	SetSummary(ctx context.Context, id, summary string) error
	ClearAll(ctx context.Context, keepSettings ...string) error
}

// AggregateRepository runs the set-based rollup queries over active messages.
type AggregateRepository interface {
	RebuildSenderStats(ctx context.Context) (int, error)
	CountSenderStats(ctx context.Context) (int, error)
	ActiveTotals(ctx context.Context) (total int, unread int, err error)
	CategoryStats(ctx context.Context) ([]model.CategoryAggregate, error)
	TopSenders(ctx context.Context, limit int) ([]model.SenderAggregate, error)
	TopSendersByUnread(ctx context.Context, limit int) ([]model.SenderAggregate, error)
	SenderGroups(ctx context.Context, filter model.ReadFilter, limit, previews int) ([]*model.SenderGroup, error)
	SubscriptionCandidates(ctx context.Context, limit int) ([]*model.SubscriptionCandidate, error)
}

// SettingsRepository is a small key/value table.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// FeedbackRepository stores corrections and the training examples derived from them.
type FeedbackRepository interface {
	SaveFeedback(ctx context.Context, fb *model.Feedback, example model.TrainingExample) error
	TrainingExamples(ctx context.Context) ([]model.TrainingExample, error)
}

// UnsubscribeLogRepository records unsubscribe attempts.
type UnsubscribeLogRepository interface {
	LogUnsubscribe(ctx context.Context, attempt *model.UnsubscribeAttempt) error
	RecentUnsubscribes(ctx context.Context, limit int) ([]*model.UnsubscribeAttempt, error)
}
