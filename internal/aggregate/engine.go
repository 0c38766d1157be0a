package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

const (
	topSendersLimit  = 10
	leaderboardLimit = 5
	previewLimit     = 5
	maxGroupLimit    = 500
)

// Engine owns every derived view of the message store. Refreshes are
// serialized so the aggregate tables have a single writer.
type Engine struct {
	repo     repository.AggregateRepository
	settings repository.SettingsRepository
	logger   *logger.Logger

	refreshMu sync.Mutex
	debouncer *Debouncer
}

func NewEngine(repo repository.AggregateRepository, settings repository.SettingsRepository, log *logger.Logger) *Engine {
	return &Engine{repo: repo, settings: settings, logger: log}
}

// StartDebounce enables RequestRefresh. Requests arriving within delay of
// each other collapse into one RefreshAll.
func (e *Engine) StartDebounce(ctx context.Context, delay time.Duration) {
	e.debouncer = NewDebouncer(ctx, delay, func(ctx context.Context) {
		if _, err := e.RefreshAll(ctx); err != nil {
			e.logger.Error("debounced refresh failed:", err)
		}
	})
}

// RequestRefresh schedules a debounced refresh, or refreshes synchronously
// when debouncing was never started.
func (e *Engine) RequestRefresh(ctx context.Context) {
	if e.debouncer != nil {
		e.debouncer.Trigger()
		return
	}
	if _, err := e.RefreshAll(ctx); err != nil {
		e.logger.Error("refresh failed:", err)
	}
}

// Close waits for an in-flight debounced refresh.
func (e *Engine) Close() {
	if e.debouncer != nil {
		e.debouncer.Close()
	}
}

func (e *Engine) RefreshSenderAggregates(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	return e.refreshSenders(ctx)
}

func (e *Engine) refreshSenders(ctx context.Context) error {
	start := time.Now()
	n, err := e.repo.RebuildSenderStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh sender aggregates: %w", err)
	}
	e.logger.Debugf("rebuilt %d sender aggregates in %s", n, time.Since(start))
	return nil
}

func (e *Engine) RefreshDashboardSnapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	return e.refreshDashboard(ctx)
}

// refreshDashboard computes the full snapshot before writing the cache, so a
// failed query leaves the previous snapshot in place.
func (e *Engine) refreshDashboard(ctx context.Context) (*model.DashboardSnapshot, error) {
	snap, err := e.computeSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dashboard: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dashboard: %w", err)
	}
	if err := e.settings.SetSetting(ctx, repository.SettingDashboardCache, string(raw)); err != nil {
		return nil, fmt.Errorf("failed to store dashboard: %w", err)
	}
	return snap, nil
}

// RefreshAll rebuilds sender aggregates and then the dashboard snapshot.
func (e *Engine) RefreshAll(ctx context.Context) (*model.DashboardSnapshot, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	if err := e.refreshSenders(ctx); err != nil {
		return nil, err
	}
	return e.refreshDashboard(ctx)
}

func (e *Engine) computeSnapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	total, unread, err := e.repo.ActiveTotals(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := e.CategoryStats(ctx)
	if err != nil {
		return nil, err
	}
	senders, err := e.repo.CountSenderStats(ctx)
	if err != nil {
		return nil, err
	}
	top, err := e.repo.TopSenders(ctx, topSendersLimit)
	if err != nil {
		return nil, err
	}
	byUnread, err := e.repo.TopSendersByUnread(ctx, leaderboardLimit)
	if err != nil {
		return nil, err
	}

	deletable := 0
	for c, agg := range categories {
		if !c.Kept() {
			deletable += agg.Count
		}
	}
	byVolume := top
	if len(byVolume) > leaderboardLimit {
		byVolume = byVolume[:leaderboardLimit]
	}

	return &model.DashboardSnapshot{
		TotalEmails:  total,
		TotalUnread:  unread,
		TotalSenders: senders,
		Deletable:    deletable,
		WouldKeep:    total - deletable,
		Categories:   categories,
		TopSenders:   entries(top),
		Leaderboard: model.Leaderboard{
			MostEmails: entries(byVolume),
			MostUnread: entries(byUnread),
		},
		Mood: Mood(total, categories),
	}, nil
}

func entries(aggs []model.SenderAggregate) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, model.LeaderboardEntry{
			Email:  a.Email,
			Name:   a.Name,
			Count:  a.TotalEmails,
			Unread: a.UnreadCount,
		})
	}
	return out
}

// Dashboard serves the cached snapshot. A missing or unreadable cache, or a
// cache alongside an empty sender table, triggers a synchronous full refresh.
func (e *Engine) Dashboard(ctx context.Context) (*model.DashboardSnapshot, error) {
	raw, err := e.settings.GetSetting(ctx, repository.SettingDashboardCache)
	if errors.Is(err, repository.ErrNotFound) {
		return e.RefreshAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	var snap model.DashboardSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		e.logger.Warn("dashboard cache unreadable, refreshing:", err)
		return e.RefreshAll(ctx)
	}
	if snap.TotalEmails == 0 {
		return &snap, nil
	}

	senders, err := e.repo.CountSenderStats(ctx)
	if err != nil {
		return nil, err
	}
	if senders == 0 {
		e.logger.Warn("dashboard cache present but sender aggregates empty, refreshing")
		return e.RefreshAll(ctx)
	}
	return &snap, nil
}

// CategoryStats groups active messages by category.
func (e *Engine) CategoryStats(ctx context.Context) (map[model.Category]model.CategoryAggregate, error) {
	stats, err := e.repo.CategoryStats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[model.Category]model.CategoryAggregate, len(stats))
	for _, s := range stats {
		out[s.Category] = s
	}
	return out, nil
}

func (e *Engine) SenderStats(ctx context.Context, limit int) ([]model.SenderAggregate, error) {
	return e.repo.TopSenders(ctx, limit)
}

func (e *Engine) GroupedBySender(ctx context.Context, filter model.ReadFilter, limit int) ([]*model.SenderGroup, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", model.ErrInvalidArgument)
	}
	if limit > maxGroupLimit {
		limit = maxGroupLimit
	}
	return e.repo.SenderGroups(ctx, filter, limit, previewLimit)
}

func (e *Engine) SubscriptionCandidates(ctx context.Context, limit int) ([]*model.SubscriptionCandidate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", model.ErrInvalidArgument)
	}
	return e.repo.SubscriptionCandidates(ctx, limit)
}
