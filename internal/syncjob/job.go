package syncjob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailcleaner/internal/classifier"
	"mailcleaner/internal/gmail"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

// ErrSyncInProgress is returned when a fetch is requested while one runs.
var ErrSyncInProgress = errors.New("sync already in progress")

// Event types broadcast while a sync runs.
const (
	EventProgress = "sync_progress"
	EventDone     = "sync_done"
)

// Publisher receives progress events.
type Publisher interface {
	Broadcast(eventType string, data interface{})
}

// Refresher rebuilds the aggregates after new messages land.
type Refresher interface {
	RefreshAll(ctx context.Context) (*model.DashboardSnapshot, error)
}

// Job owns the background fetch and its state machine:
// idle -> fetching -> completed | stopped | error.
type Job struct {
	mailbox    gmail.Mailbox
	classifier *classifier.Classifier
	messages   repository.MessageRepository
	settings   repository.SettingsRepository
	refresher  Refresher
	events     Publisher
	logger     *logger.Logger
	maxFetch   int
	interval   time.Duration

	mu     sync.Mutex
	status model.SyncStatus
	cancel context.CancelFunc
	done   chan struct{}

	// lifecycle context; persistence uses it so a stopped fetch still saves
	// what it got
	ctx  context.Context
	stop context.CancelFunc
}

func New(
	mailbox gmail.Mailbox,
	cls *classifier.Classifier,
	messages repository.MessageRepository,
	settings repository.SettingsRepository,
	refresher Refresher,
	events Publisher,
	maxFetch int,
	interval time.Duration,
	logger *logger.Logger,
) *Job {
	ctx, stop := context.WithCancel(context.Background())
	return &Job{
		mailbox:    mailbox,
		classifier: cls,
		messages:   messages,
		settings:   settings,
		refresher:  refresher,
		events:     events,
		logger:     logger,
		maxFetch:   maxFetch,
		interval:   interval,
		status:     model.SyncStatus{State: model.SyncIdle},
		ctx:        ctx,
		stop:       stop,
	}
}

// Status returns a copy of the current state.
func (j *Job) Status() model.SyncStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Start launches a fetch in the background.
func (j *Job) Start(req model.SyncRequest) (model.SyncStatus, error) {
	switch req.Mode {
	case "":
		req.Mode = model.SyncModeFull
	case model.SyncModeFull, model.SyncModeNewer, model.SyncModeOlder:
	default:
		return model.SyncStatus{}, fmt.Errorf("%w: unknown sync mode %q", model.ErrInvalidArgument, req.Mode)
	}
	if req.Read == "" {
		req.Read = model.ReadFilterAll
	}
	if req.MaxEmails <= 0 || req.MaxEmails > j.maxFetch {
		req.MaxEmails = j.maxFetch
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Running() {
		return j.status, ErrSyncInProgress
	}
	if j.ctx.Err() != nil {
		return j.status, fmt.Errorf("sync job is shut down")
	}

	ctx, cancel := context.WithCancel(j.ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.status = model.SyncStatus{
		RunID:     uuid.New().String(),
		State:     model.SyncFetching,
		Mode:      req.Mode,
		Target:    req.MaxEmails,
		StartedAt: time.Now().UTC(),
	}

	go j.run(ctx, cancel, j.done, req)
	return j.status, nil
}

// Stop asks the running fetch to stop after the current page. It reports
// whether a fetch was running.
func (j *Job) Stop() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.Running() || j.cancel == nil {
		return false
	}
	j.cancel()
	return true
}

// Wait blocks until the current run, if any, has finished.
func (j *Job) Wait() {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Run starts a "newer" sync every interval until ctx is done. It returns
// immediately when no interval is configured.
func (j *Job) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}
	j.logger.Info("Starting periodic sync with interval:", j.interval.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.Start(model.SyncRequest{Mode: model.SyncModeNewer}); err != nil && !errors.Is(err, ErrSyncInProgress) {
				j.logger.Error("Periodic sync failed to start:", err)
			}
		case <-ctx.Done():
			j.logger.Info("Periodic sync stopped")
			return
		}
	}
}

// Close stops any running fetch and waits for it.
func (j *Job) Close() {
	j.stop()
	j.Wait()
}

func (j *Job) update(fn func(s *model.SyncStatus)) model.SyncStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.status)
	return j.status
}

func (j *Job) publish(eventType string, status model.SyncStatus) {
	if j.events != nil {
		j.events.Broadcast(eventType, status)
	}
}

func (j *Job) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, req model.SyncRequest) {
	defer close(done)
	defer cancel()

	state, runErr := j.sync(ctx, req)

	final := j.update(func(s *model.SyncStatus) {
		s.State = state
		s.FinishedAt = time.Now().UTC()
		if runErr != nil {
			s.Error = runErr.Error()
		}
	})
	if runErr != nil {
		j.logger.Error("Sync", final.RunID, "ended in state", state, ":", runErr)
	} else {
		j.logger.Info("Sync", final.RunID, "ended in state", state, "saved", final.Saved, "messages")
	}
	j.publish(EventDone, final)
}

func (j *Job) sync(ctx context.Context, req model.SyncRequest) (model.SyncState, error) {
	if req.Fresh {
		if err := j.messages.ClearAll(j.ctx, repository.SettingClassifierModel); err != nil {
			return model.SyncError, fmt.Errorf("failed to clear store: %w", err)
		}
	}

	query, err := j.buildQuery(j.ctx, req)
	if err != nil {
		return model.SyncError, err
	}
	j.logger.Info("Fetching up to", req.MaxEmails, "messages with query:", query)

	msgs, fetchErr := j.mailbox.Fetch(ctx, query, req.MaxEmails, func(fetched int) {
		j.publish(EventProgress, j.update(func(s *model.SyncStatus) { s.Fetched = fetched }))
	})

	if err := j.persist(j.ctx, msgs); err != nil {
		return model.SyncError, err
	}

	switch {
	case fetchErr == nil:
		return model.SyncCompleted, nil
	case errors.Is(fetchErr, gmail.ErrStopped), errors.Is(fetchErr, context.Canceled):
		return model.SyncStopped, nil
	default:
		return model.SyncError, fetchErr
	}
}

// buildQuery combines the free-text query with the watermark for the mode
// and the read filter.
func (j *Job) buildQuery(ctx context.Context, req model.SyncRequest) (string, error) {
	var parts []string
	if q := strings.TrimSpace(req.Query); q != "" {
		parts = append(parts, q)
	}

	switch req.Mode {
	case model.SyncModeNewer:
		ts, err := j.watermark(ctx, repository.SettingSyncNewest)
		if err != nil {
			return "", err
		}
		if ts > 0 {
			parts = append(parts, "after:"+strconv.FormatInt(ts, 10))
		}
	case model.SyncModeOlder:
		ts, err := j.watermark(ctx, repository.SettingSyncOldest)
		if err != nil {
			return "", err
		}
		if ts > 0 {
			parts = append(parts, "before:"+strconv.FormatInt(ts, 10))
		}
	}

	switch req.Read {
	case model.ReadFilterUnread:
		parts = append(parts, "is:unread")
	case model.ReadFilterRead:
		parts = append(parts, "-is:unread")
	}
	return strings.Join(parts, " "), nil
}

func (j *Job) watermark(ctx context.Context, key string) (int64, error) {
	raw, err := j.settings.GetSetting(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		j.logger.Warn("ignoring malformed watermark", key, raw)
		return 0, nil
	}
	return ts, nil
}

// persist classifies, stores and aggregates a batch, then moves the
// watermarks outward.
func (j *Job) persist(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	j.classifier.ClassifyBatch(msgs)
	if err := j.messages.UpsertBatch(ctx, msgs); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	j.update(func(s *model.SyncStatus) { s.Saved = len(msgs) })

	newest, oldest, dated := dateRange(msgs)
	if dated {
		if err := j.moveWatermark(ctx, repository.SettingSyncNewest, newest, func(cur, ts int64) bool { return ts > cur }); err != nil {
			return err
		}
		if err := j.moveWatermark(ctx, repository.SettingSyncOldest, oldest, func(cur, ts int64) bool { return ts < cur }); err != nil {
			return err
		}
	}

	if _, err := j.refresher.RefreshAll(ctx); err != nil {
		return fmt.Errorf("failed to refresh aggregates: %w", err)
	}
	return nil
}

// dateRange returns the newest and oldest unix seconds in msgs. Messages
// without a date are ignored.
func dateRange(msgs []*model.Message) (newest, oldest int64, ok bool) {
	for _, m := range msgs {
		if m.Date.IsZero() {
			continue
		}
		ts := m.Date.Unix()
		if !ok || ts > newest {
			newest = ts
		}
		if !ok || ts < oldest {
			oldest = ts
		}
		ok = true
	}
	return newest, oldest, ok
}

func (j *Job) moveWatermark(ctx context.Context, key string, ts int64, better func(cur, ts int64) bool) error {
	cur, err := j.watermark(ctx, key)
	if err != nil {
		return err
	}
	if cur != 0 && !better(cur, ts) {
		return nil
	}
	if err := j.settings.SetSetting(ctx, key, strconv.FormatInt(ts, 10)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
