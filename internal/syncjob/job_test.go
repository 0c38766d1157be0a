package syncjob

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcleaner/internal/aggregate"
	"mailcleaner/internal/classifier"
	"mailcleaner/internal/gmail"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
	"mailcleaner/internal/repository/sqlstore"
)

var base = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Broadcast(eventType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func messages(n int, offset time.Duration) []*model.Message {
	out := make([]*model.Message, n)
	for i := range out {
		id := fmt.Sprintf("m%d", i)
		out[i] = model.NewMessage(id, "", "Shop", "deals@shop.com", "flash sale buy now limited time", "", base.Add(offset+time.Duration(i)*time.Hour))
	}
	return out
}

func setup(t *testing.T, mailbox gmail.Mailbox) (*Job, *sqlstore.Store, *recorder) {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), "", filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.NewWithWriter(io.Discard)
	engine := aggregate.NewEngine(store, store, log)
	events := &recorder{}
	job := New(mailbox, classifier.New(nil, log), store, store, engine, events, 100, 0, log)
	t.Cleanup(job.Close)
	return job, store, events
}

func TestJob_FullSync(t *testing.T) {
	ctx := context.Background()
	mailbox := gmail.NewMockMailbox()
	var gotQuery string
	var gotMax int
	mailbox.FetchFunc = func(_ context.Context, query string, maxCount int, progress func(int)) ([]*model.Message, error) {
		gotQuery, gotMax = query, maxCount
		progress(3)
		return messages(3, 0), nil
	}
	job, store, events := setup(t, mailbox)

	status, err := job.Start(model.SyncRequest{Read: model.ReadFilterUnread, Query: "in:inbox", MaxEmails: 5000})
	require.NoError(t, err)
	assert.Equal(t, model.SyncFetching, status.State)
	assert.Equal(t, model.SyncModeFull, status.Mode)
	assert.NotEmpty(t, status.RunID)
	job.Wait()

	final := job.Status()
	assert.Equal(t, model.SyncCompleted, final.State)
	assert.Equal(t, 3, final.Fetched)
	assert.Equal(t, 3, final.Saved)
	assert.Equal(t, 100, final.Target)
	assert.Empty(t, final.Error)

	assert.Equal(t, "in:inbox is:unread", gotQuery)
	assert.Equal(t, 100, gotMax)
	assert.Equal(t, []string{EventProgress, EventDone}, events.types())

	stored, err := store.FindByID(ctx, "m0")
	require.NoError(t, err)
	require.NotNil(t, stored.Category)

	newest, err := store.GetSetting(ctx, repository.SettingSyncNewest)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(base.Add(2*time.Hour).Unix()), newest)
	oldest, err := store.GetSetting(ctx, repository.SettingSyncOldest)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(base.Unix()), oldest)

	_, err = store.GetSetting(ctx, repository.SettingDashboardCache)
	assert.NoError(t, err)
}

func TestJob_IncrementalModesUseWatermarks(t *testing.T) {
	ctx := context.Background()
	mailbox := gmail.NewMockMailbox()
	var queries []string
	mailbox.FetchFunc = func(_ context.Context, query string, _ int, _ func(int)) ([]*model.Message, error) {
		queries = append(queries, query)
		return nil, nil
	}
	job, store, _ := setup(t, mailbox)

	require.NoError(t, store.SetSetting(ctx, repository.SettingSyncNewest, "1700000000"))
	require.NoError(t, store.SetSetting(ctx, repository.SettingSyncOldest, "1600000000"))

	_, err := job.Start(model.SyncRequest{Mode: model.SyncModeNewer})
	require.NoError(t, err)
	job.Wait()
	_, err = job.Start(model.SyncRequest{Mode: model.SyncModeOlder, Read: model.ReadFilterRead})
	require.NoError(t, err)
	job.Wait()

	assert.Equal(t, []string{"after:1700000000", "before:1600000000 -is:unread"}, queries)
}

func TestJob_WatermarksOnlyMoveOutward(t *testing.T) {
	ctx := context.Background()
	mailbox := gmail.NewMockMailbox()
	mailbox.FetchFunc = func(context.Context, string, int, func(int)) ([]*model.Message, error) {
		return messages(2, 24*time.Hour), nil
	}
	job, store, _ := setup(t, mailbox)

	early := fmt.Sprint(base.Unix())
	late := fmt.Sprint(base.Add(100 * time.Hour).Unix())
	require.NoError(t, store.SetSetting(ctx, repository.SettingSyncNewest, late))
	require.NoError(t, store.SetSetting(ctx, repository.SettingSyncOldest, early))

	_, err := job.Start(model.SyncRequest{})
	require.NoError(t, err)
	job.Wait()

	newest, _ := store.GetSetting(ctx, repository.SettingSyncNewest)
	oldest, _ := store.GetSetting(ctx, repository.SettingSyncOldest)
	assert.Equal(t, late, newest)
	assert.Equal(t, early, oldest)
}

func TestJob_UndatedMessagesLeaveWatermarks(t *testing.T) {
	ctx := context.Background()
	mailbox := gmail.NewMockMailbox()
	mailbox.FetchFunc = func(context.Context, string, int, func(int)) ([]*model.Message, error) {
		msgs := messages(2, 0)
		undated := model.NewMessage("nodate", "", "Shop", "deals@shop.com", "flash sale", "", time.Time{})
		return append([]*model.Message{undated}, msgs...), nil
	}
	job, store, _ := setup(t, mailbox)

	_, err := job.Start(model.SyncRequest{})
	require.NoError(t, err)
	job.Wait()

	newest, err := store.GetSetting(ctx, repository.SettingSyncNewest)
	require.NoError(t, err)
	oldest, err := store.GetSetting(ctx, repository.SettingSyncOldest)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(base.Add(time.Hour).Unix()), newest)
	assert.Equal(t, fmt.Sprint(base.Unix()), oldest)
}

func TestDateRangeWithoutDates(t *testing.T) {
	_, _, ok := dateRange([]*model.Message{{ID: "a"}, {ID: "b"}})
	assert.False(t, ok)
}

func TestJob_StopKeepsPartialResults(t *testing.T) {
	mailbox := gmail.NewMockMailbox()
	started := make(chan struct{})
	mailbox.FetchFunc = func(ctx context.Context, _ string, _ int, progress func(int)) ([]*model.Message, error) {
		progress(1)
		close(started)
		<-ctx.Done()
		return messages(1, 0), gmail.ErrStopped
	}
	job, store, _ := setup(t, mailbox)

	_, err := job.Start(model.SyncRequest{})
	require.NoError(t, err)
	<-started

	_, err = job.Start(model.SyncRequest{})
	assert.ErrorIs(t, err, ErrSyncInProgress)

	assert.True(t, job.Stop())
	job.Wait()
	assert.False(t, job.Stop())

	status := job.Status()
	assert.Equal(t, model.SyncStopped, status.State)
	assert.Equal(t, 1, status.Saved)
	assert.False(t, status.FinishedAt.IsZero())

	_, err = store.FindByID(context.Background(), "m0")
	assert.NoError(t, err)
}

func TestJob_FetchFailure(t *testing.T) {
	mailbox := gmail.NewMockMailbox()
	mailbox.FetchFunc = func(context.Context, string, int, func(int)) ([]*model.Message, error) {
		return nil, fmt.Errorf("failed to list messages: %w", gmail.ErrRetriesExhausted)
	}
	job, _, _ := setup(t, mailbox)

	_, err := job.Start(model.SyncRequest{})
	require.NoError(t, err)
	job.Wait()

	status := job.Status()
	assert.Equal(t, model.SyncError, status.State)
	assert.Contains(t, status.Error, "retries exhausted")

	// A failed run does not block the next one
	_, err = job.Start(model.SyncRequest{})
	assert.NoError(t, err)
}

func TestJob_RejectsUnknownMode(t *testing.T) {
	job, _, _ := setup(t, gmail.NewMockMailbox())
	_, err := job.Start(model.SyncRequest{Mode: "sideways"})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Equal(t, model.SyncIdle, job.Status().State)
}

func TestJob_FreshClearsStore(t *testing.T) {
	ctx := context.Background()
	mailbox := gmail.NewMockMailbox()
	job, store, _ := setup(t, mailbox)

	old := model.NewMessage("stale", "", "", "old@x.com", "old", "", base)
	require.NoError(t, store.Upsert(ctx, old))
	require.NoError(t, store.SetSetting(ctx, repository.SettingSyncNewest, "1"))

	_, err := job.Start(model.SyncRequest{Fresh: true})
	require.NoError(t, err)
	job.Wait()

	_, err = store.FindByID(ctx, "stale")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.GetSetting(ctx, repository.SettingSyncNewest)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
