package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcleaner/internal/classifier"
	"mailcleaner/internal/gmail"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
	"mailcleaner/internal/repository/sqlstore"
)

var base = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeAggregates struct {
	refreshes  int32
	stats      map[model.Category]model.CategoryAggregate
	candidates []*model.SubscriptionCandidate
}

func (f *fakeAggregates) RequestRefresh(context.Context) {
	atomic.AddInt32(&f.refreshes, 1)
}

func (f *fakeAggregates) CategoryStats(context.Context) (map[model.Category]model.CategoryAggregate, error) {
	return f.stats, nil
}

func (f *fakeAggregates) SubscriptionCandidates(_ context.Context, limit int) ([]*model.SubscriptionCandidate, error) {
	if limit > 0 && limit < len(f.candidates) {
		return f.candidates[:limit], nil
	}
	return f.candidates, nil
}

func quiet() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), "", filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func put(t *testing.T, store *sqlstore.Store, id, sender string, hour int, cat model.Category) *model.Message {
	t.Helper()
	m := model.NewMessage(id, "", "", sender, "subject "+id, "snippet "+id, base.Add(time.Duration(hour)*time.Hour))
	m.SetCategory(cat, 0.8)
	require.NoError(t, store.Upsert(context.Background(), m))
	return m
}

func TestMessageService_DeleteValidation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	mailbox := gmail.NewMockMailbox()
	called := false
	mailbox.DeleteMessagesFunc = func(context.Context, []string, bool) (int, int, error) {
		called = true
		return 0, 0, nil
	}
	svc := NewMessageService(store, mailbox, &fakeAggregates{}, quiet())

	_, err := svc.Delete(ctx, nil, false)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = svc.DeleteBySender(ctx, "  ", false)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = svc.DeleteByCategory(ctx, "important", false)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = svc.DeleteByCategory(ctx, "uncertain", true)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = svc.DeleteByCategory(ctx, "bogus", false)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	assert.False(t, called)
}

func TestMessageService_DeleteBySenderMarksRows(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	put(t, store, "x1", "x@spam.io", 1, model.CategorySpam)
	put(t, store, "x2", "x@spam.io", 2, model.CategorySpam)
	put(t, store, "k1", "friend@home.net", 3, model.CategoryPersonal)

	var trashed []string
	mailbox := gmail.NewMockMailbox()
	mailbox.DeleteMessagesFunc = func(_ context.Context, ids []string, permanent bool) (int, int, error) {
		assert.False(t, permanent)
		trashed = ids
		return len(ids), 0, nil
	}
	aggs := &fakeAggregates{}
	svc := NewMessageService(store, mailbox, aggs, quiet())

	res, err := svc.DeleteBySender(ctx, "X@Spam.io", false)
	require.NoError(t, err)
	assert.Equal(t, "x@spam.io", res.Selector)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.ElementsMatch(t, []string{"x1", "x2"}, trashed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&aggs.refreshes))

	// Rows stay in storage but leave the active set
	remaining, err := store.FindBySender(ctx, "x@spam.io")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	raw, err := store.FindByID(ctx, "x1")
	require.NoError(t, err)
	assert.True(t, raw.Deleted())

	// Nothing left to delete for this sender
	res, err = svc.DeleteBySender(ctx, "x@spam.io", false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, int32(1), atomic.LoadInt32(&aggs.refreshes))
}

func TestMessageService_DeleteByCategory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	put(t, store, "a1", "ads@shop.com", 1, model.CategoryAds)
	put(t, store, "n1", "news@paper.com", 2, model.CategoryNewsletter)

	mailbox := gmail.NewMockMailbox()
	mailbox.DeleteMessagesFunc = func(_ context.Context, ids []string, _ bool) (int, int, error) {
		return 0, len(ids), nil
	}
	svc := NewMessageService(store, mailbox, &fakeAggregates{}, quiet())

	res, err := svc.DeleteByCategory(ctx, "ADS", true)
	require.NoError(t, err)
	assert.Equal(t, "ads", res.Selector)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Failed)

	left, err := store.Query(ctx, model.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "n1", left[0].ID)
}

func TestMessageService_DeleteProviderErrorLeavesRows(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	put(t, store, "a1", "ads@shop.com", 1, model.CategoryAds)

	mailbox := gmail.NewMockMailbox()
	mailbox.DeleteMessagesFunc = func(context.Context, []string, bool) (int, int, error) {
		return 0, 0, context.Canceled
	}
	svc := NewMessageService(store, mailbox, &fakeAggregates{}, quiet())

	_, err := svc.Delete(ctx, []string{"a1"}, false)
	require.ErrorIs(t, err, context.Canceled)

	m, err := store.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, m.Deleted())
}

func TestMessageService_ByCategory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	for i := 0; i < 4; i++ {
		put(t, store, fmt.Sprintf("n%d", i), "news@paper.com", i, model.CategoryNewsletter)
	}
	aggs := &fakeAggregates{stats: map[model.Category]model.CategoryAggregate{
		model.CategoryNewsletter: {Category: model.CategoryNewsletter, Count: 4, Unread: 4},
	}}
	svc := NewMessageService(store, gmail.NewMockMailbox(), aggs, quiet())

	listing, err := svc.ByCategory(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, listing, len(model.AllCategories))

	news := listing[model.CategoryNewsletter]
	assert.Equal(t, 4, news.Count)
	assert.Equal(t, 4, news.Unread)
	require.Len(t, news.Messages, 2)
	assert.Equal(t, "n3", news.Messages[0].ID)

	assert.Equal(t, 0, listing[model.CategorySpam].Count)
	assert.Empty(t, listing[model.CategorySpam].Messages)
}

func TestFeedbackService_Submit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	put(t, store, "m1", "boss@work.com", 1, model.CategoryUncertain)
	aggs := &fakeAggregates{}
	svc := NewFeedbackService(store, store, classifier.New(store, quiet()), aggs, quiet())

	// Validation
	assert.ErrorIs(t, svc.Submit(ctx, "", "keep", ""), model.ErrInvalidArgument)
	assert.ErrorIs(t, svc.Submit(ctx, "m1", "archive", ""), model.ErrInvalidArgument)
	assert.ErrorIs(t, svc.Submit(ctx, "m1", "keep", "weird"), model.ErrInvalidArgument)
	assert.ErrorIs(t, svc.Submit(ctx, "missing", "keep", ""), repository.ErrNotFound)

	// Keep with a corrected category
	require.NoError(t, svc.Submit(ctx, "m1", "keep", "important"))
	m, err := store.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.UserActionKeep, m.UserAction)
	assert.Equal(t, int32(0), atomic.LoadInt32(&aggs.refreshes))

	examples, err := store.TrainingExamples(ctx)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "important", examples[0].Label)
	assert.Equal(t, "boss@work.com", examples[0].SenderEmail)

	// Delete triggers a refresh
	require.NoError(t, svc.Submit(ctx, "m1", "delete", ""))
	assert.Equal(t, int32(1), atomic.LoadInt32(&aggs.refreshes))
}

func TestFeedbackService_Train(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cls := classifier.New(store, quiet())
	svc := NewFeedbackService(store, store, cls, &fakeAggregates{}, quiet())

	_, err := svc.Train(ctx)
	assert.ErrorIs(t, err, classifier.ErrNotEnoughData)

	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("m%d", i)
		put(t, store, id, "sender@list.com", i, model.CategoryUncertain)
		decision := "keep"
		if i%2 == 0 {
			decision = "delete"
		}
		require.NoError(t, svc.Submit(ctx, id, decision, ""))
	}

	n, err := svc.Train(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.True(t, cls.Trained())

	_, err = store.GetSetting(ctx, repository.SettingClassifierModel)
	assert.NoError(t, err)
}
