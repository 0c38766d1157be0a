package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailcleaner/internal/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClientWithOptions(context.Background(), 3, logger.NewWithWriter(io.Discard),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func detail(id, from string, unread bool) map[string]any {
	labels := []string{"INBOX"}
	if unread {
		labels = append(labels, "UNREAD")
	}
	return map[string]any{
		"id":           id,
		"threadId":     "t-" + id,
		"labelIds":     labels,
		"snippet":      "snippet " + id,
		"internalDate": "1700000000000",
		"payload": map[string]any{
			"headers": []map[string]string{
				{"name": "From", "value": from},
				{"name": "Subject", "value": "Subject " + id},
				{"name": "Date", "value": "Tue, 14 Nov 2023 22:13:20 +0000"},
				{"name": "List-Unsubscribe", "value": "<mailto:leave@shop.com?subject=stop>, <https://shop.com/u/1>"},
			},
		},
	}
}

func TestClient_FetchPaginates(t *testing.T) {
	var listCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&listCalls, 1)
		assert.Equal(t, "is:unread", r.URL.Query().Get("q"))
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, map[string]any{
				"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}},
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "m3"}}})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		writeJSON(w, detail(id, `"Big Shop" <Deals@Shop.com>`, id == "m2"))
	})

	c := newTestClient(t, mux)

	var progress []int
	msgs, err := c.Fetch(context.Background(), "is:unread", 0, func(n int) { progress = append(progress, n) })
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, int32(2), atomic.LoadInt32(&listCalls))
	assert.Equal(t, []int{2, 3}, progress)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})

	m := msgs[1]
	assert.Equal(t, "Big Shop", m.Sender)
	assert.Equal(t, "deals@shop.com", m.SenderEmail)
	assert.Equal(t, "t-m2", m.ThreadID)
	assert.False(t, m.IsRead)
	assert.True(t, msgs[0].IsRead)
	assert.Equal(t, "https://shop.com/u/1", m.UnsubscribeLink)
	assert.Equal(t, "leave@shop.com", m.UnsubscribeEmail)
	assert.Equal(t, "snippet m2", m.BodyPreview)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), m.Date)
}

func TestClient_FetchHonorsMaxCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
		writeJSON(w, map[string]any{
			"messages":      []map[string]string{{"id": "a"}, {"id": "b"}},
			"nextPageToken": "more",
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		writeJSON(w, detail(id, "a@b.com", false))
	})

	c := newTestClient(t, mux)
	msgs, err := c.Fetch(context.Background(), "", 2, nil)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestClient_FetchRetriesTransientErrors(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]any{})
	})

	c := newTestClient(t, mux)
	msgs, err := c.Fetch(context.Background(), "", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_FetchGivesUpAfterRetries(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := newTestClient(t, mux)
	_, err := c.Fetch(context.Background(), "", 10, nil)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_FetchDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	c := newTestClient(t, mux)
	_, err := c.Fetch(context.Background(), "", 10, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_FetchSkipsBrokenDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "ok"}, {"id": "gone"}}})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		if id == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, detail(id, "a@b.com", false))
	})

	c := newTestClient(t, mux)
	msgs, err := c.Fetch(context.Background(), "", 0, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ok", msgs[0].ID)
}

func TestClient_FetchStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"messages":      []map[string]string{{"id": "m1"}},
			"nextPageToken": "next",
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, detail("m1", "a@b.com", false))
	})

	c := newTestClient(t, mux)
	msgs, err := c.Fetch(ctx, "", 0, func(int) { cancel() })
	require.ErrorIs(t, err, ErrStopped)
	assert.Len(t, msgs, 1)
}

func TestClient_DeleteMessages(t *testing.T) {
	var modify gmailv1.BatchModifyMessagesRequest
	var deleted gmailv1.BatchDeleteMessagesRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/batchModify", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&modify))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/batchDelete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&deleted))
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, mux)

	ok, failed, err := c.DeleteMessages(context.Background(), []string{"a", "b"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"a", "b"}, modify.Ids)
	assert.Equal(t, []string{"TRASH"}, modify.AddLabelIds)
	assert.Equal(t, []string{"INBOX"}, modify.RemoveLabelIds)

	ok, _, err = c.DeleteMessages(context.Background(), []string{"c"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Equal(t, []string{"c"}, deleted.Ids)
}

func TestClient_DeleteMessagesCountsFailedChunks(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/batchModify", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ids := make([]string, 1500)
	for i := range ids {
		ids[i] = "id"
	}

	c := newTestClient(t, mux)
	ok, failed, err := c.DeleteMessages(context.Background(), ids, false)
	require.NoError(t, err)
	assert.Equal(t, 500, ok)
	assert.Equal(t, 1000, failed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_SendMail(t *testing.T) {
	var sent gmailv1.Message
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		writeJSON(w, map[string]any{"id": "sent-1"})
	})

	c := newTestClient(t, mux)
	require.NoError(t, c.SendMail(context.Background(), "leave@shop.com", "unsubscribe", "please remove me"))

	raw, err := base64.URLEncoding.DecodeString(sent.Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: leave@shop.com\r\n")
	assert.Contains(t, string(raw), "Subject: unsubscribe\r\n")
	assert.True(t, strings.HasSuffix(string(raw), "please remove me"))
}
