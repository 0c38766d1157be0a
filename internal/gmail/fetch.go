package gmail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gmailv1 "google.golang.org/api/gmail/v1"

	"mailcleaner/internal/model"
)

const pageSize = 500

var metadataHeaders = []string{"From", "Subject", "Date", "List-Unsubscribe", "List-Unsubscribe-Post"}

// Fetch lists messages matching query and fetches their details page by page.
// Cancelling ctx stops the fetch between pages; the messages fetched so far are
// returned together with ErrStopped.
func (c *Client) Fetch(ctx context.Context, query string, maxCount int, progress func(fetched int)) ([]*model.Message, error) {
	var out []*model.Message
	pageToken := ""

	for maxCount <= 0 || len(out) < maxCount {
		if ctx.Err() != nil {
			return out, ErrStopped
		}

		size := int64(pageSize)
		if maxCount > 0 && maxCount-len(out) < pageSize {
			size = int64(maxCount - len(out))
		}

		call := c.svc.Users.Messages.List(user).MaxResults(size).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *gmailv1.ListMessagesResponse
		err := c.call(ctx, costList, func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ErrStopped
			}
			return out, fmt.Errorf("failed to list messages: %w", err)
		}

		ids := make([]string, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		page, err := c.fetchDetails(ctx, ids)
		out = append(out, page...)
		if progress != nil {
			progress(len(out))
		}
		if err != nil {
			return out, err
		}

		c.logger.Debugf("fetched page of %d messages (%d total)", len(page), len(out))

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return out, nil
}

type detailResult struct {
	index int
	msg   *model.Message
	err   error
}

// fetchDetails gets message metadata with a bounded worker pool, keeping the
// listing order.
func (c *Client) fetchDetails(ctx context.Context, ids []string) ([]*model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan detailResult, len(ids))

	workers := c.workers
	if workers > len(ids) {
		workers = len(ids)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				msg, err := c.getMessage(ctx, ids[idx])
				results <- detailResult{index: idx, msg: msg, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byIndex := make([]*model.Message, len(ids))
	var terminal error
	for r := range results {
		switch {
		case r.err == nil:
			byIndex[r.index] = r.msg
		case errors.Is(r.err, ErrRetriesExhausted):
			if terminal == nil {
				terminal = r.err
				cancel()
			}
		case errors.Is(r.err, context.Canceled), errors.Is(r.err, context.DeadlineExceeded):
			if terminal == nil {
				terminal = ErrStopped
			}
		default:
			c.logger.Warnf("skipping message %s: %v", ids[r.index], r.err)
		}
	}

	out := make([]*model.Message, 0, len(ids))
	for _, m := range byIndex {
		if m != nil {
			out = append(out, m)
		}
	}
	return out, terminal
}

func (c *Client) getMessage(ctx context.Context, id string) (*model.Message, error) {
	var raw *gmailv1.Message
	err := c.call(ctx, costRead, func() error {
		var err error
		raw, err = c.svc.Users.Messages.Get(user, id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return ParseMessage(raw), nil
}
