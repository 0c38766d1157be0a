package gmail

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
)

const user = "me"

// Quota costs in Gmail API units.
const (
	quotaPerSecond = 150
	costRead       = 5
	costList       = 5
	costBatch      = 5
	costSend       = 100
)

var (
	// ErrRetriesExhausted is returned after the last retry of a transient failure.
	ErrRetriesExhausted = errors.New("gmail: retries exhausted")
	// ErrStopped is returned when a fetch is cancelled between pages.
	ErrStopped = errors.New("gmail: fetch stopped")
)

// Mailbox is what the rest of the application needs from the mail provider.
type Mailbox interface {
	Fetch(ctx context.Context, query string, maxCount int, progress func(fetched int)) ([]*model.Message, error)
	DeleteMessages(ctx context.Context, ids []string, permanent bool) (succeeded, failed int, err error)
	SendMail(ctx context.Context, to, subject, body string) error
}

// Client talks to the Gmail API with a shared quota limiter and retries.
type Client struct {
	svc        *gmailv1.Service
	limiter    *rate.Limiter
	maxRetries int
	workers    int
	logger     *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Gmail client from a static OAuth access token.
func NewClient(ctx context.Context, accessToken string, maxRetries int, log *logger.Logger) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(ctx, ts)
	return NewClientWithOptions(ctx, maxRetries, log, option.WithHTTPClient(httpClient))
}

// NewClientWithOptions builds a client from raw service options.
func NewClientWithOptions(ctx context.Context, maxRetries int, log *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Client{
		svc:        svc,
		limiter:    rate.NewLimiter(rate.Limit(quotaPerSecond), quotaPerSecond),
		maxRetries: maxRetries,
		workers:    10,
		logger:     log,
		sleep:      sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// call charges cost quota units and runs op, retrying transient failures
// with a wait of 2^attempt seconds plus up to one second of jitter.
func (c *Client) call(ctx context.Context, cost int, op func() error) error {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.WaitN(ctx, cost); err != nil {
			return err
		}
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return err
		}
		if attempt == c.maxRetries-1 {
			return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}
		wait := time.Duration(1<<attempt)*time.Second + time.Duration(rand.Float64()*float64(time.Second))
		c.logger.Warnf("gmail transient error (attempt %d/%d), retrying in %s: %v", attempt+1, c.maxRetries, wait, err)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return ErrRetriesExhausted
}

var (
	_ Mailbox = (*Client)(nil)
	_ Mailbox = (*MockMailbox)(nil)
)
