package service

import (
	"context"
	"fmt"
	"strings"

	"mailcleaner/internal/gmail"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

// Aggregates is the part of the aggregation engine the services use.
type Aggregates interface {
	RequestRefresh(ctx context.Context)
	CategoryStats(ctx context.Context) (map[model.Category]model.CategoryAggregate, error)
}

type messageService struct {
	repo       repository.MessageRepository
	mailbox    gmail.Mailbox
	aggregates Aggregates
	logger     *logger.Logger
}

func NewMessageService(
	repo repository.MessageRepository,
	mailbox gmail.Mailbox,
	aggregates Aggregates,
	logger *logger.Logger,
) MessageService {
	return &messageService{
		repo:       repo,
		mailbox:    mailbox,
		aggregates: aggregates,
		logger:     logger,
	}
}

func (s *messageService) List(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	return s.repo.Query(ctx, q)
}

func (s *messageService) ByCategory(ctx context.Context, previews int) (map[model.Category]*CategoryListing, error) {
	stats, err := s.aggregates.CategoryStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get category stats: %w", err)
	}

	result := make(map[model.Category]*CategoryListing, len(model.AllCategories))
	for _, c := range model.AllCategories {
		c := c
		listing := &CategoryListing{Messages: []*model.Message{}}
		if st, ok := stats[c]; ok {
			listing.Count = st.Count
			listing.Unread = st.Unread
		}
		if listing.Count > 0 && previews > 0 {
			msgs, err := s.repo.Query(ctx, model.MessageQuery{Category: &c, Limit: previews})
			if err != nil {
				return nil, fmt.Errorf("failed to list %s messages: %w", c, err)
			}
			listing.Messages = msgs
		}
		result[c] = listing
	}
	return result, nil
}

func (s *messageService) Delete(ctx context.Context, ids []string, permanent bool) (*DeleteResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no message ids provided", model.ErrInvalidArgument)
	}
	return s.deleteIDs(ctx, "", ids, permanent)
}

func (s *messageService) DeleteBySender(ctx context.Context, senderEmail string, permanent bool) (*DeleteResult, error) {
	senderEmail = strings.ToLower(strings.TrimSpace(senderEmail))
	if senderEmail == "" {
		return nil, fmt.Errorf("%w: sender_email required", model.ErrInvalidArgument)
	}
	msgs, err := s.repo.FindBySender(ctx, senderEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from %s: %w", senderEmail, err)
	}
	return s.deleteIDs(ctx, senderEmail, ids(msgs), permanent)
}

// DeleteByCategory refuses the protected categories.
func (s *messageService) DeleteByCategory(ctx context.Context, category string, permanent bool) (*DeleteResult, error) {
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("%w: category required", model.ErrInvalidArgument)
	}
	c, err := model.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	if c.BulkDeleteForbidden() {
		return nil, fmt.Errorf("%w: cannot bulk delete %s category", model.ErrInvalidArgument, c)
	}
	msgs, err := s.repo.FindByCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s messages: %w", c, err)
	}
	return s.deleteIDs(ctx, c.String(), ids(msgs), permanent)
}

func (s *messageService) deleteIDs(ctx context.Context, selector string, ids []string, permanent bool) (*DeleteResult, error) {
	result := &DeleteResult{Selector: selector, Total: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	ok, failed, err := s.mailbox.DeleteMessages(ctx, ids, permanent)
	if err != nil {
		return nil, fmt.Errorf("failed to delete messages: %w", err)
	}
	result.Succeeded = ok
	result.Failed = failed

	marked, err := s.repo.MarkDeleted(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages deleted: %w", err)
	}
	s.logger.Infof("deleted %d messages (%d failed at provider, %d marked locally)", ok, failed, marked)

	s.aggregates.RequestRefresh(ctx)
	return result, nil
}

func ids(msgs []*model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
