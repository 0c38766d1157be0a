package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mailcleaner/internal/ai"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

const (
	Keep        = "KEEP"
	Unsubscribe = "UNSUBSCRIBE"

	deletionCandidates = 50
	senderSubjects     = 10
)

// CandidateSource lists subscription candidates.
type CandidateSource interface {
	SubscriptionCandidates(ctx context.Context, limit int) ([]*model.SubscriptionCandidate, error)
}

type summaryService struct {
	messages   repository.MessageRepository
	candidates CandidateSource
	aiClient   ai.Client
	limiter    *rate.Limiter
	cache      *summaryCache
	logger     *logger.Logger
}

// NewSummaryService allows perMinute model calls per minute and caches
// summaries for ttl.
func NewSummaryService(
	messages repository.MessageRepository,
	candidates CandidateSource,
	aiClient ai.Client,
	perMinute int,
	ttl time.Duration,
	logger *logger.Logger,
) SummaryService {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &summaryService{
		messages:   messages,
		candidates: candidates,
		aiClient:   aiClient,
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute),
		cache:      newSummaryCache(ttl),
		logger:     logger,
	}
}

func (s *summaryService) SummarizeMessage(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: email_id required", model.ErrInvalidArgument)
	}
	msg, err := s.messages.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get message %s: %w", id, err)
	}

	summary := s.messageSummary(ctx, msg)
	if err := s.messages.SetSummary(ctx, id, summary); err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}
	return summary, nil
}

func (s *summaryService) messageSummary(ctx context.Context, msg *model.Message) string {
	if !s.aiClient.Available(ctx) {
		return fallbackSummary(msg)
	}

	text := fmt.Sprintf("From: %s\nSubject: %s\n\n%s", msg.Sender, msg.Subject, msg.BodyPreview)
	if cached, ok := s.cache.get(text); ok {
		return cached
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fallbackSummary(msg)
	}
	summary, err := s.aiClient.SummarizeEmail(ctx, msg.Subject, msg.Sender, msg.BodyPreview)
	if err != nil {
		s.logger.Warn("summary failed, using fallback:", err)
		return fallbackSummary(msg)
	}
	s.cache.set(text, summary)
	return summary
}

func fallbackSummary(msg *model.Message) string {
	subject := msg.Subject
	if subject == "" {
		subject = "(No subject)"
	}
	preview := []rune(msg.Snippet)
	if len(preview) > 100 {
		preview = preview[:100]
	}
	text := string(preview)
	if len(preview) > 80 {
		text = string(preview[:80]) + "..."
	}
	return subject + " - " + text
}

func (s *summaryService) SummarizeSender(ctx context.Context, senderEmail string) (string, int, error) {
	senderEmail = strings.ToLower(strings.TrimSpace(senderEmail))
	if senderEmail == "" {
		return "", 0, fmt.Errorf("%w: sender_email required", model.ErrInvalidArgument)
	}
	msgs, err := s.messages.FindBySender(ctx, senderEmail)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get messages from %s: %w", senderEmail, err)
	}
	if len(msgs) == 0 {
		return "", 0, fmt.Errorf("no emails from %s: %w", senderEmail, repository.ErrNotFound)
	}

	name := msgs[0].Sender
	if !s.aiClient.Available(ctx) {
		return fmt.Sprintf("%d emails from %s", len(msgs), name), len(msgs), nil
	}

	subjects := make([]string, 0, senderSubjects)
	for i := 0; i < len(msgs) && i < senderSubjects; i++ {
		subjects = append(subjects, msgs[i].Subject)
	}

	key := fmt.Sprintf("sender:%s:%d", senderEmail, len(msgs))
	if cached, ok := s.cache.get(key); ok {
		return cached, len(msgs), nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}
	summary, err := s.aiClient.SummarizeSender(ctx, name, subjects)
	if err != nil {
		s.logger.Warn("sender summary failed, using fallback:", err)
		topics := subjects
		if len(topics) > 3 {
			topics = topics[:3]
		}
		return fmt.Sprintf("%d emails - topics: %s", len(msgs), strings.Join(topics, ", ")), len(msgs), nil
	}
	s.cache.set(key, summary)
	return summary, len(msgs), nil
}

func (s *summaryService) Review(ctx context.Context, id string) (*ai.Review, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: email_id required", model.ErrInvalidArgument)
	}
	msg, err := s.messages.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	if s.aiClient.Available(ctx) && s.limiter.Wait(ctx) == nil {
		review, err := s.aiClient.ReviewEmail(ctx, msg.Subject, msg.Sender, msg.Snippet)
		if err == nil {
			return review, nil
		}
		s.logger.Warn("review failed, trying plain classification:", err)
		if s.limiter.Wait(ctx) == nil {
			return s.classifyReview(ctx, msg), nil
		}
	}
	return fallbackReview(msg), nil
}

// classifyReview asks only for a category when the structured review fails.
func (s *summaryService) classifyReview(ctx context.Context, msg *model.Message) *ai.Review {
	review := fallbackReview(msg)
	category, _, err := s.aiClient.ClassifyEmail(ctx, msg.Subject, msg.Sender, msg.Snippet)
	if err != nil {
		s.logger.Warn("classification failed, using fallback:", err)
		return review
	}
	if category.Valid() && category != model.CategoryUncertain {
		review.SuggestedCategory = category
		review.Reasoning = "Classified by model"
	}
	return review
}

func fallbackReview(msg *model.Message) *ai.Review {
	summary := []rune(msg.Snippet)
	if len(summary) > 100 {
		summary = summary[:100]
	}
	review := &ai.Review{
		SuggestedCategory: model.CategoryUncertain,
		Reasoning:         "Unable to analyze",
		Summary:           string(summary),
	}
	if review.Summary == "" {
		review.Summary = "No preview available"
	}
	return review
}

// DeletionSuggestions asks the model which of the most recent unprotected
// messages can go. Without the model, spam and ads are suggested.
func (s *summaryService) DeletionSuggestions(ctx context.Context, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	recent, err := s.messages.Query(ctx, model.MessageQuery{Limit: deletionCandidates})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	candidates := make([]*model.Message, 0, len(recent))
	for _, m := range recent {
		if !m.CategoryOr(model.CategoryUncertain).BulkDeleteForbidden() {
			candidates = append(candidates, m)
		}
	}

	picked := s.modelDeletions(ctx, candidates)
	if picked == nil {
		picked = make([]*model.Message, 0)
		for _, m := range candidates {
			switch m.CategoryOr(model.CategoryUncertain) {
			case model.CategorySpam, model.CategoryAds:
				picked = append(picked, m)
			}
		}
	}
	if len(picked) > limit {
		picked = picked[:limit]
	}
	return picked, nil
}

// modelDeletions returns nil when the model could not answer.
func (s *summaryService) modelDeletions(ctx context.Context, candidates []*model.Message) []*model.Message {
	if len(candidates) == 0 || !s.aiClient.Available(ctx) || s.limiter.Wait(ctx) != nil {
		return nil
	}
	ids, err := s.aiClient.SuggestDeletions(ctx, candidates)
	if err != nil {
		s.logger.Warn("deletion suggestions failed, using fallback:", err)
		return nil
	}
	chosen := make(map[string]bool, len(ids))
	for _, id := range ids {
		chosen[id] = true
	}
	picked := make([]*model.Message, 0, len(ids))
	for _, m := range candidates {
		if chosen[m.ID] {
			picked = append(picked, m)
		}
	}
	return picked
}

// Subscriptions lists candidates, optionally with a KEEP/UNSUBSCRIBE
// recommendation each.
func (s *summaryService) Subscriptions(ctx context.Context, limit int, advise bool) ([]*model.SubscriptionCandidate, error) {
	cands, err := s.candidates.SubscriptionCandidates(ctx, limit)
	if err != nil {
		return nil, err
	}
	if !advise {
		return cands, nil
	}

	useModel := s.aiClient.Available(ctx)
	for _, c := range cands {
		c.Recommendation = ""
		if useModel && s.limiter.Wait(ctx) == nil {
			if text, err := s.aiClient.AdviseSubscription(ctx, c); err == nil {
				c.Recommendation = parseAdvice(text)
			} else {
				s.logger.Warn("subscription advice failed for", c.SenderEmail, ":", err)
			}
		}
		if c.Recommendation == "" {
			c.Recommendation = heuristicAdvice(c)
		}
	}
	return cands, nil
}

func parseAdvice(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, Unsubscribe):
		return Unsubscribe
	case strings.Contains(upper, Keep):
		return Keep
	}
	return ""
}

func heuristicAdvice(c *model.SubscriptionCandidate) string {
	if c.Count > 0 && float64(c.UnreadCount)/float64(c.Count) > 0.5 {
		return Unsubscribe
	}
	return Keep
}
