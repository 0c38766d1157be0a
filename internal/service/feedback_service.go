package service

import (
	"context"
	"fmt"
	"strings"

	"mailcleaner/internal/classifier"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

type feedbackService struct {
	messages   repository.MessageRepository
	feedback   repository.FeedbackRepository
	classifier *classifier.Classifier
	aggregates Aggregates
	logger     *logger.Logger
}

func NewFeedbackService(
	messages repository.MessageRepository,
	feedback repository.FeedbackRepository,
	cls *classifier.Classifier,
	aggregates Aggregates,
	logger *logger.Logger,
) FeedbackService {
	return &feedbackService{
		messages:   messages,
		feedback:   feedback,
		classifier: cls,
		aggregates: aggregates,
		logger:     logger,
	}
}

// Submit records a keep/delete decision. The training label is the corrected
// category when one is given, otherwise the decision itself.
func (s *feedbackService) Submit(ctx context.Context, messageID, decision, correctCategory string) error {
	if messageID == "" || decision == "" {
		return fmt.Errorf("%w: message id and decision required", model.ErrInvalidArgument)
	}
	decision = strings.ToLower(strings.TrimSpace(decision))
	if decision != model.UserActionKeep && decision != model.UserActionDelete {
		return fmt.Errorf("%w: unknown decision %q", model.ErrInvalidArgument, decision)
	}

	label := decision
	if strings.TrimSpace(correctCategory) != "" {
		c, err := model.ParseCategory(correctCategory)
		if err != nil {
			return err
		}
		label = c.String()
	}

	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	fb := model.NewFeedback(msg, label)
	example := model.TrainingExample{
		SenderEmail: msg.SenderEmail,
		Subject:     msg.Subject,
		Snippet:     msg.Snippet,
		Label:       label,
	}
	if err := s.feedback.SaveFeedback(ctx, fb, example); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	if err := s.messages.SetUserAction(ctx, messageID, decision); err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if decision == model.UserActionDelete {
		s.aggregates.RequestRefresh(ctx)
	}
	s.logger.Debugf("feedback %s recorded for %s", label, messageID)
	return nil
}

// Train refits the classifier from every stored training example.
func (s *feedbackService) Train(ctx context.Context) (int, error) {
	examples, err := s.feedback.TrainingExamples(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load training examples: %w", err)
	}
	return s.classifier.TrainFromExamples(ctx, examples)
}
