package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mailcleaner/internal/model"
)

// SaveFeedback stores the correction and its training example together.
func (s *Store) SaveFeedback(ctx context.Context, fb *model.Feedback, example model.TrainingExample) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	created := toMillis(fb.CreatedAt)
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO user_feedback (id, email_id, sender_email, subject, original_category, user_decision, created_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		fb.ID, fb.MessageID, fb.SenderEmail, fb.Subject, fb.OriginalCategory, fb.Decision, created)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO ml_training_data (id, sender_email, subject, snippet, label, created_ms)
		VALUES (?, ?, ?, ?, ?, ?)`),
		uuid.New().String(), example.SenderEmail, example.Subject, example.Snippet, example.Label, created)
	if err != nil {
		return fmt.Errorf("insert training example: %w", err)
	}
	return tx.Commit()
}

func (s *Store) TrainingExamples(ctx context.Context) ([]model.TrainingExample, error) {
	var examples []model.TrainingExample
	err := s.db.SelectContext(ctx, &examples,
		`SELECT sender_email, subject, snippet, label FROM ml_training_data ORDER BY created_ms ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return examples, nil
}

func (s *Store) LogUnsubscribe(ctx context.Context, a *model.UnsubscribeAttempt) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO unsubscribe_log (id, email_id, sender_email, method, target, success, error_message, created_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.New().String(), a.MessageID, a.SenderEmail, a.Method, a.Target, boolToInt(a.Success), a.ErrorMessage, toMillis(created))
	return err
}

func (s *Store) RecentUnsubscribes(ctx context.Context, limit int) ([]*model.UnsubscribeAttempt, error) {
	var rows []struct {
		MessageID    string `db:"email_id"`
		SenderEmail  string `db:"sender_email"`
		Method       string `db:"method"`
		Target       string `db:"target"`
		Success      int    `db:"success"`
		ErrorMessage string `db:"error_message"`
		CreatedMs    int64  `db:"created_ms"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT email_id, sender_email, method, target, success, error_message, created_ms
		FROM unsubscribe_log ORDER BY created_ms DESC, id ASC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.UnsubscribeAttempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, &model.UnsubscribeAttempt{
			MessageID:    r.MessageID,
			SenderEmail:  r.SenderEmail,
			Method:       r.Method,
			Target:       r.Target,
			Success:      r.Success != 0,
			ErrorMessage: r.ErrorMessage,
			CreatedAt:    fromMillis(r.CreatedMs),
		})
	}
	return out, nil
}
