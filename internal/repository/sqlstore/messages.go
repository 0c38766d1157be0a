package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

const (
	messageColumns = `id, thread_id, sender, sender_email, subject, snippet, body_preview, date_ms, is_read, labels,
		category, category_confidence, ai_summary, unsubscribe_link, unsubscribe_email, user_action`

	activeCondition = `user_action <> 'delete'`

	defaultQueryLimit = 500
	maxQueryLimit     = 1000
)

// Fetched fields are replaced on conflict. A stored user action or summary
// survives a refetch that does not carry one.
const upsertMessageSQL = `
	INSERT INTO emails (` + messageColumns + `, updated_ms)
	VALUES (:id, :thread_id, :sender, :sender_email, :subject, :snippet, :body_preview, :date_ms, :is_read, :labels,
		:category, :category_confidence, :ai_summary, :unsubscribe_link, :unsubscribe_email, :user_action, :updated_ms)
	ON CONFLICT (id) DO UPDATE SET
		thread_id = excluded.thread_id,
		sender = excluded.sender,
		sender_email = excluded.sender_email,
		subject = excluded.subject,
		snippet = excluded.snippet,
		body_preview = excluded.body_preview,
		date_ms = excluded.date_ms,
		is_read = excluded.is_read,
		labels = excluded.labels,
		category = excluded.category,
		category_confidence = excluded.category_confidence,
		ai_summary = CASE WHEN excluded.ai_summary <> '' THEN excluded.ai_summary ELSE emails.ai_summary END,
		unsubscribe_link = excluded.unsubscribe_link,
		unsubscribe_email = excluded.unsubscribe_email,
		user_action = CASE WHEN excluded.user_action <> '' THEN excluded.user_action ELSE emails.user_action END,
		updated_ms = excluded.updated_ms`

type messageRow struct {
	ID                 string         `db:"id"`
	ThreadID           string         `db:"thread_id"`
	Sender             string         `db:"sender"`
	SenderEmail        string         `db:"sender_email"`
	Subject            string         `db:"subject"`
	Snippet            string         `db:"snippet"`
	BodyPreview        string         `db:"body_preview"`
	DateMs             int64          `db:"date_ms"`
	IsRead             int            `db:"is_read"`
	Labels             string         `db:"labels"`
	Category           sql.NullString `db:"category"`
	CategoryConfidence float64        `db:"category_confidence"`
	AISummary          string         `db:"ai_summary"`
	UnsubscribeLink    string         `db:"unsubscribe_link"`
	UnsubscribeEmail   string         `db:"unsubscribe_email"`
	UserAction         string         `db:"user_action"`
	UpdatedMs          int64          `db:"updated_ms"`
}

func newMessageRow(m *model.Message, updatedMs int64) (messageRow, error) {
	labels := m.Labels
	if labels == nil {
		labels = []string{}
	}
	encoded, err := json.Marshal(labels)
	if err != nil {
		return messageRow{}, fmt.Errorf("encode labels: %w", err)
	}
	row := messageRow{
		ID:                 m.ID,
		ThreadID:           m.ThreadID,
		Sender:             m.Sender,
		SenderEmail:        m.SenderEmail,
		Subject:            m.Subject,
		Snippet:            m.Snippet,
		BodyPreview:        m.BodyPreview,
		DateMs:             toMillis(m.Date),
		IsRead:             boolToInt(m.IsRead),
		Labels:             string(encoded),
		CategoryConfidence: m.CategoryConfidence,
		AISummary:          m.AISummary,
		UnsubscribeLink:    m.UnsubscribeLink,
		UnsubscribeEmail:   m.UnsubscribeEmail,
		UserAction:         m.UserAction,
		UpdatedMs:          updatedMs,
	}
	if m.Category != nil {
		row.Category = sql.NullString{String: m.Category.String(), Valid: true}
	}
	return row, nil
}

func (r messageRow) toModel() *model.Message {
	m := &model.Message{
		ID:                 r.ID,
		ThreadID:           r.ThreadID,
		Sender:             r.Sender,
		SenderEmail:        r.SenderEmail,
		Subject:            r.Subject,
		Snippet:            r.Snippet,
		BodyPreview:        r.BodyPreview,
		Date:               fromMillis(r.DateMs),
		IsRead:             r.IsRead != 0,
		Labels:             []string{},
		CategoryConfidence: r.CategoryConfidence,
		AISummary:          r.AISummary,
		UnsubscribeLink:    r.UnsubscribeLink,
		UnsubscribeEmail:   r.UnsubscribeEmail,
		UserAction:         r.UserAction,
	}
	if r.Labels != "" {
		_ = json.Unmarshal([]byte(r.Labels), &m.Labels)
	}
	if r.Category.Valid {
		c := model.Category(r.Category.String)
		m.Category = &c
	}
	return m
}

func toModels(rows []messageRow) []*model.Message {
	msgs := make([]*model.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toModel())
	}
	return msgs
}

func (s *Store) Upsert(ctx context.Context, msg *model.Message) error {
	row, err := newMessageRow(msg, s.now().UnixMilli())
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertMessageSQL, row); err != nil {
		return fmt.Errorf("upsert message %s: %w", msg.ID, err)
	}
	return nil
}

// UpsertBatch writes all messages in one transaction.
func (s *Store) UpsertBatch(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertMessageSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UnixMilli()
	for _, msg := range msgs {
		row, err := newMessageRow(msg, now)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("upsert message %s: %w", msg.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var row messageRow
	query := s.db.Rebind(`SELECT ` + messageColumns + ` FROM emails WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

// Query lists active messages newest first.
func (s *Store) Query(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	var (
		where = []string{activeCondition}
		args  []interface{}
	)
	switch q.Read {
	case model.ReadFilterRead:
		where = append(where, "is_read = 1")
	case model.ReadFilterUnread:
		where = append(where, "is_read = 0")
	}
	if q.Category != nil {
		if !q.Category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", model.ErrInvalidArgument, *q.Category)
		}
		where = append(where, "category = ?")
		args = append(args, q.Category.String())
	}
	if q.Sender != "" {
		where = append(where, "sender_email = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Sender)))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := s.db.Rebind(`SELECT ` + messageColumns + ` FROM emails WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date_ms DESC, id ASC LIMIT ? OFFSET ?`)
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func (s *Store) FindBySender(ctx context.Context, senderEmail string) ([]*model.Message, error) {
	query := s.db.Rebind(`SELECT ` + messageColumns + ` FROM emails WHERE ` + activeCondition +
		` AND sender_email = ? ORDER BY date_ms DESC, id ASC`)
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, strings.ToLower(strings.TrimSpace(senderEmail))); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func (s *Store) FindByCategory(ctx context.Context, category model.Category) ([]*model.Message, error) {
	query := s.db.Rebind(`SELECT ` + messageColumns + ` FROM emails WHERE ` + activeCondition +
		` AND category = ? ORDER BY date_ms DESC, id ASC`)
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, category.String()); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// MarkDeleted sets the delete action on the given ids and reports how many
// active rows changed.
func (s *Store) MarkDeleted(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE emails SET user_action = ?, updated_ms = ? WHERE `+activeCondition+` AND id IN (?)`,
		model.UserActionDelete, s.now().UnixMilli(), ids)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("mark deleted: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) SetUserAction(ctx context.Context, id, action string) error {
	return s.updateOne(ctx, `UPDATE emails SET user_action = ?, updated_ms = ? WHERE id = ?`, action, s.now().UnixMilli(), id)
}

func (s *Store) SetSummary(ctx context.Context, id, summary string) error {
	return s.updateOne(ctx, `UPDATE emails SET ai_summary = ?, updated_ms = ? WHERE id = ?`, summary, s.now().UnixMilli(), id)
}

func (s *Store) updateOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ClearAll wipes messages, feedback, rollups and the unsubscribe log. Training
// examples and the listed settings keys are kept.
func (s *Store) ClearAll(ctx context.Context, keepSettings ...string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"emails", "user_feedback", "sender_stats", "unsubscribe_log"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if len(keepSettings) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings"); err != nil {
			return fmt.Errorf("clear settings: %w", err)
		}
	} else {
		query, args, err := sqlx.In(`DELETE FROM settings WHERE key NOT IN (?)`, keepSettings)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("clear settings: %w", err)
		}
	}
	return tx.Commit()
}
