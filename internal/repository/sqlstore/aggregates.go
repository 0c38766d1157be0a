package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"mailcleaner/internal/model"
)

const (
	unreadSum      = `SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END)`
	unsubscribeMax = `MAX(CASE WHEN unsubscribe_link <> '' OR unsubscribe_email <> '' THEN 1 ELSE 0 END)`

	// display name of each sender, taken from its newest active message
	latestSenderNameSQL = `
		SELECT sender_email, sender FROM (
			SELECT sender_email, sender,
				ROW_NUMBER() OVER (PARTITION BY sender_email ORDER BY date_ms DESC, id DESC) AS rn
			FROM emails WHERE ` + activeCondition + `
		) newest WHERE rn = 1`

	senderStatsColumns = `email, name, total_emails, unread_count, last_received_ms, has_unsubscribe`
)

type senderStatsRow struct {
	Email          string `db:"email"`
	Name           string `db:"name"`
	TotalEmails    int    `db:"total_emails"`
	UnreadCount    int    `db:"unread_count"`
	LastReceivedMs int64  `db:"last_received_ms"`
	HasUnsubscribe int    `db:"has_unsubscribe"`
}

func (r senderStatsRow) toModel() model.SenderAggregate {
	return model.SenderAggregate{
		Email:          r.Email,
		Name:           r.Name,
		TotalEmails:    r.TotalEmails,
		UnreadCount:    r.UnreadCount,
		LastReceived:   fromMillis(r.LastReceivedMs),
		HasUnsubscribe: r.HasUnsubscribe != 0,
	}
}

// RebuildSenderStats replaces the sender_stats table with one grouped pass
// over active messages. The delete and insert share a transaction so readers
// never observe a partially rebuilt table.
func (s *Store) RebuildSenderStats(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sender_stats`); err != nil {
		return 0, fmt.Errorf("clear sender_stats: %w", err)
	}
	insert := tx.Rebind(`
		INSERT INTO sender_stats (email, name, total_emails, unread_count, last_received_ms, has_unsubscribe, updated_ms)
		SELECT agg.sender_email, COALESCE(latest.sender, agg.sender_email), agg.total, agg.unread, agg.last_ms, agg.has_unsub, ?
		FROM (
			SELECT sender_email, COUNT(*) AS total, ` + unreadSum + ` AS unread,
				MAX(date_ms) AS last_ms, ` + unsubscribeMax + ` AS has_unsub
			FROM emails WHERE ` + activeCondition + `
			GROUP BY sender_email
		) agg
		LEFT JOIN (` + latestSenderNameSQL + `) latest ON latest.sender_email = agg.sender_email`)
	res, err := tx.ExecContext(ctx, insert, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("rebuild sender_stats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) CountSenderStats(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sender_stats`)
	return n, err
}

func (s *Store) ActiveTotals(ctx context.Context) (int, int, error) {
	var totals struct {
		Total  int `db:"total"`
		Unread int `db:"unread"`
	}
	query := `SELECT COUNT(*) AS total, COALESCE(` + unreadSum + `, 0) AS unread FROM emails WHERE ` + activeCondition
	if err := s.db.GetContext(ctx, &totals, query); err != nil {
		return 0, 0, err
	}
	return totals.Total, totals.Unread, nil
}

func (s *Store) CategoryStats(ctx context.Context) ([]model.CategoryAggregate, error) {
	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
		Unread   int    `db:"unread"`
	}
	query := `SELECT category, COUNT(*) AS count, ` + unreadSum + ` AS unread
		FROM emails WHERE ` + activeCondition + ` AND category IS NOT NULL
		GROUP BY category ORDER BY category`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	stats := make([]model.CategoryAggregate, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, model.CategoryAggregate{
			Category: model.Category(r.Category),
			Count:    r.Count,
			Unread:   r.Unread,
		})
	}
	return stats, nil
}

// TopSenders orders sender_stats by volume with the address as tie-break.
func (s *Store) TopSenders(ctx context.Context, limit int) ([]model.SenderAggregate, error) {
	return s.senderStats(ctx, `ORDER BY total_emails DESC, email ASC`, limit)
}

func (s *Store) TopSendersByUnread(ctx context.Context, limit int) ([]model.SenderAggregate, error) {
	return s.senderStats(ctx, `ORDER BY unread_count DESC, total_emails DESC, email ASC`, limit)
}

func (s *Store) senderStats(ctx context.Context, orderBy string, limit int) ([]model.SenderAggregate, error) {
	var rows []senderStatsRow
	query := s.db.Rebind(`SELECT ` + senderStatsColumns + ` FROM sender_stats ` + orderBy + ` LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}
	out := make([]model.SenderAggregate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func readFilterCondition(filter model.ReadFilter) string {
	switch filter {
	case model.ReadFilterRead:
		return "is_read = 1"
	case model.ReadFilterUnread:
		return "is_read = 0"
	default:
		return "1 = 1"
	}
}

// SenderGroups returns up to limit senders having at least one active message
// that matches filter, ordered by total active count. Each group carries at
// most previews of its newest matching messages.
func (s *Store) SenderGroups(ctx context.Context, filter model.ReadFilter, limit, previews int) ([]*model.SenderGroup, error) {
	match := readFilterCondition(filter)

	var heads []struct {
		SenderEmail string `db:"sender_email"`
		Sender      string `db:"sender"`
		Total       int    `db:"total"`
		Unread      int    `db:"unread"`
		Matching    int    `db:"matching"`
		LastMs      int64  `db:"last_ms"`
		HasUnsub    int    `db:"has_unsub"`
	}
	headQuery := s.db.Rebind(`
		SELECT agg.sender_email, COALESCE(latest.sender, agg.sender_email) AS sender,
			agg.total, agg.unread, agg.matching, agg.last_ms, agg.has_unsub
		FROM (
			SELECT sender_email, COUNT(*) AS total, ` + unreadSum + ` AS unread,
				SUM(CASE WHEN ` + match + ` THEN 1 ELSE 0 END) AS matching,
				MAX(date_ms) AS last_ms, ` + unsubscribeMax + ` AS has_unsub
			FROM emails WHERE ` + activeCondition + `
			GROUP BY sender_email
		) agg
		LEFT JOIN (` + latestSenderNameSQL + `) latest ON latest.sender_email = agg.sender_email
		WHERE agg.matching > 0
		ORDER BY agg.total DESC, agg.sender_email ASC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &heads, headQuery, limit); err != nil {
		return nil, fmt.Errorf("sender groups: %w", err)
	}
	if len(heads) == 0 {
		return []*model.SenderGroup{}, nil
	}

	groups := make([]*model.SenderGroup, 0, len(heads))
	byEmail := make(map[string]*model.SenderGroup, len(heads))
	emails := make([]string, 0, len(heads))
	for _, h := range heads {
		g := &model.SenderGroup{
			Sender:         h.Sender,
			SenderEmail:    h.SenderEmail,
			Total:          h.Total,
			Unread:         h.Unread,
			MatchingCount:  h.Matching,
			Categories:     map[model.Category]int{},
			HasUnsubscribe: h.HasUnsub != 0,
			LastReceived:   fromMillis(h.LastMs),
			PreviewEmails:  []*model.Message{},
		}
		groups = append(groups, g)
		byEmail[h.SenderEmail] = g
		emails = append(emails, h.SenderEmail)
	}

	var mix []struct {
		SenderEmail string `db:"sender_email"`
		Category    string `db:"category"`
		Count       int    `db:"count"`
	}
	query, args, err := sqlx.In(`SELECT sender_email, category, COUNT(*) AS count FROM emails
		WHERE `+activeCondition+` AND category IS NOT NULL AND sender_email IN (?)
		GROUP BY sender_email, category`, emails)
	if err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &mix, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sender categories: %w", err)
	}
	for _, m := range mix {
		if g, ok := byEmail[m.SenderEmail]; ok {
			g.Categories[model.Category(m.Category)] = m.Count
		}
	}

	if previews <= 0 {
		return groups, nil
	}
	query, args, err = sqlx.In(`SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`,
				ROW_NUMBER() OVER (PARTITION BY sender_email ORDER BY date_ms DESC, id ASC) AS rn
			FROM emails
			WHERE `+activeCondition+` AND `+match+` AND sender_email IN (?)
		) ranked
		WHERE rn <= ?
		ORDER BY sender_email ASC, date_ms DESC, id ASC`, emails, previews)
	if err != nil {
		return nil, err
	}
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sender previews: %w", err)
	}
	for _, r := range rows {
		if g, ok := byEmail[r.SenderEmail]; ok {
			g.PreviewEmails = append(g.PreviewEmails, r.toModel())
		}
	}
	return groups, nil
}

// SubscriptionCandidates lists newsletter and promotions senders with more
// than one active message. Unsubscribe details come from the newest message.
func (s *Store) SubscriptionCandidates(ctx context.Context, limit int) ([]*model.SubscriptionCandidate, error) {
	var rows []struct {
		SenderEmail      string `db:"sender_email"`
		Sender           string `db:"sender"`
		Count            int    `db:"cnt"`
		Unread           int    `db:"unread"`
		LastMs           int64  `db:"last_ms"`
		UnsubscribeLink  string `db:"unsubscribe_link"`
		UnsubscribeEmail string `db:"unsubscribe_email"`
	}
	query := s.db.Rebind(`
		SELECT c.sender_email, c.sender, c.cnt, c.unread, c.last_ms, c.unsubscribe_link, c.unsubscribe_email
		FROM (
			SELECT sender_email, sender, unsubscribe_link, unsubscribe_email, date_ms AS last_ms,
				COUNT(*) OVER (PARTITION BY sender_email) AS cnt,
				SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END) OVER (PARTITION BY sender_email) AS unread,
				ROW_NUMBER() OVER (PARTITION BY sender_email ORDER BY date_ms DESC, id DESC) AS rn
			FROM emails
			WHERE ` + activeCondition + ` AND category IN ('newsletter', 'promotions')
		) c
		WHERE c.rn = 1 AND c.cnt > 1
		ORDER BY c.cnt DESC, c.sender_email ASC
		LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("subscription candidates: %w", err)
	}
	out := make([]*model.SubscriptionCandidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, &model.SubscriptionCandidate{
			SenderEmail:      r.SenderEmail,
			Sender:           r.Sender,
			Count:            r.Count,
			UnreadCount:      r.Unread,
			LastReceived:     fromMillis(r.LastMs),
			UnsubscribeLink:  r.UnsubscribeLink,
			UnsubscribeEmail: r.UnsubscribeEmail,
		})
	}
	return out, nil
}
