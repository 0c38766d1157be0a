package model

import "time"

// SenderAggregate is one row of the rebuilt sender_stats table.
type SenderAggregate struct {
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	TotalEmails    int       `json:"total_emails"`
	UnreadCount    int       `json:"unread_count"`
	LastReceived   time.Time `json:"last_received"`
	HasUnsubscribe bool      `json:"has_unsubscribe"`
}

// CategoryAggregate counts active messages in one category.
type CategoryAggregate struct {
	Category Category `json:"-"`
	Count    int      `json:"count"`
	Unread   int      `json:"unread"`
}

// LeaderboardEntry is a compact sender row used by the dashboard.
type LeaderboardEntry struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Unread int    `json:"unread"`
}

type Leaderboard struct {
	MostEmails []LeaderboardEntry `json:"most_emails"`
	MostUnread []LeaderboardEntry `json:"most_unread"`
}

// DashboardSnapshot is the cached dashboard document. It holds no timestamps so
// that refreshing an unchanged store reproduces identical bytes.
type DashboardSnapshot struct {
	TotalEmails  int                            `json:"total_emails"`
	TotalUnread  int                            `json:"total_unread"`
	TotalSenders int                            `json:"total_senders"`
	Deletable    int                            `json:"deletable"`
	WouldKeep    int                            `json:"would_keep"`
	Categories   map[Category]CategoryAggregate `json:"categories"`
	TopSenders   []LeaderboardEntry             `json:"top_senders"`
	Leaderboard  Leaderboard                    `json:"leaderboard"`
	Mood         string                         `json:"mood"`
}

// SenderGroup is a sender with its category mix and newest previews.
// Total and Unread cover every active message of the sender; MatchingCount is
// the number of messages that satisfied the read filter.
type SenderGroup struct {
	Sender         string           `json:"sender"`
	SenderEmail    string           `json:"sender_email"`
	Total          int              `json:"total"`
	Unread         int              `json:"unread"`
	MatchingCount  int              `json:"matching_count"`
	Categories     map[Category]int `json:"categories"`
	HasUnsubscribe bool             `json:"has_unsubscribe"`
	LastReceived   time.Time        `json:"last_received"`
	PreviewEmails  []*Message       `json:"preview_emails"`
}

// SubscriptionCandidate is a newsletter/promotions sender with the unsubscribe
// affordance of its most recent message.
type SubscriptionCandidate struct {
	SenderEmail      string    `json:"sender_email"`
	Sender           string    `json:"sender"`
	Count            int       `json:"count"`
	UnreadCount      int       `json:"unread_count"`
	LastReceived     time.Time `json:"last_received"`
	UnsubscribeLink  string    `json:"unsubscribe_link,omitempty"`
	UnsubscribeEmail string    `json:"unsubscribe_email,omitempty"`
	Recommendation   string    `json:"recommendation,omitempty"`
}
