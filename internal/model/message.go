package model

import (
	"strings"
	"time"
)

const (
	UserActionKeep   = "keep"
	UserActionDelete = "delete"
)

// Message is a single fetched email. Re-ingesting the same ID replaces the row.
type Message struct {
	ID                 string    `json:"id"`
	ThreadID           string    `json:"thread_id"`
	Sender             string    `json:"sender"`
	SenderEmail        string    `json:"sender_email"`
	Subject            string    `json:"subject"`
	Snippet            string    `json:"snippet"`
	BodyPreview        string    `json:"body_preview"`
	Date               time.Time `json:"date"`
	IsRead             bool      `json:"is_read"`
	Labels             []string  `json:"labels"`
	Category           *Category `json:"category"`
	CategoryConfidence float64   `json:"category_confidence"`
	AISummary          string    `json:"ai_summary,omitempty"`
	UnsubscribeLink    string    `json:"unsubscribe_link,omitempty"`
	UnsubscribeEmail   string    `json:"unsubscribe_email,omitempty"`
	UserAction         string    `json:"user_action,omitempty"`
}

func NewMessage(id, threadID, sender, senderEmail, subject, snippet string, date time.Time) *Message {
	if threadID == "" {
		threadID = id
	}
	addr := strings.ToLower(strings.TrimSpace(senderEmail))
	if sender == "" {
		sender = addr
	}
	return &Message{
		ID:          id,
		ThreadID:    threadID,
		Sender:      sender,
		SenderEmail: addr,
		Subject:     subject,
		Snippet:     snippet,
		BodyPreview: snippet,
		Date:        date,
		Labels:      []string{},
	}
}

// SetCategory assigns the classification result.
func (m *Message) SetCategory(c Category, confidence float64) {
	m.Category = &c
	m.CategoryConfidence = confidence
}

// CategoryOr returns the assigned category or def when unclassified.
func (m *Message) CategoryOr(def Category) Category {
	if m.Category == nil {
		return def
	}
	return *m.Category
}

func (m *Message) HasUnsubscribe() bool {
	return m.UnsubscribeLink != "" || m.UnsubscribeEmail != ""
}

func (m *Message) Deleted() bool {
	return m.UserAction == UserActionDelete
}
