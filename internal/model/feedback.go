package model

import (
	"time"

	"github.com/google/uuid"
)

// TrainingExample is an append-only labelled sample for the text classifier.
type TrainingExample struct {
	SenderEmail string `json:"sender_email" db:"sender_email"`
	Subject     string `json:"subject" db:"subject"`
	Snippet     string `json:"snippet" db:"snippet"`
	Label       string `json:"label" db:"label"`
}

// Feedback is a user's correction of a classified message.
type Feedback struct {
	ID               string    `json:"id"`
	MessageID        string    `json:"message_id"`
	SenderEmail      string    `json:"sender_email"`
	Subject          string    `json:"subject"`
	OriginalCategory string    `json:"original_category"`
	Decision         string    `json:"decision"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewFeedback(msg *Message, decision string) *Feedback {
	original := "unknown"
	if msg.Category != nil {
		original = msg.Category.String()
	}
	return &Feedback{
		ID:               uuid.New().String(),
		MessageID:        msg.ID,
		SenderEmail:      msg.SenderEmail,
		Subject:          msg.Subject,
		OriginalCategory: original,
		Decision:         decision,
		CreatedAt:        time.Now(),
	}
}

// UnsubscribeAttempt is a row of the unsubscribe log.
type UnsubscribeAttempt struct {
	MessageID    string    `json:"message_id"`
	SenderEmail  string    `json:"sender_email"`
	Method       string    `json:"method"`
	Target       string    `json:"target"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
