package models

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID          string          `json:"id" db:"id"`
	SenderID    *string         `json:"sender_id,omitempty" db:"sender_id"`
	SenderName  *string         `json:"sender_name,omitempty" db:"sender_name"`
	RecipientID string          `json:"recipient_id" db:"recipient_id"`
	Type        string          `json:"type" db:"type"`
	Title       string          `json:"title" db:"title"`
	Message     string          `json:"message" db:"message"`
	Payload     json.RawMessage `json:"payload,omitempty" db:"payload"`
	Read        bool            `json:"read" db:"is_read"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ReadAt      *time.Time      `json:"read_at,omitempty" db:"read_at"`
}

// Content is the caller-supplied part of a notification. Every recipient of a
// dispatch receives an identical copy.
type Content struct {
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type DispatchResult struct {
	RecipientCount  int      `json:"recipient_count"`
	NotificationIDs []string `json:"notification_ids"`
}
