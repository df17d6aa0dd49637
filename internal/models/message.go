package models

import "time"

// MessageStatus is the delivery lifecycle stage of a message. The status is
// monotonic: sent -> delivered -> read, never backwards.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is a private chat message.
type Message struct {
	ID             int64         `db:"id" json:"id"`
	ConversationID int64         `db:"conversation_id" json:"conversation_id"`
	SenderID       string        `db:"sender_id" json:"sender_id"`
	ReceiverID     string        `db:"receiver_id" json:"receiver_id"`
	Content        string        `db:"content" json:"content"`
	Status         MessageStatus `db:"status" json:"status"`
	Edited         bool          `db:"edited" json:"edited"`
	Deleted        bool          `db:"deleted" json:"deleted"`
	DeliveredAt    *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt         *time.Time    `db:"read_at" json:"read_at,omitempty"`
	EditedAt       *time.Time    `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt      *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// View returns the message as exposed to readers: a deleted message keeps
// its metadata but its content is hidden.
func (m Message) View() Message {
	if m.Deleted {
		m.Content = ""
	}
	return m
}

// UnreadCount is the per-conversation unread aggregate for a receiver.
type UnreadCount struct {
	ConversationID int64 `db:"conversation_id" json:"conversation_id"`
	Count          int64 `db:"count" json:"count"`
}
