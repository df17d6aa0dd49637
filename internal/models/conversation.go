package models

import "time"

// Conversation is a private 1:1 messaging context between exactly two users.
// The participant pair is canonical: UserA sorts lexicographically before
// UserB, so (A,B) and (B,A) resolve to the same row.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	UserA     string    `db:"user_a" json:"user_a"`
	UserB     string    `db:"user_b" json:"user_b"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CanonicalPair orders two user identifiers into the form stored for a
// conversation.
func CanonicalPair(userA, userB string) (string, string) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

// PeerOf returns the other participant of the conversation.
func (c Conversation) PeerOf(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}
