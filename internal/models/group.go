package models

import (
	"time"

	"github.com/lib/pq"
)

// GroupRole is the membership role inside a group.
type GroupRole string

const (
	RoleMember GroupRole = "member"
	RoleAdmin  GroupRole = "admin"
)

// Group is a named multi-user messaging context.
type Group struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GroupMember is one member entry of a group. Removal is soft: the row stays
// with Removed set, and re-adding the user revives it.
type GroupMember struct {
	GroupID  int64     `db:"group_id" json:"group_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Role     GroupRole `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
	Removed  bool      `db:"removed" json:"removed"`
}

// InviteStatus is the lifecycle of a group invite. Pending is the only
// non-terminal state.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRejected InviteStatus = "rejected"
)

// GroupInvite is an admin-issued offer of membership awaiting the invitee's
// response.
type GroupInvite struct {
	ID            int64        `db:"id" json:"id"`
	GroupID       int64        `db:"group_id" json:"group_id"`
	InvitedUserID string       `db:"invited_user_id" json:"invited_user_id"`
	InvitedBy     string       `db:"invited_by" json:"invited_by"`
	Status        InviteStatus `db:"status" json:"status"`
	SentAt        time.Time    `db:"sent_at" json:"sent_at"`
	RespondedAt   *time.Time   `db:"responded_at" json:"responded_at,omitempty"`
}

// GroupMessage is a message sent in a group, optionally tagging members.
type GroupMessage struct {
	ID            int64          `db:"id" json:"id"`
	GroupID       int64          `db:"group_id" json:"group_id"`
	SenderID      string         `db:"sender_id" json:"sender_id"`
	Content       string         `db:"content" json:"content"`
	TaggedUserIDs pq.StringArray `db:"tagged_user_ids" json:"tagged_user_ids,omitempty"`
	Deleted       bool           `db:"deleted" json:"deleted"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// View hides the content of a deleted group message.
func (m GroupMessage) View() GroupMessage {
	if m.Deleted {
		m.Content = ""
	}
	return m
}
