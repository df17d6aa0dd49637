package models

import "time"

// EventType tags the closed set of payloads pushed to connection handles.
type EventType string

const (
	EventMessage      EventType = "message"
	EventGroupMessage EventType = "group_message"
	EventDelivered    EventType = "delivered"
	EventRead         EventType = "read"
	EventEdited       EventType = "edited"
	EventDeleted      EventType = "deleted"
	EventGroup        EventType = "group_event"
	EventError        EventType = "error"
)

// Group event actions carried in Event.GroupAction.
const (
	GroupMemberAdded   = "member_added"
	GroupMemberRemoved = "member_removed"
	GroupMemberLeft    = "member_left"
	GroupAdminPromoted = "admin_promoted"
	GroupRenamed       = "renamed"
	GroupInviteSent    = "invite_sent"
	GroupTagged        = "tagged"
)

// Event is the server-to-client envelope broadcast over websocket
// connections and the cross-process channel.
type Event struct {
	Type           EventType     `json:"type"`
	Message        *Message      `json:"message,omitempty"`
	GroupMessage   *GroupMessage `json:"group_message,omitempty"`
	MessageID      int64         `json:"message_id,omitempty"`
	ConversationID int64         `json:"conversation_id,omitempty"`
	GroupID        int64         `json:"group_id,omitempty"`
	GroupAction    string        `json:"group_action,omitempty"`
	UserID         string        `json:"user_id,omitempty"`
	Content        string        `json:"content,omitempty"`
	Count          int64         `json:"count,omitempty"`
	At             *time.Time    `json:"at,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Client-to-server event types accepted by the websocket gateway.
const (
	ClientSend         = "send"
	ClientAckDelivered = "ack_delivered"
	ClientAckRead      = "ack_read"
	ClientEdit         = "edit"
	ClientDelete       = "delete"
	ClientMarkAllRead  = "mark_all_read"
)

// ClientEvent is the inbound envelope read from a websocket connection.
type ClientEvent struct {
	Type          string   `json:"type"`
	ReceiverID    string   `json:"receiver_id,omitempty"`
	RoomID        int64    `json:"room_id,omitempty"`
	GroupID       int64    `json:"group_id,omitempty"`
	MessageID     int64    `json:"message_id,omitempty"`
	Content       string   `json:"content,omitempty"`
	TaggedUserIDs []string `json:"tagged_user_ids,omitempty"`
}
