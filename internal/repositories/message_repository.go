package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/apperr"
	"chat-backend/internal/models"
)

var ErrMessageNotFound = apperr.New(apperr.NotFound, "message not found")

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, status,
    edited, deleted, delivered_at, read_at, edited_at, deleted_at, created_at`

// MessageRepository defines persistence for private chat messages.
type MessageRepository interface {
	Create(ctx context.Context, conversationID int64, senderID, receiverID, content string) (models.Message, error)
	Get(ctx context.Context, messageID int64) (models.Message, error)
	ListForConversation(ctx context.Context, conversationID int64, offset, limit int) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID int64) (models.Message, error)
	MarkRead(ctx context.Context, messageID int64) (models.Message, error)
	MarkAllRead(ctx context.Context, conversationID int64, receiverID string) (int64, error)
	BulkMarkDelivered(ctx context.Context, receiverID string, messageIDs []int64) (int64, error)
	UpdateContent(ctx context.Context, messageID int64, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int64) (models.Message, error)
	UnreadCounts(ctx context.Context, receiverID string) ([]models.UnreadCount, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message in the sent state.
func (r *MessageRepo) Create(ctx context.Context, conversationID int64, senderID, receiverID, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, receiver_id, content, status)
         VALUES ($1, $2, $3, $4, 'sent') RETURNING `+messageColumns,
		conversationID, senderID, receiverID, content).
		StructScan(&msg)
	return msg, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForConversation returns messages ordered by creation time.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, offset, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1
         ORDER BY created_at ASC OFFSET $2 LIMIT $3`, conversationID, offset, limit)
	return msgs, err
}

// MarkDelivered transitions a sent message to delivered. The update is
// conditional on the current status so a delivered or read message is left
// untouched; the idempotent no-op path reselects and returns current state.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET status='delivered', delivered_at=NOW()
         WHERE id=$1 AND status='sent' RETURNING `+messageColumns, messageID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return r.Get(ctx, messageID)
	}
	return msg, err
}

// MarkRead transitions a message to read, back-filling delivered_at when the
// message never passed through delivered.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET status='read', read_at=NOW(), delivered_at=COALESCE(delivered_at, NOW())
         WHERE id=$1 AND status <> 'read' RETURNING `+messageColumns, messageID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return r.Get(ctx, messageID)
	}
	return msg, err
}

// MarkAllRead marks every unread message addressed to the receiver in the
// conversation and returns the count affected.
func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID int64, receiverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET status='read', read_at=NOW(), delivered_at=COALESCE(delivered_at, NOW())
         WHERE conversation_id=$1 AND receiver_id=$2 AND status <> 'read'`, conversationID, receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BulkMarkDelivered transitions every still-sent message in the set addressed
// to the receiver, skipping unknown ids and messages already past sent.
func (r *MessageRepo) BulkMarkDelivered(ctx context.Context, receiverID string, messageIDs []int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET status='delivered', delivered_at=NOW()
         WHERE id = ANY($1) AND receiver_id=$2 AND status='sent'`, pq.Array(messageIDs), receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateContent replaces the content and flags the message edited.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID int64, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$2, edited=TRUE, edited_at=NOW()
         WHERE id=$1 RETURNING `+messageColumns, messageID, content).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete marks the message deleted, keeping metadata.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET deleted=TRUE, deleted_at=NOW()
         WHERE id=$1 RETURNING `+messageColumns, messageID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UnreadCounts aggregates unread messages per conversation for a receiver.
func (r *MessageRepo) UnreadCounts(ctx context.Context, receiverID string) ([]models.UnreadCount, error) {
	var counts []models.UnreadCount
	err := r.db.SelectContext(ctx, &counts,
		`SELECT conversation_id, COUNT(*) AS count FROM messages
         WHERE receiver_id=$1 AND status <> 'read' AND deleted=FALSE
         GROUP BY conversation_id`, receiverID)
	return counts, err
}
