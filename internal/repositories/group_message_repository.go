package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
)

const groupMessageColumns = `id, group_id, sender_id, content, tagged_user_ids, deleted, created_at`

// GroupMessageRepository defines persistence for group messages.
type GroupMessageRepository interface {
	Create(ctx context.Context, groupID int64, senderID, content string, taggedUserIDs []string) (models.GroupMessage, error)
	Get(ctx context.Context, messageID int64) (models.GroupMessage, error)
	List(ctx context.Context, groupID int64, offset, limit int) ([]models.GroupMessage, error)
	ListTagged(ctx context.Context, groupID int64, userID string, offset, limit int) ([]models.GroupMessage, int64, error)
	SoftDelete(ctx context.Context, messageID int64) (models.GroupMessage, error)
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

// Create persists a group message with its tagged user set.
func (r *GroupMessageRepo) Create(ctx context.Context, groupID int64, senderID, content string, taggedUserIDs []string) (models.GroupMessage, error) {
	if taggedUserIDs == nil {
		taggedUserIDs = []string{}
	}
	var msg models.GroupMessage
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO group_messages (group_id, sender_id, content, tagged_user_ids)
         VALUES ($1, $2, $3, $4) RETURNING `+groupMessageColumns,
		groupID, senderID, content, pq.Array(taggedUserIDs)).
		StructScan(&msg)
	return msg, err
}

// Get fetches a single group message.
func (r *GroupMessageRepo) Get(ctx context.Context, messageID int64) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+groupMessageColumns+` FROM group_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// List returns group messages ordered by creation time.
func (r *GroupMessageRepo) List(ctx context.Context, groupID int64, offset, limit int) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+groupMessageColumns+` FROM group_messages WHERE group_id=$1
         ORDER BY created_at ASC OFFSET $2 LIMIT $3`, groupID, offset, limit)
	return msgs, err
}

// ListTagged returns messages tagging the user, newest first, with the total.
func (r *GroupMessageRepo) ListTagged(ctx context.Context, groupID int64, userID string, offset, limit int) ([]models.GroupMessage, int64, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+groupMessageColumns+` FROM group_messages
         WHERE group_id=$1 AND $2 = ANY(tagged_user_ids)
         ORDER BY created_at DESC OFFSET $3 LIMIT $4`, groupID, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM group_messages WHERE group_id=$1 AND $2 = ANY(tagged_user_ids)`, groupID, userID)
	return msgs, total, err
}

// SoftDelete marks a group message deleted, keeping metadata.
func (r *GroupMessageRepo) SoftDelete(ctx context.Context, messageID int64) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.QueryRowxContext(ctx,
		`UPDATE group_messages SET deleted=TRUE WHERE id=$1 RETURNING `+groupMessageColumns, messageID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrMessageNotFound
	}
	return msg, err
}
