package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/apperr"
	"chat-backend/internal/models"
)

var ErrConversationNotFound = apperr.New(apperr.NotFound, "conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	ResolveOrCreate(ctx context.Context, userA, userB string) (models.Conversation, error)
	Get(ctx context.Context, conversationID int64) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int64, userID string) (bool, error)
	Touch(ctx context.Context, conversationID int64) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// ResolveOrCreate finds the conversation for a canonical user pair, creating
// it if absent. Concurrent callers resolving the same pair converge on a
// single row: the insert is ON CONFLICT DO NOTHING against the unique pair
// key, and losers fall through to the select.
func (r *ConversationRepo) ResolveOrCreate(ctx context.Context, userA, userB string) (models.Conversation, error) {
	a, b := models.CanonicalPair(userA, userB)

	var convo models.Conversation
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO conversations (user_a, user_b) VALUES ($1, $2)
         ON CONFLICT (user_a, user_b) DO NOTHING
         RETURNING id, user_a, user_b, created_at, updated_at`, a, b).
		StructScan(&convo)
	if err == nil {
		return convo, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	// Conflict: another caller won the insert.
	err = r.db.GetContext(ctx, &convo,
		`SELECT id, user_a, user_b, created_at, updated_at FROM conversations WHERE user_a=$1 AND user_b=$2`, a, b)
	return convo, err
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var convo models.Conversation
	err := r.db.GetContext(ctx, &convo,
		`SELECT id, user_a, user_b, created_at, updated_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return convo, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convos []models.Conversation
	err := r.db.SelectContext(ctx, &convos,
		`SELECT id, user_a, user_b, created_at, updated_at FROM conversations
         WHERE user_a=$1 OR user_b=$1 ORDER BY updated_at DESC`, userID)
	return convos, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int64, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (user_a=$2 OR user_b=$2))`, conversationID, userID)
	return exists, err
}

// Touch bumps the conversation's activity timestamp.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, conversationID)
	return err
}
