package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/apperr"
	"chat-backend/internal/models"
)

var (
	ErrInviteNotFound  = apperr.New(apperr.NotFound, "invite not found")
	ErrInviteResponded = apperr.New(apperr.Conflict, "invite already responded to")
)

const inviteColumns = `id, group_id, invited_user_id, invited_by, status, sent_at, responded_at`

// InviteRepository abstracts group invite persistence.
type InviteRepository interface {
	Create(ctx context.Context, groupID int64, invitedUserID, invitedBy string) (models.GroupInvite, error)
	Get(ctx context.Context, inviteID int64) (models.GroupInvite, error)
	HasPending(ctx context.Context, groupID int64, invitedUserID string) (bool, error)
	SetStatus(ctx context.Context, inviteID int64, status models.InviteStatus) (models.GroupInvite, error)
	ListForUser(ctx context.Context, userID string) ([]models.GroupInvite, error)
}

// InviteRepo is a sqlx implementation of InviteRepository.
type InviteRepo struct {
	db *sqlx.DB
}

// NewInviteRepo constructs an InviteRepo.
func NewInviteRepo(db *sqlx.DB) *InviteRepo {
	return &InviteRepo{db: db}
}

// Create persists a pending invite.
func (r *InviteRepo) Create(ctx context.Context, groupID int64, invitedUserID, invitedBy string) (models.GroupInvite, error) {
	var invite models.GroupInvite
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO group_invites (group_id, invited_user_id, invited_by, status)
         VALUES ($1, $2, $3, 'pending') RETURNING `+inviteColumns,
		groupID, invitedUserID, invitedBy).
		StructScan(&invite)
	return invite, err
}

// Get fetches a single invite.
func (r *InviteRepo) Get(ctx context.Context, inviteID int64) (models.GroupInvite, error) {
	var invite models.GroupInvite
	err := r.db.GetContext(ctx, &invite,
		`SELECT `+inviteColumns+` FROM group_invites WHERE id=$1`, inviteID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupInvite{}, ErrInviteNotFound
	}
	return invite, err
}

// HasPending reports whether a pending invite already exists for the user.
func (r *InviteRepo) HasPending(ctx context.Context, groupID int64, invitedUserID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM group_invites WHERE group_id=$1 AND invited_user_id=$2 AND status='pending')`,
		groupID, invitedUserID)
	return exists, err
}

// SetStatus transitions a pending invite to a terminal status. The update is
// conditional on status='pending', so a second response loses the race and
// surfaces as ErrInviteResponded.
func (r *InviteRepo) SetStatus(ctx context.Context, inviteID int64, status models.InviteStatus) (models.GroupInvite, error) {
	var invite models.GroupInvite
	err := r.db.QueryRowxContext(ctx,
		`UPDATE group_invites SET status=$2, responded_at=NOW()
         WHERE id=$1 AND status='pending' RETURNING `+inviteColumns, inviteID, string(status)).
		StructScan(&invite)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, inviteID); getErr != nil {
			return models.GroupInvite{}, getErr
		}
		return models.GroupInvite{}, ErrInviteResponded
	}
	return invite, err
}

// ListForUser returns invites addressed to the user, newest first.
func (r *InviteRepo) ListForUser(ctx context.Context, userID string) ([]models.GroupInvite, error) {
	var invites []models.GroupInvite
	err := r.db.SelectContext(ctx, &invites,
		`SELECT `+inviteColumns+` FROM group_invites WHERE invited_user_id=$1 ORDER BY sent_at DESC`, userID)
	return invites, err
}
