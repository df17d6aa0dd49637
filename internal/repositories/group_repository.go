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
	ErrGroupNotFound  = apperr.New(apperr.NotFound, "group not found")
	ErrMemberNotFound = apperr.New(apperr.NotFound, "member not found in group")
	ErrAlreadyMember  = apperr.New(apperr.Conflict, "user is already a member of the group")
	ErrGroupNameTaken = apperr.New(apperr.Conflict, "group name already exists")
	ErrLastAdmin      = apperr.New(apperr.Forbidden, "cannot leave as the only admin; promote another admin first")
)

// GroupRepository abstracts group and membership persistence.
type GroupRepository interface {
	Create(ctx context.Context, name, description, createdBy string, memberIDs []string) (models.Group, error)
	Get(ctx context.Context, groupID int64) (models.Group, error)
	Rename(ctx context.Context, groupID int64, name string) (models.Group, error)
	ListForUser(ctx context.Context, userID string) ([]models.Group, error)
	Members(ctx context.Context, groupID int64) ([]models.GroupMember, error)
	GetMember(ctx context.Context, groupID int64, userID string) (models.GroupMember, error)
	AddMember(ctx context.Context, groupID int64, userID string) error
	RemoveMember(ctx context.Context, groupID int64, userID string) error
	Promote(ctx context.Context, groupID int64, userID string) error
	Leave(ctx context.Context, groupID int64, userID string) error
	NameExists(ctx context.Context, name string) (bool, error)
	CountMemberships(ctx context.Context, userID string) (int, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// Create inserts a group and its members atomically. The creator is stored
// as admin; memberIDs must already be deduplicated against the creator.
func (r *GroupRepo) Create(ctx context.Context, name, description, createdBy string, memberIDs []string) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO groups (name, description, created_by) VALUES ($1, $2, $3)
         RETURNING id, name, description, created_by, created_at`,
		name, description, createdBy).StructScan(&group); err != nil {
		if isUniqueViolation(err) {
			err = ErrGroupNameTaken
		}
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, 'admin')`,
		group.ID, createdBy); err != nil {
		return models.Group{}, err
	}
	for _, id := range memberIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, 'member')`,
			group.ID, id); err != nil {
			return models.Group{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// Get fetches a single group.
func (r *GroupRepo) Get(ctx context.Context, groupID int64) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group,
		`SELECT id, name, description, created_by, created_at FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// Rename updates the group name.
func (r *GroupRepo) Rename(ctx context.Context, groupID int64, name string) (models.Group, error) {
	var group models.Group
	err := r.db.QueryRowxContext(ctx,
		`UPDATE groups SET name=$2 WHERE id=$1
         RETURNING id, name, description, created_by, created_at`, groupID, name).
		StructScan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if isUniqueViolation(err) {
		return models.Group{}, ErrGroupNameTaken
	}
	return group, err
}

// ListForUser returns groups with a non-removed membership for the user.
func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups,
		`SELECT g.id, g.name, g.description, g.created_by, g.created_at FROM groups g
         INNER JOIN group_members gm ON gm.group_id = g.id
         WHERE gm.user_id=$1 AND gm.removed=FALSE ORDER BY g.created_at DESC`, userID)
	return groups, err
}

// Members returns the non-removed member entries of a group.
func (r *GroupRepo) Members(ctx context.Context, groupID int64) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT group_id, user_id, role, joined_at, removed FROM group_members
         WHERE group_id=$1 AND removed=FALSE ORDER BY joined_at ASC`, groupID)
	return members, err
}

// GetMember fetches a user's current (non-removed) member entry.
func (r *GroupRepo) GetMember(ctx context.Context, groupID int64, userID string) (models.GroupMember, error) {
	var member models.GroupMember
	err := r.db.GetContext(ctx, &member,
		`SELECT group_id, user_id, role, joined_at, removed FROM group_members
         WHERE group_id=$1 AND user_id=$2 AND removed=FALSE`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMember{}, ErrMemberNotFound
	}
	return member, err
}

// AddMember inserts a member entry, reviving a previously removed one. An
// active duplicate surfaces as ErrAlreadyMember.
func (r *GroupRepo) AddMember(ctx context.Context, groupID int64, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, 'member')
         ON CONFLICT (group_id, user_id) DO UPDATE
         SET removed=FALSE, role='member', joined_at=NOW()
         WHERE group_members.removed=TRUE`, groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// RemoveMember soft-removes an active member entry.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID int64, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET removed=TRUE WHERE group_id=$1 AND user_id=$2 AND removed=FALSE`,
		groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// Promote raises an active member to admin.
func (r *GroupRepo) Promote(ctx context.Context, groupID int64, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET role='admin' WHERE group_id=$1 AND user_id=$2 AND removed=FALSE AND role='member'`,
		groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// Leave removes the caller's membership. The admin-count check and the
// removal run in one transaction with the member rows locked, so two admins
// leaving concurrently cannot strand the group without one.
func (r *GroupRepo) Leave(ctx context.Context, groupID int64, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var members []models.GroupMember
	if err := tx.SelectContext(ctx, &members,
		`SELECT group_id, user_id, role, joined_at, removed FROM group_members
         WHERE group_id=$1 AND removed=FALSE FOR UPDATE`, groupID); err != nil {
		return err
	}

	var caller *models.GroupMember
	admins := 0
	for i := range members {
		if members[i].Role == models.RoleAdmin {
			admins++
		}
		if members[i].UserID == userID {
			caller = &members[i]
		}
	}
	if caller == nil {
		return ErrMemberNotFound
	}
	if caller.Role == models.RoleAdmin && admins == 1 && len(members) > 1 {
		return ErrLastAdmin
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE group_members SET removed=TRUE WHERE group_id=$1 AND user_id=$2`, groupID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// NameExists checks for a case-insensitive name collision.
func (r *GroupRepo) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM groups WHERE LOWER(name)=LOWER($1))`, name)
	return exists, err
}

// CountMemberships counts the user's active group memberships.
func (r *GroupRepo) CountMemberships(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM group_members WHERE user_id=$1 AND removed=FALSE`, userID)
	return count, err
}

func isUniqueViolation(err error) bool {
	var pqErr interface{ SQLState() string }
	if errors.As(err, &pqErr) {
		return pqErr.SQLState() == "23505"
	}
	return false
}
