package groups

import (
	"context"
	"fmt"
	"log"
	"strings"

	"chat-backend/internal/apperr"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// MaxGroupsPerUser caps how many groups a single user may belong to.
const MaxGroupsPerUser = 10

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Notifier pushes events to a set of users across all their connections.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, event models.Event)
}

// GroupCache is the read-through cache for group and invite lookups.
// Mutations invalidate; misses fall through to the repository.
type GroupCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Del(ctx context.Context, keys ...string) error
}

// Service implements group governance: creation, membership, the invite
// lifecycle and group messaging.
type Service struct {
	groups        repositories.GroupRepository
	invites       repositories.InviteRepository
	groupMessages repositories.GroupMessageRepository
	notifier      Notifier
	cache         GroupCache
}

// NewService wires the groups service. cache may be nil, which disables
// read-through caching.
func NewService(groups repositories.GroupRepository, invites repositories.InviteRepository, groupMessages repositories.GroupMessageRepository, notifier Notifier, cache GroupCache) *Service {
	return &Service{
		groups:        groups,
		invites:       invites,
		groupMessages: groupMessages,
		notifier:      notifier,
		cache:         cache,
	}
}

func groupKey(groupID int64) string   { return fmt.Sprintf("cache:group:%d", groupID) }
func inviteKey(inviteID int64) string { return fmt.Sprintf("cache:invite:%d", inviteID) }

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		log.Printf("groups: cache invalidation failed: %v", err)
	}
}

// CreateGroup creates a group with the caller as its first admin. The
// initial member set must name at least one user besides the creator.
func (s *Service) CreateGroup(ctx context.Context, creatorID, name, description string, memberIDs []string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, apperr.New(apperr.Validation, "group name is required")
	}
	members := dedupe(memberIDs, creatorID)
	if len(members) == 0 {
		return models.Group{}, apperr.New(apperr.Validation, "a group needs at least one member besides the creator")
	}

	group, err := s.groups.Create(ctx, name, description, creatorID, members)
	if err != nil {
		return models.Group{}, err
	}
	s.notifier.Notify(ctx, members, models.Event{
		Type:        models.EventGroup,
		GroupID:     group.ID,
		GroupAction: models.GroupMemberAdded,
		UserID:      creatorID,
		Content:     group.Name,
	})
	return group, nil
}

// Group fetches a group the caller belongs to, reading through the cache.
func (s *Service) Group(ctx context.Context, userID string, groupID int64) (models.Group, error) {
	if _, err := s.activeMember(ctx, groupID, userID); err != nil {
		return models.Group{}, err
	}
	if s.cache != nil {
		var cached models.Group
		ok, err := s.cache.Get(ctx, groupKey(groupID), &cached)
		if err != nil {
			log.Printf("groups: cache read failed: %v", err)
		} else if ok {
			return cached, nil
		}
	}
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, groupKey(groupID), group); err != nil {
			log.Printf("groups: cache write failed: %v", err)
		}
	}
	return group, nil
}

// Groups lists the groups the caller belongs to.
func (s *Service) Groups(ctx context.Context, userID string) ([]models.Group, error) {
	return s.groups.ListForUser(ctx, userID)
}

// Members lists the active members of a group the caller belongs to.
func (s *Service) Members(ctx context.Context, userID string, groupID int64) ([]models.GroupMember, error) {
	if _, err := s.activeMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.groups.Members(ctx, groupID)
}

// Rename changes the group name. Admin only.
func (s *Service) Rename(ctx context.Context, userID string, groupID int64, name string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, apperr.New(apperr.Validation, "group name is required")
	}
	if err := s.requireAdmin(ctx, groupID, userID); err != nil {
		return models.Group{}, err
	}
	group, err := s.groups.Rename(ctx, groupID, name)
	if err != nil {
		return models.Group{}, err
	}
	s.invalidate(ctx, groupKey(groupID))
	s.notifyGroup(ctx, groupID, models.Event{
		Type:        models.EventGroup,
		GroupID:     groupID,
		GroupAction: models.GroupRenamed,
		UserID:      userID,
		Content:     group.Name,
	})
	return group, nil
}

// AddMember adds a user directly to the group. Admin only; a previously
// removed user is revived as a plain member.
func (s *Service) AddMember(ctx context.Context, callerID string, groupID int64, userID string) error {
	if userID == "" {
		return apperr.New(apperr.Validation, "user id is required")
	}
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}
	if err := s.capMemberships(ctx, userID); err != nil {
		return err
	}
	if err := s.groups.AddMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, groupKey(groupID))
	s.notifyGroup(ctx, groupID, models.Event{
		Type:        models.EventGroup,
		GroupID:     groupID,
		GroupAction: models.GroupMemberAdded,
		UserID:      userID,
	})
	return nil
}

// RemoveMember removes a user from the group. Admin only; admins cannot
// remove themselves, they leave instead.
func (s *Service) RemoveMember(ctx context.Context, callerID string, groupID int64, userID string) error {
	if userID == callerID {
		return apperr.New(apperr.Validation, "use leave to remove yourself")
	}
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, groupKey(groupID))
	s.notifier.Notify(ctx, []string{userID}, models.Event{
		Type:        models.EventGroup,
		GroupID:     groupID,
		GroupAction: models.GroupMemberRemoved,
		UserID:      userID,
	})
	s.notifyGroup(ctx, groupID, models.Event{
		Type:        models.EventGroup,
		GroupID:     groupID,
		GroupAction: models.GroupMemberRemoved,
		UserID:      userID,
	})
	return nil
}

// Promote raises a member to admin. Admin only.
func (s *Service) Promote(ctx context.Context, callerID string, groupID int64, userID string) error {
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}
	if err := s.groups.Promote(ctx, groupID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, groupKey(groupID))
	s.notifyGroup(ctx, groupID, models.Event{
		Type:        models.EventGroup,
		GroupID:     groupID,
		GroupAction: models.GroupAdminPromoted,
		UserID:      userID,
	})
	return nil
}

// Leave removes the caller from the group. The only admin of a group with
// other members cannot leave until another admin is promoted.
func (s *Service) Leave(ctx context.Context, userID string, groupID int64) error {
	if err := s.groups.Leave(ctx, groupID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, groupKey(groupID))
	s.notifyGroup(ctx, groupID, models.Event{
		Type:        models.EventGroup,
		GroupID:     groupID,
		GroupAction: models.GroupMemberLeft,
		UserID:      userID,
	})
	return nil
}

// SendInvite offers membership to a user. Admin only; existing members and
// users with an invite already pending are rejected.
func (s *Service) SendInvite(ctx context.Context, callerID string, groupID int64, userID string) (models.GroupInvite, error) {
	if userID == "" {
		return models.GroupInvite{}, apperr.New(apperr.Validation, "user id is required")
	}
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return models.GroupInvite{}, err
	}
	if member, err := s.groups.GetMember(ctx, groupID, userID); err == nil && !member.Removed {
		return models.GroupInvite{}, repositories.ErrAlreadyMember
	} else if err != nil && !apperr.IsKind(err, apperr.NotFound) {
		return models.GroupInvite{}, err
	}
	pending, err := s.invites.HasPending(ctx, groupID, userID)
	if err != nil {
		return models.GroupInvite{}, err
	}
	if pending {
		return models.GroupInvite{}, apperr.New(apperr.Conflict, "an invite is already pending for this user")
	}
	invite, err := s.invites.Create(ctx, groupID, userID, callerID)
	if err != nil {
		return models.GroupInvite{}, err
	}
	s.notifier.Notify(ctx, []string{userID}, models.Event{
		Type:        models.EventGroup,
		GroupID:     groupID,
		GroupAction: models.GroupInviteSent,
		UserID:      callerID,
		MessageID:   invite.ID,
	})
	return invite, nil
}

// RespondToInvite settles a pending invite. Only the invitee may respond;
// accepting joins the group, subject to the membership cap.
func (s *Service) RespondToInvite(ctx context.Context, userID string, inviteID int64, accept bool) (models.GroupInvite, error) {
	invite, err := s.getInvite(ctx, inviteID)
	if err != nil {
		return models.GroupInvite{}, err
	}
	if invite.InvitedUserID != userID {
		return models.GroupInvite{}, apperr.New(apperr.Forbidden, "only the invited user can respond")
	}
	status := models.InviteRejected
	if accept {
		if err := s.capMemberships(ctx, userID); err != nil {
			return models.GroupInvite{}, err
		}
		status = models.InviteAccepted
	}
	invite, err = s.invites.SetStatus(ctx, inviteID, status)
	if err != nil {
		return models.GroupInvite{}, err
	}
	s.invalidate(ctx, inviteKey(inviteID))
	if accept {
		if err := s.groups.AddMember(ctx, invite.GroupID, userID); err != nil && !apperr.IsKind(err, apperr.Conflict) {
			return models.GroupInvite{}, err
		}
		s.invalidate(ctx, groupKey(invite.GroupID))
		s.notifyGroup(ctx, invite.GroupID, models.Event{
			Type:        models.EventGroup,
			GroupID:     invite.GroupID,
			GroupAction: models.GroupMemberAdded,
			UserID:      userID,
		})
	}
	return invite, nil
}

// Invites lists the caller's invites, pending first.
func (s *Service) Invites(ctx context.Context, userID string) ([]models.GroupInvite, error) {
	return s.invites.ListForUser(ctx, userID)
}

// SendMessage stores a group message and fans it out to every active
// member. Tagged users additionally receive a tag notification.
func (s *Service) SendMessage(ctx context.Context, senderID string, groupID int64, content string, taggedUserIDs []string) (models.GroupMessage, error) {
	if strings.TrimSpace(content) == "" {
		return models.GroupMessage{}, apperr.New(apperr.Validation, "message content is required")
	}
	if _, err := s.activeMember(ctx, groupID, senderID); err != nil {
		return models.GroupMessage{}, err
	}
	members, err := s.groups.Members(ctx, groupID)
	if err != nil {
		return models.GroupMessage{}, err
	}
	memberSet := make(map[string]struct{}, len(members))
	targets := make([]string, 0, len(members))
	for _, m := range members {
		memberSet[m.UserID] = struct{}{}
		if m.UserID != senderID {
			targets = append(targets, m.UserID)
		}
	}

	tagged := make([]string, 0, len(taggedUserIDs))
	seen := make(map[string]struct{}, len(taggedUserIDs))
	for _, id := range taggedUserIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, ok := memberSet[id]; !ok {
			return models.GroupMessage{}, apperr.Newf(apperr.Validation, "tagged user %s is not a group member", id)
		}
		seen[id] = struct{}{}
		tagged = append(tagged, id)
	}

	msg, err := s.groupMessages.Create(ctx, groupID, senderID, content, tagged)
	if err != nil {
		return models.GroupMessage{}, err
	}
	s.notifier.Notify(ctx, targets, models.Event{
		Type:         models.EventGroupMessage,
		GroupMessage: &msg,
		GroupID:      groupID,
	})
	if len(tagged) > 0 {
		s.notifier.Notify(ctx, tagged, models.Event{
			Type:        models.EventGroup,
			GroupID:     groupID,
			GroupAction: models.GroupTagged,
			UserID:      senderID,
			MessageID:   msg.ID,
		})
	}
	return msg, nil
}

// Messages returns a page of group history in send order.
func (s *Service) Messages(ctx context.Context, userID string, groupID int64, page, limit int) ([]models.GroupMessage, error) {
	if _, err := s.activeMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	page, limit = clampPage(page, limit)
	msgs, err := s.groupMessages.List(ctx, groupID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.GroupMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.View())
	}
	return out, nil
}

// TaggedMessages returns messages tagging the caller, newest first, with
// the total count for paging.
func (s *Service) TaggedMessages(ctx context.Context, userID string, groupID int64, page, limit int) ([]models.GroupMessage, int64, error) {
	if _, err := s.activeMember(ctx, groupID, userID); err != nil {
		return nil, 0, err
	}
	page, limit = clampPage(page, limit)
	msgs, total, err := s.groupMessages.ListTagged(ctx, groupID, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.GroupMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.View())
	}
	return out, total, nil
}

// DeleteMessage soft-deletes a group message the caller sent. Idempotent.
func (s *Service) DeleteMessage(ctx context.Context, userID string, messageID int64) (models.GroupMessage, error) {
	msg, err := s.groupMessages.Get(ctx, messageID)
	if err != nil {
		return models.GroupMessage{}, err
	}
	if msg.SenderID != userID {
		return models.GroupMessage{}, apperr.New(apperr.Forbidden, "only the sender can delete a message")
	}
	if msg.Deleted {
		return msg, nil
	}
	msg, err = s.groupMessages.SoftDelete(ctx, messageID)
	if err != nil {
		return models.GroupMessage{}, err
	}
	s.notifyGroup(ctx, msg.GroupID, models.Event{
		Type:      models.EventDeleted,
		GroupID:   msg.GroupID,
		MessageID: msg.ID,
	})
	return msg, nil
}

func (s *Service) getInvite(ctx context.Context, inviteID int64) (models.GroupInvite, error) {
	if s.cache != nil {
		var cached models.GroupInvite
		ok, err := s.cache.Get(ctx, inviteKey(inviteID), &cached)
		if err != nil {
			log.Printf("groups: cache read failed: %v", err)
		} else if ok {
			return cached, nil
		}
	}
	invite, err := s.invites.Get(ctx, inviteID)
	if err != nil {
		return models.GroupInvite{}, err
	}
	if s.cache != nil && invite.Status == models.InvitePending {
		if err := s.cache.Set(ctx, inviteKey(inviteID), invite); err != nil {
			log.Printf("groups: cache write failed: %v", err)
		}
	}
	return invite, nil
}

func (s *Service) activeMember(ctx context.Context, groupID int64, userID string) (models.GroupMember, error) {
	member, err := s.groups.GetMember(ctx, groupID, userID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return models.GroupMember{}, apperr.New(apperr.Forbidden, "not a member of this group")
		}
		return models.GroupMember{}, err
	}
	if member.Removed {
		return models.GroupMember{}, apperr.New(apperr.Forbidden, "not a member of this group")
	}
	return member, nil
}

func (s *Service) requireAdmin(ctx context.Context, groupID int64, userID string) error {
	member, err := s.activeMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member.Role != models.RoleAdmin {
		return apperr.New(apperr.Forbidden, "admin role required")
	}
	return nil
}

func (s *Service) capMemberships(ctx context.Context, userID string) error {
	n, err := s.groups.CountMemberships(ctx, userID)
	if err != nil {
		return err
	}
	if n >= MaxGroupsPerUser {
		return apperr.Newf(apperr.Validation, "user cannot belong to more than %d groups", MaxGroupsPerUser)
	}
	return nil
}

func (s *Service) notifyGroup(ctx context.Context, groupID int64, event models.Event) {
	members, err := s.groups.Members(ctx, groupID)
	if err != nil {
		log.Printf("groups: listing members for fan-out failed: %v", err)
		return
	}
	targets := make([]string, 0, len(members))
	for _, m := range members {
		targets = append(targets, m.UserID)
	}
	s.notifier.Notify(ctx, targets, event)
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func dedupe(ids []string, exclude string) []string {
	seen := map[string]struct{}{exclude: {}}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
