package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-backend/internal/models"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) ResolveOrCreate(ctx context.Context, userA, userB string) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(models.Conversation), args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(models.Conversation), args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID int64, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) Touch(ctx context.Context, conversationID int64) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID int64, senderID, receiverID, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, receiverID, content)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) ListForConversation(ctx context.Context, conversationID int64, offset, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) MarkAllRead(ctx context.Context, conversationID int64, receiverID string) (int64, error) {
	args := m.Called(ctx, conversationID, receiverID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) BulkMarkDelivered(ctx context.Context, receiverID string, messageIDs []int64) (int64, error) {
	args := m.Called(ctx, receiverID, messageIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID int64, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCounts(ctx context.Context, receiverID string) ([]models.UnreadCount, error) {
	args := m.Called(ctx, receiverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UnreadCount), args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) Create(ctx context.Context, name, description, createdBy string, memberIDs []string) (models.Group, error) {
	args := m.Called(ctx, name, description, createdBy, memberIDs)
	return args.Get(0).(models.Group), args.Error(1)
}

func (m *GroupRepositoryMock) Get(ctx context.Context, groupID int64) (models.Group, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).(models.Group), args.Error(1)
}

func (m *GroupRepositoryMock) Rename(ctx context.Context, groupID int64, name string) (models.Group, error) {
	args := m.Called(ctx, groupID, name)
	return args.Get(0).(models.Group), args.Error(1)
}

func (m *GroupRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Group), args.Error(1)
}

func (m *GroupRepositoryMock) Members(ctx context.Context, groupID int64) ([]models.GroupMember, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GroupMember), args.Error(1)
}

func (m *GroupRepositoryMock) GetMember(ctx context.Context, groupID int64, userID string) (models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Get(0).(models.GroupMember), args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID int64, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID int64, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) Promote(ctx context.Context, groupID int64, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) Leave(ctx context.Context, groupID int64, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) NameExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) CountMemberships(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type InviteRepositoryMock struct {
	mock.Mock
}

func (m *InviteRepositoryMock) Create(ctx context.Context, groupID int64, invitedUserID, invitedBy string) (models.GroupInvite, error) {
	args := m.Called(ctx, groupID, invitedUserID, invitedBy)
	return args.Get(0).(models.GroupInvite), args.Error(1)
}

func (m *InviteRepositoryMock) Get(ctx context.Context, inviteID int64) (models.GroupInvite, error) {
	args := m.Called(ctx, inviteID)
	return args.Get(0).(models.GroupInvite), args.Error(1)
}

func (m *InviteRepositoryMock) HasPending(ctx context.Context, groupID int64, invitedUserID string) (bool, error) {
	args := m.Called(ctx, groupID, invitedUserID)
	return args.Bool(0), args.Error(1)
}

func (m *InviteRepositoryMock) SetStatus(ctx context.Context, inviteID int64, status models.InviteStatus) (models.GroupInvite, error) {
	args := m.Called(ctx, inviteID, status)
	return args.Get(0).(models.GroupInvite), args.Error(1)
}

func (m *InviteRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.GroupInvite, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GroupInvite), args.Error(1)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) Create(ctx context.Context, groupID int64, senderID, content string, taggedUserIDs []string) (models.GroupMessage, error) {
	args := m.Called(ctx, groupID, senderID, content, taggedUserIDs)
	return args.Get(0).(models.GroupMessage), args.Error(1)
}

func (m *GroupMessageRepositoryMock) Get(ctx context.Context, messageID int64) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.GroupMessage), args.Error(1)
}

func (m *GroupMessageRepositoryMock) List(ctx context.Context, groupID int64, offset, limit int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GroupMessage), args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListTagged(ctx context.Context, groupID int64, userID string, offset, limit int) ([]models.GroupMessage, int64, error) {
	args := m.Called(ctx, groupID, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.GroupMessage), args.Get(1).(int64), args.Error(2)
}

func (m *GroupMessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.GroupMessage), args.Error(1)
}

type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) DeliverMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *DispatcherMock) Notify(ctx context.Context, userIDs []string, event models.Event) {
	m.Called(ctx, userIDs, event)
}

type RegistryMock struct {
	mock.Mock
}

func (m *RegistryMock) Register(ctx context.Context, userID, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *RegistryMock) Unregister(ctx context.Context, userID, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *RegistryMock) LiveConns(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *RegistryMock) IsOnline(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type OutboxMock struct {
	mock.Mock
}

func (m *OutboxMock) Enqueue(ctx context.Context, userID string, payload []byte) error {
	args := m.Called(ctx, userID, payload)
	return args.Error(0)
}

func (m *OutboxMock) Drain(ctx context.Context, userID string) ([][]byte, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}
