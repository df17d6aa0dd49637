package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/apperr"
	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
)

func newTestService() (*Service, *mocks.ConversationRepositoryMock, *mocks.MessageRepositoryMock, *mocks.DispatcherMock) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	return NewService(conversations, messages, dispatcher), conversations, messages, dispatcher
}

func TestResolveConversationCanonical(t *testing.T) {
	svc, conversations, _, _ := newTestService()

	conv := models.Conversation{ID: 7, UserA: "alice", UserB: "bob"}
	conversations.On("ResolveOrCreate", mock.Anything, "bob", "alice").Return(conv, nil).Once()

	got, err := svc.ResolveConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(7), got.ID)
	conversations.AssertExpectations(t)
}

func TestResolveConversationSelfRejected(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.ResolveConversation(context.Background(), "alice", "alice")
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestSendStoresAndDispatches(t *testing.T) {
	svc, conversations, messages, dispatcher := newTestService()

	conv := models.Conversation{ID: 3, UserA: "alice", UserB: "bob"}
	stored := models.Message{ID: 11, ConversationID: 3, SenderID: "alice", ReceiverID: "bob", Content: "hi", Status: models.StatusSent}
	delivered := stored
	delivered.Status = models.StatusDelivered

	conversations.On("ResolveOrCreate", mock.Anything, "alice", "bob").Return(conv, nil).Once()
	messages.On("Create", mock.Anything, int64(3), "alice", "bob", "hi").Return(stored, nil).Once()
	conversations.On("Touch", mock.Anything, int64(3)).Return(nil).Once()
	dispatcher.On("DeliverMessage", mock.Anything, stored).Return(delivered, nil).Once()

	got, err := svc.Send(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, got.Status)
	conversations.AssertExpectations(t)
	messages.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestSendBlankContentRejected(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Send(context.Background(), "alice", "bob", "   ")
	require.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestSendToSelfRejected(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Send(context.Background(), "alice", "alice", "hi")
	require.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestMarkDeliveredNotifiesSender(t *testing.T) {
	svc, _, messages, dispatcher := newTestService()

	now := time.Now()
	sent := models.Message{ID: 4, ConversationID: 2, SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent}
	delivered := sent
	delivered.Status = models.StatusDelivered
	delivered.DeliveredAt = &now

	messages.On("Get", mock.Anything, int64(4)).Return(sent, nil).Once()
	messages.On("MarkDelivered", mock.Anything, int64(4)).Return(delivered, nil).Once()
	dispatcher.On("Notify", mock.Anything, []string{"alice"}, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventDelivered && e.MessageID == 4
	})).Once()

	got, err := svc.MarkDelivered(context.Background(), "bob", 4)
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, got.Status)
	dispatcher.AssertExpectations(t)
}

func TestMarkDeliveredWrongUserForbidden(t *testing.T) {
	svc, _, messages, _ := newTestService()

	sent := models.Message{ID: 4, SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent}
	messages.On("Get", mock.Anything, int64(4)).Return(sent, nil).Once()

	_, err := svc.MarkDelivered(context.Background(), "carol", 4)
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestMarkDeliveredOnReadMessageIsNoOp(t *testing.T) {
	svc, _, messages, dispatcher := newTestService()

	read := models.Message{ID: 4, SenderID: "alice", ReceiverID: "bob", Status: models.StatusRead}
	messages.On("Get", mock.Anything, int64(4)).Return(read, nil).Once()
	messages.On("MarkDelivered", mock.Anything, int64(4)).Return(read, nil).Once()

	got, err := svc.MarkDelivered(context.Background(), "bob", 4)
	require.NoError(t, err)
	require.Equal(t, models.StatusRead, got.Status)
	dispatcher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadSettlesDelivery(t *testing.T) {
	svc, _, messages, dispatcher := newTestService()

	now := time.Now()
	sent := models.Message{ID: 9, ConversationID: 2, SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent}
	read := sent
	read.Status = models.StatusRead
	read.ReadAt = &now
	read.DeliveredAt = &now

	messages.On("Get", mock.Anything, int64(9)).Return(sent, nil).Once()
	messages.On("MarkRead", mock.Anything, int64(9)).Return(read, nil).Once()
	dispatcher.On("Notify", mock.Anything, []string{"alice"}, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventRead && e.MessageID == 9
	})).Once()

	got, err := svc.MarkRead(context.Background(), "bob", 9)
	require.NoError(t, err)
	require.Equal(t, models.StatusRead, got.Status)
	require.NotNil(t, got.DeliveredAt)
	dispatcher.AssertExpectations(t)
}

func TestMarkReadBySenderForbidden(t *testing.T) {
	svc, _, messages, _ := newTestService()

	sent := models.Message{ID: 9, SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent}
	messages.On("Get", mock.Anything, int64(9)).Return(sent, nil).Once()

	_, err := svc.MarkRead(context.Background(), "alice", 9)
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestEditWithinWindow(t *testing.T) {
	svc, _, messages, dispatcher := newTestService()
	base := time.Now()
	svc.now = func() time.Time { return base.Add(10 * time.Minute) }

	msg := models.Message{ID: 5, ConversationID: 1, SenderID: "alice", ReceiverID: "bob", Content: "old", CreatedAt: base}
	edited := msg
	edited.Content = "new"
	edited.Edited = true

	messages.On("Get", mock.Anything, int64(5)).Return(msg, nil).Once()
	messages.On("UpdateContent", mock.Anything, int64(5), "new").Return(edited, nil).Once()
	dispatcher.On("Notify", mock.Anything, []string{"bob"}, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventEdited
	})).Once()

	got, err := svc.Edit(context.Background(), "alice", 5, "new")
	require.NoError(t, err)
	require.True(t, got.Edited)
	require.Equal(t, "new", got.Content)
}

func TestEditAfterWindowRejected(t *testing.T) {
	svc, _, messages, _ := newTestService()
	base := time.Now()
	svc.now = func() time.Time { return base.Add(EditWindow + time.Second) }

	msg := models.Message{ID: 5, SenderID: "alice", ReceiverID: "bob", CreatedAt: base}
	messages.On("Get", mock.Anything, int64(5)).Return(msg, nil).Once()

	_, err := svc.Edit(context.Background(), "alice", 5, "new")
	require.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestEditDeletedMessageRejected(t *testing.T) {
	svc, _, messages, _ := newTestService()

	msg := models.Message{ID: 5, SenderID: "alice", ReceiverID: "bob", Deleted: true, CreatedAt: time.Now()}
	messages.On("Get", mock.Anything, int64(5)).Return(msg, nil).Once()

	_, err := svc.Edit(context.Background(), "alice", 5, "new")
	require.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestEditByReceiverForbidden(t *testing.T) {
	svc, _, messages, _ := newTestService()

	msg := models.Message{ID: 5, SenderID: "alice", ReceiverID: "bob", CreatedAt: time.Now()}
	messages.On("Get", mock.Anything, int64(5)).Return(msg, nil).Once()

	_, err := svc.Edit(context.Background(), "bob", 5, "new")
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, _, messages, dispatcher := newTestService()

	deleted := models.Message{ID: 6, SenderID: "alice", ReceiverID: "bob", Deleted: true}
	messages.On("Get", mock.Anything, int64(6)).Return(deleted, nil).Once()

	got, err := svc.Delete(context.Background(), "alice", 6)
	require.NoError(t, err)
	require.True(t, got.Deleted)
	messages.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteNotifiesReceiver(t *testing.T) {
	svc, _, messages, dispatcher := newTestService()

	now := time.Now()
	msg := models.Message{ID: 6, ConversationID: 1, SenderID: "alice", ReceiverID: "bob"}
	deleted := msg
	deleted.Deleted = true
	deleted.DeletedAt = &now

	messages.On("Get", mock.Anything, int64(6)).Return(msg, nil).Once()
	messages.On("SoftDelete", mock.Anything, int64(6)).Return(deleted, nil).Once()
	dispatcher.On("Notify", mock.Anything, []string{"bob"}, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventDeleted && e.MessageID == 6
	})).Once()

	got, err := svc.Delete(context.Background(), "alice", 6)
	require.NoError(t, err)
	require.True(t, got.Deleted)
	dispatcher.AssertExpectations(t)
}

func TestMessagesClampsPaging(t *testing.T) {
	svc, conversations, messages, _ := newTestService()

	conv := models.Conversation{ID: 2, UserA: "alice", UserB: "bob"}
	conversations.On("Get", mock.Anything, int64(2)).Return(conv, nil).Once()
	messages.On("ListForConversation", mock.Anything, int64(2), 0, maxPageSize).
		Return([]models.Message{}, nil).Once()

	_, err := svc.Messages(context.Background(), "alice", 2, 0, 500)
	require.NoError(t, err)
	messages.AssertExpectations(t)
}

func TestMessagesHidesDeletedContent(t *testing.T) {
	svc, conversations, messages, _ := newTestService()

	conv := models.Conversation{ID: 2, UserA: "alice", UserB: "bob"}
	conversations.On("Get", mock.Anything, int64(2)).Return(conv, nil).Once()
	messages.On("ListForConversation", mock.Anything, int64(2), 0, defaultPageSize).
		Return([]models.Message{{ID: 1, Content: "secret", Deleted: true}}, nil).Once()

	got, err := svc.Messages(context.Background(), "alice", 2, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Empty(t, got[0].Content)
	require.True(t, got[0].Deleted)
}

func TestMessagesNonParticipantForbidden(t *testing.T) {
	svc, conversations, _, _ := newTestService()

	conv := models.Conversation{ID: 2, UserA: "alice", UserB: "bob"}
	conversations.On("Get", mock.Anything, int64(2)).Return(conv, nil).Once()

	_, err := svc.Messages(context.Background(), "carol", 2, 1, 10)
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestMarkAllReadNotifiesPeer(t *testing.T) {
	svc, conversations, messages, dispatcher := newTestService()

	conv := models.Conversation{ID: 2, UserA: "alice", UserB: "bob"}
	conversations.On("Get", mock.Anything, int64(2)).Return(conv, nil).Once()
	messages.On("MarkAllRead", mock.Anything, int64(2), "bob").Return(int64(3), nil).Once()
	dispatcher.On("Notify", mock.Anything, []string{"alice"}, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventRead && e.Count == 3
	})).Once()

	n, err := svc.MarkAllRead(context.Background(), "bob", 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	dispatcher.AssertExpectations(t)
}

func TestMarkAllReadNothingUnreadSkipsNotify(t *testing.T) {
	svc, conversations, messages, dispatcher := newTestService()

	conv := models.Conversation{ID: 2, UserA: "alice", UserB: "bob"}
	conversations.On("Get", mock.Anything, int64(2)).Return(conv, nil).Once()
	messages.On("MarkAllRead", mock.Anything, int64(2), "bob").Return(int64(0), nil).Once()

	n, err := svc.MarkAllRead(context.Background(), "bob", 2)
	require.NoError(t, err)
	require.Zero(t, n)
	dispatcher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkDeliveredEmptyRejected(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.BulkDelivered(context.Background(), "bob", nil)
	require.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestBulkDeliveredScopedToReceiver(t *testing.T) {
	svc, _, messages, _ := newTestService()

	messages.On("BulkMarkDelivered", mock.Anything, "bob", []int64{1, 2, 3}).Return(int64(2), nil).Once()

	n, err := svc.BulkDelivered(context.Background(), "bob", []int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	messages.AssertExpectations(t)
}
