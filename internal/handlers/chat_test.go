package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/chat"
	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/conversations", handler.ResolveConversation)
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:conversation_id/messages", handler.GetMessages)
	r.POST("/conversations/:conversation_id/read-all", handler.MarkAllRead)
	r.POST("/messages", handler.SendMessage)
	r.POST("/messages/delivered", handler.BulkDelivered)
	r.POST("/messages/:message_id/read", handler.MarkRead)
	r.PUT("/messages/:message_id", handler.EditMessage)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)
	return r
}

func newChatFixture() (*ChatHandler, *mocks.ConversationRepositoryMock, *mocks.MessageRepositoryMock, *mocks.DispatcherMock) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	svc := chat.NewService(conversations, messages, dispatcher)
	return NewChatHandler(svc, nil), conversations, messages, dispatcher
}

func TestResolveConversationSuccess(t *testing.T) {
	handler, conversations, _, _ := newChatFixture()
	router := setupChatRouter(handler)

	conv := models.Conversation{ID: 7, UserA: "alice", UserB: "bob"}
	conversations.On("ResolveOrCreate", mock.Anything, "alice", "bob").Return(conv, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"peer_id":"bob"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	conversations.AssertExpectations(t)
}

func TestResolveConversationMissingPeer(t *testing.T) {
	handler, _, _, _ := newChatFixture()
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageSuccess(t *testing.T) {
	handler, conversations, messages, dispatcher := newChatFixture()
	router := setupChatRouter(handler)

	conv := models.Conversation{ID: 3, UserA: "alice", UserB: "bob"}
	msg := models.Message{ID: 1, ConversationID: 3, SenderID: "alice", ReceiverID: "bob", Content: "hi", Status: models.StatusSent}

	conversations.On("ResolveOrCreate", mock.Anything, "alice", "bob").Return(conv, nil).Once()
	messages.On("Create", mock.Anything, int64(3), "alice", "bob", "hi").Return(msg, nil).Once()
	conversations.On("Touch", mock.Anything, int64(3)).Return(nil).Once()
	dispatcher.On("DeliverMessage", mock.Anything, msg).Return(msg, nil).Once()

	body := bytes.NewBufferString(`{"receiver_id":"bob","content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	dispatcher.AssertExpectations(t)
}

func TestSendMessageToSelf(t *testing.T) {
	handler, _, _, _ := newChatFixture()
	router := setupChatRouter(handler)

	body := bytes.NewBufferString(`{"receiver_id":"alice","content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadForbiddenForSender(t *testing.T) {
	handler, _, messages, _ := newChatFixture()
	router := setupChatRouter(handler)

	msg := models.Message{ID: 9, SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent}
	messages.On("Get", mock.Anything, int64(9)).Return(msg, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/9/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEditUnknownMessageNotFound(t *testing.T) {
	handler, _, messages, _ := newChatFixture()
	router := setupChatRouter(handler)

	messages.On("Get", mock.Anything, int64(404)).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	body := bytes.NewBufferString(`{"content":"new"}`)
	req := httptest.NewRequest(http.MethodPut, "/messages/404", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditInvalidID(t *testing.T) {
	handler, _, _, _ := newChatFixture()
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPut, "/messages/abc", bytes.NewBufferString(`{"content":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteMessageHidesContent(t *testing.T) {
	handler, _, messages, dispatcher := newChatFixture()
	router := setupChatRouter(handler)

	msg := models.Message{ID: 6, ConversationID: 1, SenderID: "alice", ReceiverID: "bob", Content: "secret"}
	deleted := msg
	deleted.Deleted = true

	messages.On("Get", mock.Anything, int64(6)).Return(msg, nil).Once()
	messages.On("SoftDelete", mock.Anything, int64(6)).Return(deleted, nil).Once()
	dispatcher.On("Notify", mock.Anything, []string{"bob"}, mock.Anything).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/6", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret")
}

func TestBulkDeliveredSuccess(t *testing.T) {
	handler, _, messages, _ := newChatFixture()
	router := setupChatRouter(handler)

	messages.On("BulkMarkDelivered", mock.Anything, "alice", []int64{1, 2}).Return(int64(2), nil).Once()

	body := bytes.NewBufferString(`{"message_ids":[1,2]}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/delivered", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestMarkAllReadSuccess(t *testing.T) {
	handler, conversations, messages, dispatcher := newChatFixture()
	router := setupChatRouter(handler)

	conv := models.Conversation{ID: 2, UserA: "alice", UserB: "bob"}
	conversations.On("Get", mock.Anything, int64(2)).Return(conv, nil).Once()
	messages.On("MarkAllRead", mock.Anything, int64(2), "alice").Return(int64(4), nil).Once()
	dispatcher.On("Notify", mock.Anything, []string{"bob"}, mock.Anything).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/2/read-all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"read":4`)
}

func TestListConversationsSuccess(t *testing.T) {
	handler, conversations, _, _ := newChatFixture()
	router := setupChatRouter(handler)

	conversations.On("ListForUser", mock.Anything, "alice").
		Return([]models.Conversation{{ID: 1, UserA: "alice", UserB: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	conversations.AssertExpectations(t)
}
