package chat

import (
	"context"
	"strings"
	"time"

	"chat-backend/internal/apperr"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// EditWindow bounds how long after sending a message may still be edited.
const EditWindow = 15 * time.Minute

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Dispatcher routes stored messages and lifecycle events to their targets,
// whether the target connection lives in this process or another.
type Dispatcher interface {
	DeliverMessage(ctx context.Context, msg models.Message) (models.Message, error)
	Notify(ctx context.Context, userIDs []string, event models.Event)
}

// Service implements the private messaging operations: conversation
// resolution, the send/deliver/read lifecycle, edits and deletions.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	dispatcher    Dispatcher
	now           func() time.Time
}

// NewService wires the chat service.
func NewService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, dispatcher Dispatcher) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		dispatcher:    dispatcher,
		now:           time.Now,
	}
}

// ResolveConversation finds or creates the 1:1 conversation between the
// caller and peer. The pair is canonical, so both participants resolve to
// the same conversation regardless of argument order.
func (s *Service) ResolveConversation(ctx context.Context, userID, peerID string) (models.Conversation, error) {
	if peerID == "" {
		return models.Conversation{}, apperr.New(apperr.Validation, "peer id is required")
	}
	if peerID == userID {
		return models.Conversation{}, apperr.New(apperr.Validation, "cannot open a conversation with yourself")
	}
	return s.conversations.ResolveOrCreate(ctx, userID, peerID)
}

// Conversation fetches a conversation the caller participates in.
func (s *Service) Conversation(ctx context.Context, userID string, conversationID int64) (models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, apperr.New(apperr.Forbidden, "not a participant of this conversation")
	}
	return conv, nil
}

// Conversations lists the caller's conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// Send stores a message for the receiver and hands it to the dispatcher,
// which either delivers it live or queues it for the receiver's next
// connection. The returned message carries the delivery status the
// dispatcher settled on.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, apperr.New(apperr.Validation, "message content is required")
	}
	if receiverID == "" {
		return models.Message{}, apperr.New(apperr.Validation, "receiver id is required")
	}
	if receiverID == senderID {
		return models.Message{}, apperr.New(apperr.Validation, "cannot message yourself")
	}

	conv, err := s.conversations.ResolveOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return models.Message{}, err
	}
	msg, err := s.messages.Create(ctx, conv.ID, senderID, receiverID, content)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.conversations.Touch(ctx, conv.ID); err != nil {
		return models.Message{}, err
	}
	return s.dispatcher.DeliverMessage(ctx, msg)
}

// MarkDelivered acknowledges receipt of a message. Only the receiver may
// acknowledge; a message already delivered or read is returned unchanged.
func (s *Service) MarkDelivered(ctx context.Context, userID string, messageID int64) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.ReceiverID != userID {
		return models.Message{}, apperr.New(apperr.Forbidden, "only the receiver can acknowledge delivery")
	}
	before := msg.Status
	msg, err = s.messages.MarkDelivered(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if before == models.StatusSent && msg.Status == models.StatusDelivered {
		s.dispatcher.Notify(ctx, []string{msg.SenderID}, models.Event{
			Type:           models.EventDelivered,
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			UserID:         userID,
			At:             msg.DeliveredAt,
		})
	}
	return msg, nil
}

// MarkRead acknowledges that the receiver has read a message. Reading an
// undelivered message settles delivery at the same time.
func (s *Service) MarkRead(ctx context.Context, userID string, messageID int64) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.ReceiverID != userID {
		return models.Message{}, apperr.New(apperr.Forbidden, "only the receiver can mark a message read")
	}
	before := msg.Status
	msg, err = s.messages.MarkRead(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if before != models.StatusRead {
		s.dispatcher.Notify(ctx, []string{msg.SenderID}, models.Event{
			Type:           models.EventRead,
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			UserID:         userID,
			At:             msg.ReadAt,
		})
	}
	return msg, nil
}

// MarkAllRead settles every unread message addressed to the caller in the
// conversation and tells the peer how many were read.
func (s *Service) MarkAllRead(ctx context.Context, userID string, conversationID int64) (int64, error) {
	conv, err := s.Conversation(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := s.messages.MarkAllRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.dispatcher.Notify(ctx, []string{conv.PeerOf(userID)}, models.Event{
			Type:           models.EventRead,
			ConversationID: conversationID,
			UserID:         userID,
			Count:          n,
		})
	}
	return n, nil
}

// BulkDelivered acknowledges delivery for a batch of message ids. Ids that
// do not exist, belong to someone else, or are already past sent are
// skipped; the count of messages actually transitioned is returned.
func (s *Service) BulkDelivered(ctx context.Context, userID string, messageIDs []int64) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, apperr.New(apperr.Validation, "message ids are required")
	}
	return s.messages.BulkMarkDelivered(ctx, userID, messageIDs)
}

// Edit replaces the content of a message the caller sent. Edits are
// rejected for deleted messages and once the edit window has elapsed.
func (s *Service) Edit(ctx context.Context, userID string, messageID int64, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, apperr.New(apperr.Validation, "message content is required")
	}
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != userID {
		return models.Message{}, apperr.New(apperr.Forbidden, "only the sender can edit a message")
	}
	if msg.Deleted {
		return models.Message{}, apperr.New(apperr.Validation, "cannot edit a deleted message")
	}
	if s.now().Sub(msg.CreatedAt) > EditWindow {
		return models.Message{}, apperr.New(apperr.Validation, "edit window has expired")
	}
	msg, err = s.messages.UpdateContent(ctx, messageID, content)
	if err != nil {
		return models.Message{}, err
	}
	s.dispatcher.Notify(ctx, []string{msg.ReceiverID}, models.Event{
		Type:           models.EventEdited,
		Message:        &msg,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
	return msg, nil
}

// Delete soft-deletes a message the caller sent. Deleting an already
// deleted message is a no-op returning the current state.
func (s *Service) Delete(ctx context.Context, userID string, messageID int64) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != userID {
		return models.Message{}, apperr.New(apperr.Forbidden, "only the sender can delete a message")
	}
	if msg.Deleted {
		return msg, nil
	}
	msg, err = s.messages.SoftDelete(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	s.dispatcher.Notify(ctx, []string{msg.ReceiverID}, models.Event{
		Type:           models.EventDeleted,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		At:             msg.DeletedAt,
	})
	return msg, nil
}

// Messages returns a page of conversation history in send order. Deleted
// messages keep their place with content hidden.
func (s *Service) Messages(ctx context.Context, userID string, conversationID int64, page, limit int) ([]models.Message, error) {
	if _, err := s.Conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	msgs, err := s.messages.ListForConversation(ctx, conversationID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.View())
	}
	return out, nil
}

// UnreadCounts returns per-conversation unread totals for the caller.
func (s *Service) UnreadCounts(ctx context.Context, userID string) ([]models.UnreadCount, error) {
	return s.messages.UnreadCounts(ctx, userID)
}
