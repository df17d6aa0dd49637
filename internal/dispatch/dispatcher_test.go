package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/presence"
)

type busStub struct {
	published []presence.Envelope
	handler   func(presence.Envelope)
}

func (b *busStub) Publish(ctx context.Context, envelope presence.Envelope) error {
	b.published = append(b.published, envelope)
	if b.handler != nil {
		b.handler(envelope)
	}
	return nil
}

func (b *busStub) Subscribe(ctx context.Context, handler func(presence.Envelope)) error {
	b.handler = handler
	return nil
}

type hubStub struct {
	pushed map[string][][]byte
}

func newHubStub() *hubStub {
	return &hubStub{pushed: map[string][][]byte{}}
}

func (h *hubStub) Push(userID string, payload []byte) {
	h.pushed[userID] = append(h.pushed[userID], payload)
}

func TestDeliverMessageOnlineSettlesDelivery(t *testing.T) {
	registry := new(mocks.RegistryMock)
	outbox := new(mocks.OutboxMock)
	marker := new(mocks.MessageRepositoryMock)
	bus := &busStub{}
	hub := newHubStub()

	d := New(registry, outbox, bus, marker, hub)
	require.NoError(t, d.Run(context.Background()))

	now := time.Now()
	sent := models.Message{ID: 1, SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent}
	delivered := sent
	delivered.Status = models.StatusDelivered
	delivered.DeliveredAt = &now

	registry.On("IsOnline", mock.Anything, "bob").Return(true, nil)
	registry.On("IsOnline", mock.Anything, "alice").Return(true, nil)
	marker.On("MarkDelivered", mock.Anything, int64(1)).Return(delivered, nil).Once()

	got, err := d.DeliverMessage(context.Background(), sent)
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, got.Status)

	// receiver gets the message, sender gets the delivery ack
	require.Len(t, hub.pushed["bob"], 1)
	require.Len(t, hub.pushed["alice"], 1)

	var event models.Event
	require.NoError(t, json.Unmarshal(hub.pushed["bob"][0], &event))
	require.Equal(t, models.EventMessage, event.Type)
	require.Equal(t, models.StatusDelivered, event.Message.Status)

	require.NoError(t, json.Unmarshal(hub.pushed["alice"][0], &event))
	require.Equal(t, models.EventDelivered, event.Type)
	outbox.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverMessageOfflineQueues(t *testing.T) {
	registry := new(mocks.RegistryMock)
	outbox := new(mocks.OutboxMock)
	marker := new(mocks.MessageRepositoryMock)
	bus := &busStub{}

	d := New(registry, outbox, bus, marker, newHubStub())

	sent := models.Message{ID: 2, SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent}
	registry.On("IsOnline", mock.Anything, "bob").Return(false, nil).Once()
	outbox.On("Enqueue", mock.Anything, "bob", mock.Anything).Return(nil).Once()

	got, err := d.DeliverMessage(context.Background(), sent)
	require.NoError(t, err)
	require.Equal(t, models.StatusSent, got.Status)
	marker.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything)
	outbox.AssertExpectations(t)
}

func TestNotifyMixedTargets(t *testing.T) {
	registry := new(mocks.RegistryMock)
	outbox := new(mocks.OutboxMock)
	bus := &busStub{}
	hub := newHubStub()

	d := New(registry, outbox, bus, new(mocks.MessageRepositoryMock), hub)
	require.NoError(t, d.Run(context.Background()))

	registry.On("IsOnline", mock.Anything, "alice").Return(true, nil).Once()
	registry.On("IsOnline", mock.Anything, "bob").Return(false, nil).Once()
	outbox.On("Enqueue", mock.Anything, "bob", mock.Anything).Return(nil).Once()

	d.Notify(context.Background(), []string{"alice", "bob"}, models.Event{Type: models.EventGroup, GroupID: 4})

	require.Len(t, hub.pushed["alice"], 1)
	require.Empty(t, hub.pushed["bob"])
	outbox.AssertExpectations(t)
}
