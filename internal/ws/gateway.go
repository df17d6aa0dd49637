package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/chat"
	"chat-backend/internal/groups"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway owns the websocket surface: handshake, presence registration,
// outbox replay and the per-connection event loop.
type Gateway struct {
	verifier *auth.Verifier
	hub      *Hub
	registry presence.Registry
	outbox   presence.Outbox
	chat     *chat.Service
	groups   *groups.Service
}

// NewGateway wires the websocket gateway.
func NewGateway(verifier *auth.Verifier, hub *Hub, registry presence.Registry, outbox presence.Outbox, chatSvc *chat.Service, groupSvc *groups.Service) *Gateway {
	return &Gateway{
		verifier: verifier,
		hub:      hub,
		registry: registry,
		outbox:   outbox,
		chat:     chatSvc,
		groups:   groupSvc,
	}
}

// Handle upgrades the request and runs the connection until the client
// goes away. Queued offline events are replayed before live traffic.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-backend/ws").Start(c.Request.Context(), "ws.handshake")

	token := bearerToken(c)
	if token == "" {
		span.End()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := g.verifier.Verify(token)
	if err != nil {
		span.End()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	span.SetAttributes(attribute.String("chat.user_id", userID))

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		log.Printf("ws: upgrade for %s: %v", userID, err)
		return
	}
	span.End()

	conn := NewConn(wsConn, userID)
	info := connMeta{
		UserID:      userID,
		ConnID:      conn.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	g.hub.Add(conn)
	observability.IncWSActive()
	observability.IncWSEvent("in", "ws_connect")
	publishConnEvent(ctx, "ws_connect", info, "")
	if err := g.registry.Register(ctx, userID, conn.ID); err != nil {
		log.Printf("ws: presence register for %s: %v", userID, err)
	}

	var closeReason string
	defer func() {
		g.hub.Remove(conn)
		observability.DecWSActive()
		observability.IncWSEvent("in", "ws_disconnect")
		publishConnEvent(context.Background(), "ws_disconnect", info, closeReason)
		if err := g.registry.Unregister(context.Background(), userID, conn.ID); err != nil {
			log.Printf("ws: presence unregister for %s: %v", userID, err)
		}
		conn.Close()
	}()

	g.drainOutbox(ctx, conn)
	closeReason = g.readLoop(ctx, conn)
}

// connMeta identifies a connection for the event stream.
type connMeta struct {
	UserID      string
	ConnID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func publishConnEvent(ctx context.Context, name string, info connMeta, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.connections", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

// drainOutbox replays events queued while the user was offline, oldest
// first, then bulk-acks delivery for the replayed private messages.
func (g *Gateway) drainOutbox(ctx context.Context, conn *Conn) {
	payloads, err := g.outbox.Drain(ctx, conn.UserID)
	if err != nil {
		log.Printf("ws: drain outbox for %s: %v", conn.UserID, err)
		return
	}
	var delivered []int64
	for _, payload := range payloads {
		if err := conn.WriteRaw(payload); err != nil {
			log.Printf("ws: replay to %s: %v", conn.UserID, err)
			return
		}
		observability.IncOutboxEvent("drain")

		var event models.Event
		if err := json.Unmarshal(payload, &event); err == nil &&
			event.Type == models.EventMessage && event.Message != nil {
			delivered = append(delivered, event.Message.ID)
		}
	}
	if len(delivered) > 0 {
		if _, err := g.chat.BulkDelivered(ctx, conn.UserID, delivered); err != nil {
			log.Printf("ws: bulk delivered for %s: %v", conn.UserID, err)
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *Conn) string {
	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read from %s: %v", conn.UserID, err)
			}
			return err.Error()
		}

		var event models.ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			g.writeError(conn, "malformed event")
			continue
		}
		observability.IncWSEvent("in", event.Type)
		g.dispatch(ctx, conn, event)
	}
}

func (g *Gateway) dispatch(ctx context.Context, conn *Conn, event models.ClientEvent) {
	switch event.Type {
	case models.ClientSend:
		g.handleSend(ctx, conn, event)

	case models.ClientAckDelivered:
		msg, err := g.chat.MarkDelivered(ctx, conn.UserID, event.MessageID)
		if err != nil {
			g.writeError(conn, apperr.Message(err))
			return
		}
		observability.IncDeliveryTransition(string(msg.Status))

	case models.ClientAckRead:
		msg, err := g.chat.MarkRead(ctx, conn.UserID, event.MessageID)
		if err != nil {
			g.writeError(conn, apperr.Message(err))
			return
		}
		observability.IncDeliveryTransition(string(msg.Status))

	case models.ClientEdit:
		msg, err := g.chat.Edit(ctx, conn.UserID, event.MessageID, event.Content)
		if err != nil {
			g.writeError(conn, apperr.Message(err))
			return
		}
		g.writeEvent(conn, models.Event{Type: models.EventEdited, Message: &msg, MessageID: msg.ID})

	case models.ClientDelete:
		msg, err := g.chat.Delete(ctx, conn.UserID, event.MessageID)
		if err != nil {
			g.writeError(conn, apperr.Message(err))
			return
		}
		g.writeEvent(conn, models.Event{Type: models.EventDeleted, MessageID: msg.ID, At: msg.DeletedAt})

	case models.ClientMarkAllRead:
		n, err := g.chat.MarkAllRead(ctx, conn.UserID, event.RoomID)
		if err != nil {
			g.writeError(conn, apperr.Message(err))
			return
		}
		g.writeEvent(conn, models.Event{Type: models.EventRead, ConversationID: event.RoomID, Count: n})

	default:
		g.writeError(conn, "unknown event type")
	}
}

func (g *Gateway) handleSend(ctx context.Context, conn *Conn, event models.ClientEvent) {
	if event.GroupID != 0 {
		msg, err := g.groups.SendMessage(ctx, conn.UserID, event.GroupID, event.Content, event.TaggedUserIDs)
		if err != nil {
			g.writeError(conn, apperr.Message(err))
			return
		}
		g.writeEvent(conn, models.Event{Type: models.EventGroupMessage, GroupMessage: &msg, GroupID: msg.GroupID})
		return
	}

	receiverID := event.ReceiverID
	if receiverID == "" && event.RoomID != 0 {
		conv, err := g.chat.Conversation(ctx, conn.UserID, event.RoomID)
		if err != nil {
			g.writeError(conn, apperr.Message(err))
			return
		}
		receiverID = conv.PeerOf(conn.UserID)
	}

	msg, err := g.chat.Send(ctx, conn.UserID, receiverID, event.Content)
	if err != nil {
		g.writeError(conn, apperr.Message(err))
		return
	}
	g.writeEvent(conn, models.Event{Type: models.EventMessage, Message: &msg})
}

func (g *Gateway) writeEvent(conn *Conn, event models.Event) {
	observability.IncWSEvent("out", string(event.Type))
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("ws: write to %s: %v", conn.UserID, err)
	}
}

func (g *Gateway) writeError(conn *Conn, message string) {
	g.writeEvent(conn, models.Event{Type: models.EventError, Error: message})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}
