package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"quix-messaging/internal/auth"
	"quix-messaging/internal/bridge"
	"quix-messaging/internal/models"
	"quix-messaging/internal/observability"
	"quix-messaging/internal/presence"
	"quix-messaging/internal/repositories"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway manages live per-user connections and routes inbound client
// events to the messaging services. Delegated-service errors are converted
// into an error event on the originating connection only.
type Gateway struct {
	hub         *Hub
	verifier    auth.TokenVerifier
	groupRepo   repositories.GroupRepository
	messageRepo repositories.MessageRepository
	tracker     presence.Tracker
	bridge      bridge.Bridge
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, verifier auth.TokenVerifier, groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, tracker presence.Tracker, fanout bridge.Bridge) *Gateway {
	return &Gateway{
		hub:         hub,
		verifier:    verifier,
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		tracker:     tracker,
		bridge:      fanout,
	}
}

// Handle authenticates and upgrades a gateway connection, then serves its
// event loop until the transport closes.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("quix-messaging/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	userID, err := g.verifier.Verify(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	g.hub.Register(conn, info)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	go g.readLoop(conn, info)
}

func (g *Gateway) readLoop(conn *websocket.Conn, info ConnInfo) {
	defer func() {
		g.hub.Unregister(conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		conn.Close()
	}()

	// the connection outlives its originating request
	ctx := context.Background()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			g.hub.SendError(conn, "malformed event")
			continue
		}
		g.dispatch(ctx, conn, info, event)
	}
}

func (g *Gateway) dispatch(ctx context.Context, conn *websocket.Conn, info ConnInfo, event models.ClientEvent) {
	observability.IncWSEvent(event.Event)

	var err error
	switch event.Event {
	case models.EventJoinGroups:
		err = g.handleJoinGroups(ctx, conn, info, event.Data)
	case models.EventSendMessage:
		err = g.handleSendMessage(ctx, conn, info, event.Data)
	case models.EventTyping:
		err = g.handleTyping(ctx, info, event.Data)
	case models.EventMarkRead:
		err = g.handleMarkRead(ctx, info, event.Data)
	default:
		err = fmt.Errorf("unknown event %q", event.Event)
	}

	if err != nil {
		g.hub.SendError(conn, userFacingError(err))
	}
}

// handleJoinGroups subscribes the connection to the group rooms the user is
// actually a member of; non-member group ids are skipped silently.
func (g *Gateway) handleJoinGroups(ctx context.Context, conn *websocket.Conn, info ConnInfo, data json.RawMessage) error {
	var payload models.JoinGroupsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid join_groups payload: %w", err)
	}

	for _, groupID := range payload.GroupIDs {
		member, err := g.groupRepo.IsMember(ctx, groupID, info.UserID)
		if err != nil {
			return err
		}
		if member {
			g.hub.JoinGroup(conn, groupID)
		}
	}
	return nil
}

// handleSendMessage persists the message, acks the originating connection
// with its correlation token, broadcasts to the group room and notifies
// members without a connection in the room. The fan-out bridge publish is
// detached and best-effort; persistence failures surface as an error event.
func (g *Gateway) handleSendMessage(ctx context.Context, conn *websocket.Conn, info ConnInfo, data json.RawMessage) error {
	var payload models.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid send_message payload: %w", err)
	}
	if payload.Type == "" {
		payload.Type = models.MessageTypeText
	}

	member, err := g.groupRepo.IsMember(ctx, payload.GroupID, info.UserID)
	if err != nil {
		return err
	}
	if !member {
		return repositories.ErrGroupNotFound
	}

	msg, err := g.messageRepo.CreateMessage(ctx, payload.GroupID, info.UserID, payload.Content, payload.Type, payload.Metadata)
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	g.bridge.PublishMessage(ctx, msg)

	g.hub.SendToConn(conn, models.ServerEvent{
		Event: models.EventNewMessage,
		Data:  models.NewMessageEvent{Message: &msg, ClientRef: payload.ClientRef},
	})
	g.hub.BroadcastToGroup(payload.GroupID, models.ServerEvent{
		Event: models.EventNewMessage,
		Data:  models.NewMessageEvent{Message: &msg},
	}, conn)

	g.notifyAbsentMembers(ctx, msg)
	return nil
}

// notifyAbsentMembers emits the lighter notification event to members who
// do not hold a connection in the group room.
func (g *Gateway) notifyAbsentMembers(ctx context.Context, msg models.Message) {
	memberIDs, err := g.groupRepo.ActiveMemberIDs(ctx, msg.GroupID)
	if err != nil {
		return
	}

	viewing := g.hub.UsersInGroupRoom(msg.GroupID)
	notification := models.ServerEvent{
		Event: models.EventNewMessageNotif,
		Data: models.MessageNotification{
			GroupID:   msg.GroupID,
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
			Preview:   preview(msg.Content),
		},
	}
	for _, memberID := range memberIDs {
		if memberID == msg.SenderID || viewing[memberID] {
			continue
		}
		g.hub.SendToUser(memberID, notification)
	}
}

func (g *Gateway) handleTyping(ctx context.Context, info ConnInfo, data json.RawMessage) error {
	var payload models.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid typing payload: %w", err)
	}

	member, err := g.groupRepo.IsMember(ctx, payload.GroupID, info.UserID)
	if err != nil {
		return err
	}
	if !member {
		return repositories.ErrGroupNotFound
	}

	if err := g.tracker.SetTyping(ctx, info.UserID, payload.GroupID, payload.IsTyping); err != nil {
		return fmt.Errorf("update typing state: %w", err)
	}
	observability.IncTypingUpdate()

	g.hub.BroadcastToGroupExceptUser(payload.GroupID, info.UserID, models.ServerEvent{
		Event: models.EventUserTyping,
		Data:  models.TypingEvent{GroupID: payload.GroupID, UserID: info.UserID, IsTyping: payload.IsTyping},
	})
	g.bridge.PublishTyping(ctx, info.UserID, payload.GroupID, payload.IsTyping)
	return nil
}

// handleMarkRead records the read and broadcasts the receipt. The receipt's
// group comes from the stored message, never from the client.
func (g *Gateway) handleMarkRead(ctx context.Context, info ConnInfo, data json.RawMessage) error {
	var payload models.MarkReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid mark_read payload: %w", err)
	}

	msg, err := g.messageRepo.GetMessage(ctx, payload.MessageID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}

	member, err := g.groupRepo.IsMember(ctx, msg.GroupID, info.UserID)
	if err != nil {
		return err
	}
	if !member {
		return repositories.ErrMessageNotFound
	}

	if err := g.messageRepo.MarkAsRead(ctx, payload.MessageID, info.UserID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	g.hub.BroadcastToGroup(msg.GroupID, models.ServerEvent{
		Event: models.EventMessageRead,
		Data:  models.ReadReceiptEvent{GroupID: msg.GroupID, MessageID: payload.MessageID, UserID: info.UserID},
	}, nil)
	return nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}

func userFacingError(err error) string {
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound):
		return "group not found"
	case errors.Is(err, repositories.ErrMessageNotFound):
		return "message not found"
	default:
		return err.Error()
	}
}

func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
