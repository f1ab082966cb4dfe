package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/consultas/consultas/internal/domain/accounts"
	"github.com/consultas/consultas/internal/platform/auth"
	"github.com/consultas/consultas/internal/platform/ws"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
)

const (
	commandCreateMessage = "create_message"
	commandFetchMessages = "fetch_messages"
	commandError         = "error"
)

type frame struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

type createMessageData struct {
	RoomName     string `json:"room_name"`
	UserReceiver string `json:"user_receiver"` // receiver's user id
	Content      string `json:"content"`
	Type         string `json:"type"`
}

type messageFrame struct {
	Command string      `json:"command"`
	Message WireMessage `json:"message"`
}

type historyFrame struct {
	Command  string        `json:"command"`
	Messages []WireMessage `json:"messages"`
}

type errorFrame struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

// Consumer serves the chat websocket endpoint. Each connection joins the
// group named by the path's room and runs one read and one write pump.
type Consumer struct {
	hub      ws.GroupRegistry
	tokens   *auth.TokenService
	identity Identity
	svc      *Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewConsumer(hub ws.GroupRegistry, tokens *auth.TokenService, identity Identity, svc *Service, log zerolog.Logger) *Consumer {
	return &Consumer{
		hub:      hub,
		tokens:   tokens,
		identity: identity,
		svc:      svc,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (con *Consumer) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/v1/chat/:room_name", con.Serve)
}

// authenticate resolves the ?token= query parameter to a user. Every failure
// mode, missing token, bad signature, unknown subject, deactivated account,
// yields the anonymous sentinel (nil) rather than an error: the connection is
// accepted and the command handlers reject anonymous senders instead.
func (con *Consumer) authenticate(ctx context.Context, token string) *accounts.User {
	if token == "" {
		return nil
	}
	claims, err := con.tokens.Verify(token)
	if err != nil {
		return nil
	}
	id, err := claims.UserID()
	if err != nil {
		return nil
	}
	u, err := con.identity.FindByID(ctx, id)
	if err != nil || !u.IsActive {
		return nil
	}
	return u
}

func (con *Consumer) Serve(c echo.Context) error {
	roomName := c.Param("room_name")
	if roomName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room name required")
	}

	user := con.authenticate(c.Request().Context(), c.QueryParam("token"))

	conn, err := con.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := ws.NewClient()
	con.hub.Join(roomName, client)

	username := "anonymous"
	if user != nil {
		username = user.Username
	}
	con.log.Info().Str("room", roomName).Str("user", username).Str("client", client.ID).
		Msg("chat connection opened")

	go con.writePump(conn, client)
	con.readPump(c.Request().Context(), conn, client, roomName, user)

	con.hub.Leave(roomName, client)
	close(client.Send)
	con.log.Info().Str("room", roomName).Str("client", client.ID).Msg("chat connection closed")
	return nil
}

func (con *Consumer) readPump(ctx context.Context, conn *websocket.Conn, client *ws.Client, roomName string, user *accounts.User) {
	defer conn.Close()
	conn.SetReadLimit(maxMsgSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				con.log.Debug().Err(err).Str("client", client.ID).Msg("chat read error")
			}
			return
		}
		con.dispatch(ctx, client, roomName, user, raw)
	}
}

// dispatch handles one inbound frame. Malformed or failing frames answer the
// requester with an error frame and never terminate the session.
func (con *Consumer) dispatch(ctx context.Context, client *ws.Client, roomName string, user *accounts.User, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		con.sendError(client, "malformed frame")
		return
	}

	switch f.Command {
	case commandCreateMessage:
		con.handleCreateMessage(ctx, client, user, f.Data)
	case commandFetchMessages:
		con.handleFetchMessages(ctx, client, roomName, user)
	default:
		con.sendError(client, "unrecognized command "+f.Command)
	}
}

func (con *Consumer) handleCreateMessage(ctx context.Context, client *ws.Client, user *accounts.User, data json.RawMessage) {
	if user == nil {
		con.sendError(client, "authentication required")
		return
	}

	var d createMessageData
	if err := json.Unmarshal(data, &d); err != nil {
		con.sendError(client, "malformed create_message data")
		return
	}
	receiverID, err := uuid.Parse(d.UserReceiver)
	if err != nil {
		con.sendError(client, "receiver not found")
		return
	}

	wire, err := con.svc.CreateMessage(ctx, user, d.RoomName, receiverID, d.Content, d.Type)
	if err != nil {
		con.sendError(client, createMessageError(err))
		return
	}

	payload, err := json.Marshal(messageFrame{Command: commandCreateMessage, Message: wire})
	if err != nil {
		con.sendError(client, "failed to serialize message")
		return
	}
	con.hub.Publish(d.RoomName, payload)
}

func createMessageError(err error) string {
	switch {
	case errors.Is(err, ErrEmptyContent):
		return "message content is empty"
	case errors.Is(err, ErrNotFound):
		return "receiver not found"
	default:
		return err.Error()
	}
}

func (con *Consumer) handleFetchMessages(ctx context.Context, client *ws.Client, roomName string, user *accounts.User) {
	if user == nil {
		con.sendError(client, "authentication required")
		return
	}

	msgs, err := con.svc.FetchMessages(ctx, roomName)
	switch {
	case errors.Is(err, ErrNotFound):
		// Rooms are only created when the first message is stored, so a
		// room nobody has written to yet simply has an empty history.
		msgs = nil
	case err != nil:
		con.sendError(client, "failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []WireMessage{}
	}

	payload, err := json.Marshal(historyFrame{Command: commandFetchMessages, Messages: msgs})
	if err != nil {
		con.sendError(client, "failed to serialize history")
		return
	}
	con.sendTo(client, payload)
}

// sendTo delivers to one client only, dropping on a full buffer the same way
// the hub fan-out does.
func (con *Consumer) sendTo(client *ws.Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		con.log.Warn().Str("client", client.ID).Msg("send buffer full, frame dropped")
	}
}

func (con *Consumer) sendError(client *ws.Client, msg string) {
	payload, err := json.Marshal(errorFrame{Command: commandError, Error: msg})
	if err != nil {
		return
	}
	con.sendTo(client, payload)
}

func (con *Consumer) writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				con.log.Debug().Err(err).Str("client", client.ID).Msg("chat write error")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
