package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consultas/consultas/internal/domain/accounts"
)

// ErrForbidden is returned by the REST history lookup when the requester is
// neither a participant nor an admin.
var ErrForbidden = errors.New("chat: access denied")

// Identity resolves message participants. Satisfied by accounts.Service.
type Identity interface {
	FindByID(ctx context.Context, id uuid.UUID) (*accounts.User, error)
}

// TxRunner runs fn atomically. A nil runner executes fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	rooms    RoomRepository
	messages MessageRepository
	identity Identity
	runTx    TxRunner
	log      zerolog.Logger
}

func NewService(rooms RoomRepository, messages MessageRepository, identity Identity, runTx TxRunner, log zerolog.Logger) *Service {
	return &Service{rooms: rooms, messages: messages, identity: identity, runTx: runTx, log: log}
}

// transient reports whether a store failure is worth one retry. Domain
// sentinels and context cancellation are final.
func transient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// CreateMessage resolves the receiver, lands on the named room (creating it
// if absent with the sender as owner), and appends the message. The store
// write is never retried; a duplicate from a retry would be indistinguishable
// from a real message.
func (s *Service) CreateMessage(ctx context.Context, sender *accounts.User, roomName string, receiverID uuid.UUID, content, msgType string) (WireMessage, error) {
	if content == "" {
		return WireMessage{}, ErrEmptyContent
	}
	if msgType == "" {
		msgType = MessageText
	}
	if !ValidMessageType(msgType) {
		return WireMessage{}, errors.New("chat: unknown message type " + msgType)
	}

	receiver, err := s.identity.FindByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return WireMessage{}, ErrNotFound
		}
		return WireMessage{}, err
	}

	// Room upsert and append share one transaction so a failed append does
	// not leave an empty room behind.
	var m *Message
	op := func(ctx context.Context) error {
		room, err := s.rooms.GetOrCreate(ctx, roomName, sender.ID, receiver.ID)
		if err != nil {
			return err
		}
		m = &Message{
			RoomID:         room.ID,
			SenderID:       sender.ID,
			Type:           msgType,
			Content:        content,
			SenderUsername: sender.Username,
		}
		return s.messages.Append(ctx, m)
	}
	if s.runTx != nil {
		err = s.runTx(ctx, op)
	} else {
		err = op(ctx)
	}
	if err != nil {
		return WireMessage{}, err
	}
	return toWire(m), nil
}

// FetchMessages returns the named room's full history in stable order. Reads
// are idempotent, so a transient store failure gets one retry.
func (s *Service) FetchMessages(ctx context.Context, roomName string) ([]WireMessage, error) {
	msgs, err := s.fetch(ctx, roomName)
	if transient(err) {
		s.log.Warn().Err(err).Str("room", roomName).Msg("message fetch failed, retrying once")
		msgs, err = s.fetch(ctx, roomName)
	}
	if err != nil {
		return nil, err
	}

	out := make([]WireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toWire(m)
	}
	return out, nil
}

func (s *Service) fetch(ctx context.Context, roomName string) ([]*Message, error) {
	room, err := s.rooms.GetByName(ctx, roomName)
	if err != nil {
		return nil, err
	}
	return s.messages.ListByRoom(ctx, room.ID)
}

// RoomsForUser lists the user's rooms with last-message previews.
func (s *Service) RoomsForUser(ctx context.Context, userID uuid.UUID) ([]RoomPreview, error) {
	rooms, err := s.rooms.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]RoomPreview, 0, len(rooms))
	for _, room := range rooms {
		preview := RoomPreview{Room: room}
		last, err := s.messages.LastMessage(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			w := toWire(last)
			preview.LastMessage = &w
		}
		out = append(out, preview)
	}
	return out, nil
}

// RoomMessages serves the REST history endpoint. Participants and admins
// only.
func (s *Service) RoomMessages(ctx context.Context, userID uuid.UUID, role, roomName string) ([]WireMessage, error) {
	room, err := s.rooms.GetByName(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if role != accounts.RoleAdmin && room.OwnerID != userID && room.ReceiverID != userID {
		return nil, ErrForbidden
	}

	msgs, err := s.messages.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	out := make([]WireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toWire(m)
	}
	return out, nil
}
