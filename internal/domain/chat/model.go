package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageText  = "text"
	MessageAudio = "audio"
	MessageFile  = "file"
	MessageImage = "image"
	MessageVideo = "video"
)

func ValidMessageType(t string) bool {
	switch t {
	case MessageText, MessageAudio, MessageFile, MessageImage, MessageVideo:
		return true
	}
	return false
}

// Room is a named conversation between an owner and a receiver. The name is
// the addressable key; nothing stops two users from sharing several rooms
// under different names.
type Room struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	OwnerID    uuid.UUID `db:"owner_id" json:"owner_id"`
	ReceiverID uuid.UUID `db:"receiver_id" json:"receiver_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Message is an immutable chat entry. SenderUsername is populated by the
// repository join for serialization and never stored on the message row.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RoomID         uuid.UUID `db:"room_id" json:"room_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	Type           string    `db:"type" json:"type"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	SenderUsername string    `db:"-" json:"-"`
}

// WireMessage is the frame representation of a message. Room carries the
// room id and User the sender's username.
type WireMessage struct {
	ID        uuid.UUID `json:"id"`
	Room      uuid.UUID `json:"room"`
	User      string    `json:"user"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWire(m *Message) WireMessage {
	return WireMessage{
		ID:        m.ID,
		Room:      m.RoomID,
		User:      m.SenderUsername,
		Type:      m.Type,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// RoomPreview is a room with its most recent message, for the REST list.
type RoomPreview struct {
	Room        *Room        `json:"room"`
	LastMessage *WireMessage `json:"last_message"`
}
