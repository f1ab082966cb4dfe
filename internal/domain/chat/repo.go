package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("chat: not found")
	ErrEmptyContent = errors.New("chat: message content is empty")
)

// RoomRepository is the room directory.
type RoomRepository interface {
	// GetOrCreate returns the room named name, creating it atomically if
	// absent. An existing room is returned unchanged regardless of the
	// owner/receiver arguments.
	GetOrCreate(ctx context.Context, name string, ownerID, receiverID uuid.UUID) (*Room, error)
	GetByName(ctx context.Context, name string) (*Room, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Room, error)
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	// ListByRoom returns the room's full history ordered by created_at
	// then id, with sender usernames resolved.
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*Message, error)
	// LastMessage returns the newest message in the room, or nil when the
	// room is empty.
	LastMessage(ctx context.Context, roomID uuid.UUID) (*Message, error)
}
