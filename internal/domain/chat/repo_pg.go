package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consultas/consultas/internal/platform/db"
	"github.com/consultas/consultas/internal/platform/privacy"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type roomRepoPG struct{ pool *pgxpool.Pool }

func NewRoomRepoPG(pool *pgxpool.Pool) RoomRepository {
	return &roomRepoPG{pool: pool}
}

func (r *roomRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const roomCols = `id, name, owner_id, receiver_id, created_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	err := row.Scan(&rm.ID, &rm.Name, &rm.OwnerID, &rm.ReceiverID, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// GetOrCreate upserts on the name unique constraint. The no-op DO UPDATE
// makes RETURNING yield the existing row instead of failing, so a concurrent
// pair of calls both land on the same room in a single statement.
func (r *roomRepoPG) GetOrCreate(ctx context.Context, name string, ownerID, receiverID uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat_room (id, name, owner_id, receiver_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+roomCols,
		uuid.New(), name, ownerID, receiverID))
}

func (r *roomRepoPG) GetByName(ctx context.Context, name string) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx,
		`SELECT `+roomCols+` FROM chat_room WHERE name = $1`, name))
}

func (r *roomRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Room, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+roomCols+` FROM chat_room
		WHERE owner_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rm)
	}
	return items, nil
}

type messageRepoPG struct {
	pool  *pgxpool.Pool
	codec privacy.Codec
}

// NewMessageRepoPG stores message content through codec; a fingerprint of
// the plaintext is kept beside the ciphertext for equality lookups.
func NewMessageRepoPG(pool *pgxpool.Pool, codec privacy.Codec) MessageRepository {
	return &messageRepoPG{pool: pool, codec: codec}
}

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const messageCols = `m.id, m.room_id, m.sender_id, m.type, m.content, m.created_at, m.updated_at, u.username`

func (r *messageRepoPG) scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Type, &m.Content,
		&m.CreatedAt, &m.UpdatedAt, &m.SenderUsername)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	plain, err := r.codec.Decode(m.Content)
	if err != nil {
		return nil, err
	}
	m.Content = plain
	return &m, nil
}

func (r *messageRepoPG) Append(ctx context.Context, m *Message) error {
	stored, err := r.codec.Encode(m.Content)
	if err != nil {
		return err
	}

	m.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat_message (id, room_id, sender_id, type, content, content_fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		m.ID, m.RoomID, m.SenderID, m.Type, stored, privacy.Fingerprint(m.Content))
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *messageRepoPG) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+messageCols+` FROM chat_message m
		JOIN account_user u ON u.id = m.sender_id
		WHERE m.room_id = $1
		ORDER BY m.created_at ASC, m.id ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *messageRepoPG) LastMessage(ctx context.Context, roomID uuid.UUID) (*Message, error) {
	m, err := r.scanMessage(r.conn(ctx).QueryRow(ctx, `
		SELECT `+messageCols+` FROM chat_message m
		JOIN account_user u ON u.id = m.sender_id
		WHERE m.room_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1`, roomID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return m, err
}
