package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consultas/consultas/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, role, first_name, last_name, identification_type, identification_number,
	username, email, phone, city, neighborhood, address, password_hash,
	is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Role, &u.FirstName, &u.LastName, &u.IdentificationType,
		&u.IdentificationNumber, &u.Username, &u.Email, &u.Phone, &u.City,
		&u.Neighborhood, &u.Address, &u.PasswordHash, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// mapErr translates pgx-level failures into the package's sentinel errors.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO account_user (id, role, first_name, last_name, identification_type,
			identification_number, username, email, phone, city, neighborhood, address,
			password_hash, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		u.ID, u.Role, u.FirstName, u.LastName, u.IdentificationType,
		u.IdentificationNumber, u.Username, u.Email, u.Phone, u.City,
		u.Neighborhood, u.Address, u.PasswordHash, u.IsActive)
	return mapErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM account_user WHERE id = $1`, id))
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM account_user WHERE username = $1`, username))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM account_user WHERE email = $1`, email))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE account_user SET first_name=$2, last_name=$3, identification_type=$4,
			identification_number=$5, email=$6, phone=$7, city=$8, neighborhood=$9,
			address=$10, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.IdentificationType,
		u.IdentificationNumber, u.Email, u.Phone, u.City, u.Neighborhood,
		u.Address)
	return mapErr(err)
}

func (r *repoPG) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE account_user SET password_hash=$2, updated_at=NOW() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE account_user SET is_active=FALSE, updated_at=NOW() WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	where := ``
	countArgs := []interface{}{}
	dataArgs := []interface{}{limit, offset}
	if role != "" {
		where = ` WHERE role = $1`
		countArgs = append(countArgs, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM account_user`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	query := `SELECT ` + userCols + ` FROM account_user`
	if role != "" {
		query += ` WHERE role = $3`
		dataArgs = append(dataArgs, role)
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.conn(ctx).Query(ctx, query, dataArgs...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, nil
}
