package appointments

import (
	"context"
	"errors"
	"fmt"

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

const appointmentCols = `id, patient_id, doctor_id, type, children, aggressor,
	description, audio, start_date, end_date, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Type, &a.Children,
		&a.Aggressor, &a.Description, &a.Audio, &a.StartDate, &a.EndDate,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, type, children, aggressor,
			description, audio, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Type, a.Children, a.Aggressor,
		a.Description, a.Audio, a.StartDate, a.EndDate)
	return row.Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET doctor_id=$2, type=$3, children=$4, aggressor=$5,
			description=$6, audio=$7, start_date=$8, end_date=$9, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.DoctorID, a.Type, a.Children, a.Aggressor, a.Description,
		a.Audio, a.StartDate, a.EndDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	next := func() string { n++; return fmt.Sprintf("$%d", n) }

	if f.Type != "" {
		where += ` AND type = ` + next()
		args = append(args, f.Type)
	}
	if f.PatientID != uuid.Nil {
		where += ` AND patient_id = ` + next()
		args = append(args, f.PatientID)
	}
	if f.DoctorID != uuid.Nil {
		where += ` AND doctor_id = ` + next()
		args = append(args, f.DoctorID)
	}
	if f.From != nil {
		where += ` AND start_date >= ` + next()
		args = append(args, *f.From)
	}
	if f.To != nil {
		where += ` AND start_date <= ` + next()
		args = append(args, *f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + appointmentCols + ` FROM appointment` + where +
		` ORDER BY created_at DESC LIMIT ` + next()
	args = append(args, f.Limit)
	query += ` OFFSET ` + next()
	args = append(args, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

const multimediaCols = `id, appointment_id, file_name, content_type, size, storage_key, created_at`

func scanMultimedia(row pgx.Row) (*Multimedia, error) {
	var m Multimedia
	err := row.Scan(&m.ID, &m.AppointmentID, &m.FileName, &m.ContentType,
		&m.Size, &m.StorageKey, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) AddMultimedia(ctx context.Context, m *Multimedia) error {
	m.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment_multimedia (id, appointment_id, file_name, content_type, size, storage_key)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		m.ID, m.AppointmentID, m.FileName, m.ContentType, m.Size, m.StorageKey)
	return row.Scan(&m.CreatedAt)
}

func (r *repoPG) GetMultimedia(ctx context.Context, id uuid.UUID) (*Multimedia, error) {
	return scanMultimedia(r.conn(ctx).QueryRow(ctx,
		`SELECT `+multimediaCols+` FROM appointment_multimedia WHERE id = $1`, id))
}

func (r *repoPG) ListMultimedia(ctx context.Context, appointmentID uuid.UUID) ([]*Multimedia, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+multimediaCols+` FROM appointment_multimedia WHERE appointment_id = $1
		ORDER BY created_at ASC`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Multimedia
	for rows.Next() {
		m, err := scanMultimedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *repoPG) DeleteMultimedia(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment_multimedia WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
