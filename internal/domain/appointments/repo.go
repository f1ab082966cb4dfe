package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appointment not found")

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	Type      string
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Appointment, int, error)

	AddMultimedia(ctx context.Context, m *Multimedia) error
	GetMultimedia(ctx context.Context, id uuid.UUID) (*Multimedia, error)
	ListMultimedia(ctx context.Context, appointmentID uuid.UUID) ([]*Multimedia, error)
	DeleteMultimedia(ctx context.Context, id uuid.UUID) error
}
