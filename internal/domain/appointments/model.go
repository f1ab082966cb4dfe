package appointments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypePsychosocial = "PSY"
	TypeLegal        = "LEG"
)

func ValidType(t string) bool {
	return t == TypePsychosocial || t == TypeLegal
}

// Appointment is a consultation request filed by a patient, optionally
// assigned to a doctor. Children and Aggressor hold free-form JSON documents
// describing the involved parties.
type Appointment struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID    *uuid.UUID      `db:"doctor_id" json:"doctor_id"`
	Type        string          `db:"type" json:"type"`
	Children    json.RawMessage `db:"children" json:"children,omitempty"`
	Aggressor   json.RawMessage `db:"aggressor" json:"aggressor,omitempty"`
	Description string          `db:"description" json:"description"`
	Audio       *string         `db:"audio" json:"audio,omitempty"`
	StartDate   *time.Time      `db:"start_date" json:"start_date"`
	EndDate     *time.Time      `db:"end_date" json:"end_date"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Multimedia is a file attached to an appointment. The binary itself lives on
// disk under the configured media directory; only metadata is stored.
type Multimedia struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	FileName      string    `db:"file_name" json:"file_name"`
	ContentType   string    `db:"content_type" json:"content_type"`
	Size          int64     `db:"size" json:"size"`
	StorageKey    string    `db:"storage_key" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
