package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/consultas/consultas/internal/domain/accounts"
	"github.com/consultas/consultas/internal/platform/media"
)

// ErrForbidden is returned when the acting user's role does not allow the
// requested access to an appointment.
var ErrForbidden = errors.New("appointment access denied")

var multimediaExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".pdf": {},
}

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".mp4": {}, ".ogg": {}, ".m4a": {},
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) admin() bool  { return a.Role == accounts.RoleAdmin }
func (a Actor) doctor() bool { return a.Role == accounts.RoleDoctor }

type Service struct {
	repo  Repository
	files media.Store
}

func NewService(repo Repository, files media.Store) *Service {
	return &Service{repo: repo, files: files}
}

// canSee reports whether the actor may read or modify the appointment.
// Admins see everything, doctors their assignments, patients their own.
func canSee(actor Actor, a *Appointment) bool {
	if actor.admin() {
		return true
	}
	if actor.doctor() {
		return a.DoctorID != nil && *a.DoctorID == actor.ID
	}
	return a.PatientID == actor.ID
}

type CreateInput struct {
	DoctorID    *uuid.UUID
	Type        string
	Children    json.RawMessage
	Aggressor   json.RawMessage
	Description string
	Audio       *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// Create files an appointment for the actor. Plain users always create for
// themselves; a doctor assignment may only be set by doctors or admins.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Appointment, error) {
	if !ValidType(in.Type) {
		return nil, fmt.Errorf("unknown appointment type %q", in.Type)
	}
	if in.Audio != nil {
		if err := checkExtension(*in.Audio, audioExtensions); err != nil {
			return nil, err
		}
	}
	if in.DoctorID != nil && !actor.admin() && !actor.doctor() {
		return nil, ErrForbidden
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, fmt.Errorf("end date precedes start date")
	}

	a := &Appointment{
		PatientID:   actor.ID,
		DoctorID:    in.DoctorID,
		Type:        in.Type,
		Children:    in.Children,
		Aggressor:   in.Aggressor,
		Description: in.Description,
		Audio:       in.Audio,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

// List returns the appointments visible to the actor. The filter's patient
// and doctor constraints are overridden by the actor's role scope.
func (s *Service) List(ctx context.Context, actor Actor, f ListFilter) ([]*Appointment, int, error) {
	if f.Type != "" && !ValidType(f.Type) {
		return nil, 0, fmt.Errorf("unknown appointment type %q", f.Type)
	}
	switch {
	case actor.admin():
		// no scope restriction
	case actor.doctor():
		f.DoctorID = actor.ID
		f.PatientID = uuid.Nil
	default:
		f.PatientID = actor.ID
		f.DoctorID = uuid.Nil
	}
	return s.repo.List(ctx, f)
}

type UpdateInput struct {
	DoctorID    *uuid.UUID
	Type        string
	Children    json.RawMessage
	Aggressor   json.RawMessage
	Description string
	Audio       *string
	StartDate   *time.Time
	EndDate     *time.Time
}

func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, a) {
		return nil, ErrForbidden
	}
	if !ValidType(in.Type) {
		return nil, fmt.Errorf("unknown appointment type %q", in.Type)
	}
	if in.Audio != nil {
		if err := checkExtension(*in.Audio, audioExtensions); err != nil {
			return nil, err
		}
	}
	if in.DoctorID != nil && !actor.admin() && !actor.doctor() {
		return nil, ErrForbidden
	}

	a.DoctorID = in.DoctorID
	a.Type = in.Type
	a.Children = in.Children
	a.Aggressor = in.Aggressor
	a.Description = in.Description
	a.Audio = in.Audio
	a.StartDate = in.StartDate
	a.EndDate = in.EndDate
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an appointment. Admin only.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.admin() {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func checkExtension(fileName string, allowed map[string]struct{}) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowed[ext]; !ok {
		return fmt.Errorf("file extension %q not allowed", ext)
	}
	return nil
}

// AddMultimedia stores the uploaded file and attaches its metadata to an
// appointment the actor can see.
func (s *Service) AddMultimedia(ctx context.Context, actor Actor, appointmentID uuid.UUID, fileName, contentType string, r io.Reader) (*Multimedia, error) {
	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, a) {
		return nil, ErrForbidden
	}
	if err := checkExtension(fileName, multimediaExtensions); err != nil {
		return nil, err
	}

	obj, err := s.files.Save(ctx, appointmentID, fileName, r)
	if err != nil {
		return nil, err
	}

	m := &Multimedia{
		AppointmentID: appointmentID,
		FileName:      fileName,
		ContentType:   contentType,
		Size:          obj.Size,
		StorageKey:    obj.Key,
	}
	if err := s.repo.AddMultimedia(ctx, m); err != nil {
		s.files.Delete(ctx, obj.Key)
		return nil, err
	}
	return m, nil
}

// OpenMultimedia returns the stored bytes of an attachment for download.
func (s *Service) OpenMultimedia(ctx context.Context, actor Actor, appointmentID, mediaID uuid.UUID) (*Multimedia, io.ReadCloser, error) {
	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	if !canSee(actor, a) {
		return nil, nil, ErrForbidden
	}

	m, err := s.repo.GetMultimedia(ctx, mediaID)
	if err != nil {
		return nil, nil, err
	}
	if m.AppointmentID != appointmentID {
		return nil, nil, ErrNotFound
	}

	rc, err := s.files.Open(ctx, m.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return m, rc, nil
}

func (s *Service) ListMultimedia(ctx context.Context, actor Actor, appointmentID uuid.UUID) ([]*Multimedia, error) {
	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, a) {
		return nil, ErrForbidden
	}
	return s.repo.ListMultimedia(ctx, appointmentID)
}

func (s *Service) DeleteMultimedia(ctx context.Context, actor Actor, appointmentID, mediaID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !canSee(actor, a) {
		return ErrForbidden
	}

	m, err := s.repo.GetMultimedia(ctx, mediaID)
	if err != nil {
		return err
	}
	if m.AppointmentID != appointmentID {
		return ErrNotFound
	}
	if err := s.repo.DeleteMultimedia(ctx, mediaID); err != nil {
		return err
	}
	// The row is gone either way; a stale file on disk is harmless.
	s.files.Delete(ctx, m.StorageKey)
	return nil
}
