package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/consultas/consultas/internal/platform/auth"
)

// ErrInvalidCredentials is returned by Authenticate for a bad username,
// password, or a deactivated account. All three collapse into one error so
// login responses leak nothing about which part failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

var lettersOnly = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s]+$`)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Role                 string
	FirstName            string
	LastName             string
	IdentificationType   string
	IdentificationNumber *string
	Username             string
	Email                string
	Phone                *string
	City                 *string
	Neighborhood         *string
	Address              *string
	Password             string
}

// Register creates an active user with a hashed password. Role defaults to
// USR when empty; only names, lengths, and role membership are checked here.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if in.Role == "" {
		in.Role = RoleUser
	}
	if !ValidRole(in.Role) {
		return nil, fmt.Errorf("unknown role %q", in.Role)
	}
	if len(in.FirstName) < 2 || !lettersOnly.MatchString(in.FirstName) {
		return nil, fmt.Errorf("first name must be at least 2 letters")
	}
	if len(in.LastName) < 2 || !lettersOnly.MatchString(in.LastName) {
		return nil, fmt.Errorf("last name must be at least 2 letters")
	}
	if len(in.Username) < 3 || len(in.Username) > 60 {
		return nil, fmt.Errorf("username must be between 3 and 60 characters")
	}
	if in.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if in.IdentificationType == "" {
		in.IdentificationType = IdentificationCC
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Role:                 in.Role,
		FirstName:            in.FirstName,
		LastName:             in.LastName,
		IdentificationType:   in.IdentificationType,
		IdentificationNumber: in.IdentificationNumber,
		Username:             in.Username,
		Email:                in.Email,
		Phone:                in.Phone,
		City:                 in.City,
		Neighborhood:         in.Neighborhood,
		Address:              in.Address,
		PasswordHash:         hash,
		IsActive:             true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies a username/password pair against the store.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByID resolves a user id for the chat layer's identity lookups.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies profile field changes for the given user.
func (s *Service) UpdateProfile(ctx context.Context, u *User) error {
	if len(u.FirstName) < 2 || !lettersOnly.MatchString(u.FirstName) {
		return fmt.Errorf("first name must be at least 2 letters")
	}
	if len(u.LastName) < 2 || !lettersOnly.MatchString(u.LastName) {
		return fmt.Errorf("last name must be at least 2 letters")
	}
	return s.repo.Update(ctx, u)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if len(next) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !ValidRole(role) {
		return nil, 0, fmt.Errorf("unknown role %q", role)
	}
	return s.repo.List(ctx, role, limit, offset)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}
