package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/domain/ids"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must not exceed 72 bytes")
)

// BcryptCost is the cost factor for password hashing.
const BcryptCost = 12

type InvalidFieldError struct {
	Field   string
	Message string
}

func (e InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type RegisterParams struct {
	Username string `validate:"required,min=3,max=64,alphanumunicode"`
	Email    string `validate:"omitempty,email,max=254"`
	Password string
}

type Service struct {
	repo     Repository
	validate *validator.Validate
	newID    ids.Generator
	cost     int
	logger   zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		newID:    ids.NewULID,
		cost:     BcryptCost,
		logger:   logger.With().Str("component", "users").Logger(),
	}
}

// WithBcryptCost returns a copy of the service hashing at cost. Tests use
// bcrypt.MinCost.
func (s *Service) WithBcryptCost(cost int) *Service {
	copied := *s
	copied.cost = cost
	return &copied
}

// Register creates an ordinary user account.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	return s.create(ctx, params, string(auth.RoleUser))
}

// Authenticate checks a username and password. Unknown usernames and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error().Err(err).Msg("user lookup failed")
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user authenticated")
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, ids.Normalize(id))
}

// EnsureAdmin creates the bootstrap administrator, or promotes an existing
// account with that username. It does not change an existing password.
func (s *Service) EnsureAdmin(ctx context.Context, params RegisterParams) (*User, error) {
	existing, err := s.repo.GetByUsername(ctx, strings.TrimSpace(params.Username))
	switch {
	case err == nil:
		if auth.IsAdmin(existing.Role) {
			return existing, nil
		}
		if _, err := s.repo.UpdateRole(ctx, existing.ID, string(auth.RoleAdmin)); err != nil {
			return nil, fmt.Errorf("promote user: %w", err)
		}
		existing.Role = string(auth.RoleAdmin)
		s.logger.Info().Str("user_id", existing.ID).Msg("promoted bootstrap admin")
		return existing, nil
	case errors.Is(err, ErrNotFound):
		user, err := s.create(ctx, params, string(auth.RoleAdmin))
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("user_id", user.ID).Msg("created bootstrap admin")
		return user, nil
	default:
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
}

func (s *Service) create(ctx context.Context, params RegisterParams, role string) (*User, error) {
	params.Username = strings.TrimSpace(params.Username)
	params.Email = strings.TrimSpace(params.Email)
	if err := s.validateParams(params); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("mint user id: %w", err)
	}
	user, err := s.repo.Create(ctx, CreateParams{
		ID:           id,
		Username:     params.Username,
		Email:        params.Email,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", role).Msg("user registered")
	return user, nil
}

func (s *Service) validateParams(params RegisterParams) error {
	if err := s.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return InvalidFieldError{Field: strings.ToLower(fe.Field()), Message: fmt.Sprintf("failed %s check", fe.Tag())}
		}
		return err
	}
	return validatePassword(params.Password)
}

// validatePassword enforces length only. bcrypt rejects inputs over 72 bytes.
func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}
