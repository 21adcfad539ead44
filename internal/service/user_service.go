package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quillpost/internal/auth"
	"quillpost/internal/domain"
	"quillpost/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists is returned when attempting to register with an existing email.
	ErrUserAlreadyExists = errors.New("email already registered")
)

// Credentials is the register and login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate returns validation.Errors keyed by json field name.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(8, 72)),
	)
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        *domain.User
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, creds Credentials) (*domain.User, error)
	Login(ctx context.Context, creds Credentials) (*Session, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// EnsureSuperuser creates the account as superuser, promoting it when the email is already registered.
	EnsureSuperuser(ctx context.Context, creds Credentials) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	auth   *auth.Authenticator
	logger logrus.FieldLogger

	dummyHash func(ctx context.Context) string
}

func NewUserService(users repository.UserRepository, authenticator *auth.Authenticator, logger logrus.FieldLogger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	s := &userService{
		users:  users,
		auth:   authenticator,
		logger: logger,
	}
	s.dummyHash = onceHash(authenticator)
	return s
}

func (s *userService) Register(ctx context.Context, creds Credentials) (*domain.User, error) {
	return s.create(ctx, creds, false)
}

func (s *userService) EnsureSuperuser(ctx context.Context, creds Credentials) (*domain.User, error) {
	user, err := s.create(ctx, creds, true)
	if !errors.Is(err, ErrUserAlreadyExists) {
		return user, err
	}

	existing, err := s.users.GetByEmail(ctx, auth.NormalizeEmail(creds.Email))
	if err != nil {
		return nil, fmt.Errorf("load superuser: %w", err)
	}
	if !existing.IsSuperuser {
		if err := s.users.SetSuperuser(ctx, existing.ID, true); err != nil {
			return nil, fmt.Errorf("promote superuser: %w", err)
		}
		existing.IsSuperuser = true
		s.logger.WithField("user_id", existing.ID).Warn("existing account promoted to superuser")
	}
	return sanitizeUser(existing), nil
}

func (s *userService) create(ctx context.Context, creds Credentials, superuser bool) (*domain.User, error) {
	creds.Email = auth.NormalizeEmail(creds.Email)
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.auth.RegisterCredential(ctx, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        creds.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  superuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, creds Credentials) (*Session, error) {
	email := auth.NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// equalise timing with the known-email path
			s.auth.Authenticate(ctx, creds.Password, s.dummyHash(ctx))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.auth.Authenticate(ctx, creds.Password, user.PasswordHash) || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.IssueSessionToken(user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &Session{
		AccessToken: token,
		ExpiresIn:   s.auth.SessionTTL(),
		User:        sanitizeUser(user),
	}, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func onceHash(a *auth.Authenticator) func(ctx context.Context) string {
	var (
		mu   sync.Mutex
		hash string
	)
	return func(ctx context.Context) string {
		mu.Lock()
		defer mu.Unlock()
		if hash != "" {
			return hash
		}
		h, err := a.RegisterCredential(ctx, uuid.NewString())
		if err != nil {
			return ""
		}
		hash = h
		return hash
	}
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:          user.ID,
		Email:       user.Email,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}
