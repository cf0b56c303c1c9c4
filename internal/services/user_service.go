package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	domain "github.com/spokeworks/api/internal/domain"
	"github.com/spokeworks/api/internal/platform/auth"
	"github.com/spokeworks/api/internal/platform/observability"
	"github.com/spokeworks/api/internal/repositories"
)

const minPasswordLength = 8

var (
	// ErrUserInvalidInput signals the caller provided invalid account data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the account could not be located.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUsernameTaken indicates registration collided with an existing username.
	ErrUsernameTaken = errors.New("user: username already taken")
	// ErrInvalidCredentials indicates the username or password did not match.
	ErrInvalidCredentials = errors.New("user: invalid credentials")

	usernamePattern = regexp.MustCompile(`^[a-z0-9_.-]{3,40}$`)
)

// TokenIssuer signs an identity into a bearer token. *auth.TokenService satisfies it.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users  repositories.UserRepository
	Tokens TokenIssuer
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)

	// HashPassword and VerifyPassword default to the bcrypt helpers and exist
	// so tests can avoid bcrypt cost.
	HashPassword   func(password string) (string, error)
	VerifyPassword func(hash, password string) error
}

type userService struct {
	users          repositories.UserRepository
	tokens         TokenIssuer
	clock          func() time.Time
	logger         func(context.Context, string, map[string]any)
	hashPassword   func(string) (string, error)
	verifyPassword func(string, string) error
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("user service: token issuer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	hash := deps.HashPassword
	if hash == nil {
		hash = auth.HashPassword
	}

	verify := deps.VerifyPassword
	if verify == nil {
		verify = auth.VerifyPassword
	}

	return &userService{
		users:  deps.Users,
		tokens: deps.Tokens,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:         logger,
		hashPassword:   hash,
		verifyPassword: verify,
	}, nil
}

func (s *userService) Register(ctx context.Context, cmd RegisterUserCommand) (User, error) {
	username := strings.ToLower(strings.TrimSpace(cmd.Username))
	if !usernamePattern.MatchString(username) {
		return User{}, fmt.Errorf("%w: username must match %s", ErrUserInvalidInput, usernamePattern.String())
	}
	if len(cmd.Password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrUserInvalidInput, minPasswordLength)
	}

	hash, err := s.hashPassword(cmd.Password)
	if err != nil {
		return User{}, fmt.Errorf("user: hash password: %w", err)
	}

	now := s.now()
	record := domain.User{
		Username:     username,
		PasswordHash: hash,
		Name:         strings.TrimSpace(cmd.Name),
		Phone:        strings.TrimSpace(cmd.Phone),
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, record)
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "user.registered", map[string]any{
		"user_id":  created.ID,
		"username": observability.SanitizeUsername(created.Username),
	})

	return toUser(created), nil
}

func (s *userService) Login(ctx context.Context, cmd LoginCommand) (LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(cmd.Username))
	if username == "" || cmd.Password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", ErrUserInvalidInput)
	}

	record, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, s.mapRepositoryError(err)
	}

	if err := s.verifyPassword(record.PasswordHash, cmd.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("user: verify password: %w", err)
	}

	token, err := s.tokens.Issue(auth.Identity{
		UserID:   record.ID,
		Username: record.Username,
		Roles:    []string{string(record.Role)},
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("user: issue token: %w", err)
	}

	s.logger(ctx, "user.logged_in", map[string]any{
		"user_id":  record.ID,
		"username": observability.SanitizeUsername(record.Username),
	})

	return LoginResult{Token: token, User: toUser(record)}, nil
}

func (s *userService) Promote(ctx context.Context, cmd PromoteUserCommand) (User, error) {
	if cmd.UserID <= 0 {
		return User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	role := domain.Role(strings.ToLower(strings.TrimSpace(cmd.Role)))
	if !domain.KnownRole(role) {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, cmd.Role)
	}

	record, err := s.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}

	record.Role = role
	record.UpdatedAt = s.now()
	if err := s.users.Update(ctx, record); err != nil {
		return User{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "user.promoted", map[string]any{
		"user_id":  record.ID,
		"role":     string(role),
		"actor_id": cmd.ActorID,
	})

	return toUser(record), nil
}

func (s *userService) ListUsers(ctx context.Context) ([]User, error) {
	records, err := s.users.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	users := make([]User, 0, len(records))
	for _, record := range records {
		users = append(users, toUser(record))
	}
	return users, nil
}

func (s *userService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrUsernameTaken, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: repository unavailable: %v", ErrPersistence, err)
		}
	}

	return err
}

func (s *userService) now() time.Time {
	return s.clock()
}

func toUser(record domain.User) User {
	return User{
		ID:        record.ID,
		Username:  record.Username,
		Name:      record.Name,
		Phone:     record.Phone,
		Role:      string(record.Role),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
