package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/spokeworks/api/internal/domain"
	"github.com/spokeworks/api/internal/platform/auth"
)

type stubTokenIssuer struct {
	issueFn func(auth.Identity) (string, error)
	issued  []auth.Identity
}

func (s *stubTokenIssuer) Issue(identity auth.Identity) (string, error) {
	s.issued = append(s.issued, identity)
	if s.issueFn != nil {
		return s.issueFn(identity)
	}
	return "token-123", nil
}

func newTestUserService(t *testing.T, deps UserServiceDeps) UserService {
	t.Helper()
	if deps.Tokens == nil {
		deps.Tokens = &stubTokenIssuer{}
	}
	if deps.HashPassword == nil {
		deps.HashPassword = func(password string) (string, error) {
			return "hashed:" + password, nil
		}
	}
	if deps.VerifyPassword == nil {
		deps.VerifyPassword = func(hash, password string) error {
			if hash != "hashed:"+password {
				return auth.ErrPasswordMismatch
			}
			return nil
		}
	}
	svc, err := NewUserService(deps)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	return svc
}

func TestUserServiceRegisterDefaultsToCustomer(t *testing.T) {
	var stored domain.User
	repo := &stubUserRepo{
		createFn: func(_ context.Context, user domain.User) (domain.User, error) {
			stored = user
			user.ID = 7
			return user, nil
		},
	}
	svc := newTestUserService(t, UserServiceDeps{Users: repo})

	user, err := svc.Register(context.Background(), RegisterUserCommand{
		Username: "  Somchai  ",
		Password: "correct-horse",
		Name:     "Somchai",
		Phone:    "+66812345678",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if stored.Username != "somchai" {
		t.Fatalf("expected normalised username, got %q", stored.Username)
	}
	if stored.Role != domain.RoleCustomer {
		t.Fatalf("expected customer role, got %q", stored.Role)
	}
	if stored.PasswordHash != "hashed:correct-horse" {
		t.Fatalf("expected hashed password, got %q", stored.PasswordHash)
	}
	if user.ID != 7 || user.Role != string(domain.RoleCustomer) {
		t.Fatalf("unexpected projection: %+v", user)
	}
}

func TestUserServiceRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestUserService(t, UserServiceDeps{Users: &stubUserRepo{}})

	if _, err := svc.Register(context.Background(), RegisterUserCommand{Username: "somchai", Password: "short"}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestUserServiceRegisterDuplicateUsername(t *testing.T) {
	repo := &stubUserRepo{
		createFn: func(context.Context, domain.User) (domain.User, error) {
			return domain.User{}, repoError{message: "duplicate key", conflict: true}
		},
	}
	svc := newTestUserService(t, UserServiceDeps{Users: repo})

	if _, err := svc.Register(context.Background(), RegisterUserCommand{Username: "somchai", Password: "correct-horse"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUserServiceLoginIssuesToken(t *testing.T) {
	repo := &stubUserRepo{
		findNameFn: func(_ context.Context, username string) (domain.User, error) {
			return domain.User{ID: 7, Username: username, PasswordHash: "hashed:correct-horse", Role: domain.RoleStaff}, nil
		},
	}
	issuer := &stubTokenIssuer{}
	svc := newTestUserService(t, UserServiceDeps{Users: repo, Tokens: issuer})

	result, err := svc.Login(context.Background(), LoginCommand{Username: "Somchai", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if result.Token != "token-123" {
		t.Fatalf("expected issued token, got %q", result.Token)
	}
	if len(issuer.issued) != 1 {
		t.Fatalf("expected one issued identity, got %d", len(issuer.issued))
	}
	identity := issuer.issued[0]
	if identity.UserID != 7 || identity.Username != "somchai" || len(identity.Roles) != 1 || identity.Roles[0] != string(domain.RoleStaff) {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if result.User.Role != string(domain.RoleStaff) {
		t.Fatalf("unexpected user projection: %+v", result.User)
	}
}

func TestUserServiceLoginUnknownUser(t *testing.T) {
	repo := &stubUserRepo{
		findNameFn: func(context.Context, string) (domain.User, error) {
			return domain.User{}, repoError{message: "missing", notFound: true}
		},
	}
	svc := newTestUserService(t, UserServiceDeps{Users: repo})

	if _, err := svc.Login(context.Background(), LoginCommand{Username: "ghost", Password: "whatever1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServiceLoginWrongPassword(t *testing.T) {
	repo := &stubUserRepo{
		findNameFn: func(_ context.Context, username string) (domain.User, error) {
			return domain.User{ID: 7, Username: username, PasswordHash: "hashed:correct-horse"}, nil
		},
	}
	svc := newTestUserService(t, UserServiceDeps{Users: repo})

	if _, err := svc.Login(context.Background(), LoginCommand{Username: "somchai", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServicePromoteChangesRole(t *testing.T) {
	var stored domain.User
	repo := &stubUserRepo{
		findFn: func(context.Context, int64) (domain.User, error) {
			return domain.User{ID: 7, Username: "somchai", Role: domain.RoleCustomer}, nil
		},
		updateFn: func(_ context.Context, user domain.User) error {
			stored = user
			return nil
		},
	}
	svc := newTestUserService(t, UserServiceDeps{Users: repo})

	user, err := svc.Promote(context.Background(), PromoteUserCommand{UserID: 7, Role: "Staff", ActorID: 1})
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}

	if stored.Role != domain.RoleStaff {
		t.Fatalf("expected staff role persisted, got %q", stored.Role)
	}
	if user.Role != string(domain.RoleStaff) {
		t.Fatalf("unexpected projection role %q", user.Role)
	}
}

func TestUserServicePromoteRejectsUnknownRole(t *testing.T) {
	svc := newTestUserService(t, UserServiceDeps{Users: &stubUserRepo{}})

	if _, err := svc.Promote(context.Background(), PromoteUserCommand{UserID: 7, Role: "superuser"}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestUserServicePromoteNotFound(t *testing.T) {
	repo := &stubUserRepo{
		findFn: func(context.Context, int64) (domain.User, error) {
			return domain.User{}, repoError{message: "missing", notFound: true}
		},
	}
	svc := newTestUserService(t, UserServiceDeps{Users: repo})

	if _, err := svc.Promote(context.Background(), PromoteUserCommand{UserID: 404, Role: "staff"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserServiceListUsers(t *testing.T) {
	repo := &stubUserRepo{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{
				{ID: 1, Username: "admin", Role: domain.RoleAdmin},
				{ID: 2, Username: "somchai", Role: domain.RoleCustomer},
			}, nil
		},
	}
	svc := newTestUserService(t, UserServiceDeps{Users: repo})

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Username != "admin" || users[1].Role != string(domain.RoleCustomer) {
		t.Fatalf("unexpected listing: %+v", users)
	}
}
