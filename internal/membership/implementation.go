// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"eternalflame/internal/apperr"
	"eternalflame/pkg/sqlgateway"
	"eternalflame/pkg/token"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 64
)

// service implements the Service interface.
type service struct {
	store       *store
	tokens      *token.Codec
	rateLimiter *Limiter
	logger      zerolog.Logger
}

// NewService creates a new membership service instance.
func NewService(gw *sqlgateway.Gateway, tokens *token.Codec, limiter *Limiter, logger zerolog.Logger) Service {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	return &service{
		store:       &store{gw: gw},
		tokens:      tokens,
		rateLimiter: limiter,
		logger:      logger.With().Str("component", "membership").Logger(),
	}
}

// Register creates an ordinary account and signs a token for it.
func (s *service) Register(ctx context.Context, username, password string) (*Session, error) {
	if !s.rateLimiter.Allow(clientFrom(ctx)) {
		return nil, apperr.RateLimited("rate_limited")
	}

	username, err := validateCredentials(username, password, true)
	if err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	id, err := s.store.insertAccount(ctx, username, passwordHash)
	if err != nil {
		if errors.Is(err, sqlgateway.ErrDuplicate) {
			return nil, apperr.Conflict("auth_username_taken", err)
		}
		return nil, storeError("register", err)
	}

	s.logger.Info().Int64("user_id", id).Msg("account registered")
	return s.session(id, username, "", false)
}

// Authenticate verifies an ordinary account's credentials.
func (s *service) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	if !s.rateLimiter.Allow(clientFrom(ctx)) {
		return nil, apperr.RateLimited("rate_limited")
	}

	username, err := validateCredentials(username, password, false)
	if err != nil {
		return nil, err
	}

	account, passwordHash, err := s.store.accountByUsername(ctx, username)
	if errors.Is(err, errNotFound) {
		return nil, apperr.Auth("auth_invalid_credentials")
	}
	if err != nil {
		return nil, storeError("authenticate", err)
	}

	if !VerifyPassword(password, passwordHash) {
		return nil, apperr.Auth("auth_invalid_credentials")
	}

	if NeedsRehash(passwordHash) {
		s.upgradeHash(ctx, account.ID, password)
	}

	return s.session(account.ID, account.Username, "", false)
}

// AuthenticateAdmin verifies a privileged account and signs an elevated token.
func (s *service) AuthenticateAdmin(ctx context.Context, username, password string) (*Session, error) {
	if !s.rateLimiter.Allow(clientFrom(ctx)) {
		return nil, apperr.RateLimited("rate_limited")
	}

	username, err := validateCredentials(username, password, false)
	if err != nil {
		return nil, err
	}

	admin, passwordHash, err := s.store.adminByUsername(ctx, username)
	if errors.Is(err, errNotFound) {
		return nil, apperr.Auth("auth_invalid_credentials")
	}
	if err != nil {
		return nil, storeError("authenticate admin", err)
	}

	if !VerifyPassword(password, passwordHash) {
		return nil, apperr.Auth("auth_invalid_credentials")
	}

	s.logger.Info().Str("admin", admin.Username).Msg("admin login")
	return s.session(admin.ID, admin.Username, admin.Role, true)
}

// EnsureAdmin seeds a privileged account if it does not exist yet.
func (s *service) EnsureAdmin(ctx context.Context, username, password, role string) (bool, error) {
	username, err := validateCredentials(username, password, true)
	if err != nil {
		return false, err
	}
	if role == "" {
		role = RoleAdmin
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return false, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	if _, err := s.store.insertAdmin(ctx, username, passwordHash, role); err != nil {
		if errors.Is(err, sqlgateway.ErrDuplicate) {
			return false, nil
		}
		return false, storeError("ensure admin", err)
	}

	s.logger.Info().Str("admin", username).Str("role", role).Msg("admin account created")
	return true, nil
}

func (s *service) session(id int64, username, role string, elevated bool) (*Session, error) {
	tok, err := s.tokens.Issue(id, username, elevated)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("issue token: %w", err))
	}
	return &Session{Token: tok, User: newSessionUser(id, username, role)}, nil
}

// upgradeHash replaces a legacy hash after a successful login. Failures only
// cost another upgrade attempt on the next login.
func (s *service) upgradeHash(ctx context.Context, id int64, password string) {
	passwordHash, err := HashPassword(password)
	if err == nil {
		err = s.store.updateAccountHash(ctx, id, passwordHash)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", id).Msg("password hash upgrade failed")
	}
}

func validateCredentials(username, password string, checkLength bool) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperr.Validation("auth_username_password_required")
	}
	if checkLength {
		if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
			return "", apperr.Validation("auth_username_password_required")
		}
	}
	return username, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, sqlgateway.ErrUnavailable) {
		return apperr.Unavailable("auth_db_unavailable", fmt.Errorf("%s: %w", op, err))
	}
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}
