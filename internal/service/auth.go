// Package service contains the application services behind the API surface:
// authentication and the acknowledgment gate, case/evidence handling, and the
// job lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/custodialabs/custodia/internal/audit"
	pkgcrypto "github.com/custodialabs/custodia/internal/crypto"
	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/limiter"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/repository"
)

// ackSettingKey is the settings row holding the one-time legal
// acknowledgment record.
const ackSettingKey = "authorization_ack"

// AuthService is the gateway every request passes before touching evidence.
type AuthService interface {
	// Login applies rate limiting and authenticates the user, issuing a
	// time-bounded session token.
	Login(ctx context.Context, username, password, origin string) (model.Tokens, *model.User, error)
	// Logout records the end of a session.
	Logout(ctx context.Context, user *model.User, origin string)
	// VerifyToken checks a bearer token and returns the active user it
	// resolves to.
	VerifyToken(ctx context.Context, token string) (*model.User, error)
	// SubmitAck records the legal acknowledgment if the text matches the
	// required statement exactly.
	SubmitAck(ctx context.Context, text, actor, origin string) error
	// AckStatus reports whether the system is unlocked and the required text.
	AckStatus(ctx context.Context) (bool, string, error)
	// RequireAck blocks evidentiary operations until the acknowledgment is
	// recorded.
	RequireAck(ctx context.Context) error
	// ResetAck clears the recorded acknowledgment, re-locking the system.
	ResetAck(ctx context.Context) error
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	settings  repository.SettingRepository
	auditor   *audit.Recorder
	lim       *limiter.Limiter
	signKey   []byte
	accessTTL time.Duration
	ackText   string
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	settings repository.SettingRepository,
	auditor *audit.Recorder,
	lim *limiter.Limiter,
	signKey []byte,
	accessTTL time.Duration,
	ackText string,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:     users,
		settings:  settings,
		auditor:   auditor,
		lim:       lim,
		signKey:   signKey,
		accessTTL: accessTTL,
		ackText:   ackText,
	}
}

// Login counts the attempt against the rate limiter first, then verifies
// credentials. All credential failures collapse into one opaque error so the
// response cannot reveal whether the username exists.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, origin string) (model.Tokens, *model.User, error) {
	if username == "" || password == "" {
		return model.Tokens{}, nil, fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	if err := s.lim.Allow(ctx, origin); err != nil {
		return model.Tokens{}, nil, err
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil || !u.Active || !pkgcrypto.VerifyPassword([]byte(password), u.Salt, u.PwdHash) {
		return model.Tokens{}, nil, errs.ErrUnauthorized
	}

	tokens, err := s.issueToken(u.ID)
	if err != nil {
		return model.Tokens{}, nil, err
	}

	s.auditor.Record(ctx, nil, audit.ActionLogin, u.Username, origin, nil)
	return tokens, u, nil
}

// Logout audits session end. Tokens are stateless; revocation is the
// caller's cookie removal.
func (s *AuthServiceImpl) Logout(ctx context.Context, user *model.User, origin string) {
	s.auditor.Record(ctx, nil, audit.ActionLogout, user.Username, origin, nil)
}

// issueToken creates a signed HS256 JWT with the user ID as subject.
func (s *AuthServiceImpl) issueToken(userID uuid.UUID) (model.Tokens, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// VerifyToken parses and validates the token, then loads the user and checks
// the active flag. Any failure maps to ErrUnauthorized.
func (s *AuthServiceImpl) VerifyToken(ctx context.Context, token string) (*model.User, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errs.ErrUnauthorized
	}
	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil || !u.Active {
		return nil, errs.ErrUnauthorized
	}
	return u, nil
}

// SubmitAck unlocks the system for all subsequent requests. The match is
// exact: surrounding whitespace is trimmed, nothing else is normalized.
func (s *AuthServiceImpl) SubmitAck(ctx context.Context, text, actor, origin string) error {
	if strings.TrimSpace(text) != s.ackText {
		return errs.ErrAckMismatch
	}
	err := s.settings.Set(ctx, ackSettingKey, map[string]any{
		"text":  s.ackText,
		"actor": actor,
		"ts":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("store acknowledgment: %w", err)
	}
	s.auditor.Record(ctx, nil, audit.ActionAck, actor, origin, map[string]any{"text": s.ackText})
	return nil
}

// AckStatus reports the gate state and the required statement.
func (s *AuthServiceImpl) AckStatus(ctx context.Context) (bool, string, error) {
	_, err := s.settings.Get(ctx, ackSettingKey)
	switch {
	case err == nil:
		return true, s.ackText, nil
	case errors.Is(err, errs.ErrNotFound):
		return false, s.ackText, nil
	default:
		return false, s.ackText, err
	}
}

// RequireAck is checked on every evidentiary operation. The stored text must
// still equal the configured statement; a stale record from an older
// configuration does not unlock the system.
func (s *AuthServiceImpl) RequireAck(ctx context.Context) error {
	set, err := s.settings.Get(ctx, ackSettingKey)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrAckRequired
		}
		return err
	}
	if text, _ := set.Value["text"].(string); text != s.ackText {
		return errs.ErrAckRequired
	}
	return nil
}

// ResetAck re-locks the system.
func (s *AuthServiceImpl) ResetAck(ctx context.Context) error {
	return s.settings.Delete(ctx, ackSettingKey)
}
