package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"filevault/backend/internal/apperr"
	"filevault/backend/internal/audit"
	"filevault/backend/internal/security"
	sessionsvc "filevault/backend/internal/session/service"
	userdomain "filevault/backend/internal/user/domain"
	userrepo "filevault/backend/internal/user/repository"
)

// Sentinel errors for the auth service; handlers map their kind with apperr.HTTPStatus.
var (
	ErrEmailAlreadyRegistered = fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	ErrInvalidCredentials     = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
	ErrUserNotFound           = fmt.Errorf("%w: user not found", apperr.ErrNotFound)
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// SessionManager is the part of the session manager the auth service drives.
type SessionManager interface {
	IssueSession(ctx context.Context, userID, deviceID string) (*sessionsvc.TokenPair, error)
	RefreshSession(ctx context.Context, rawRefresh string) (*sessionsvc.TokenPair, error)
	RevokeSession(ctx context.Context, accessJTI string) error
}

// Recorder counts account events. metrics.Collector implements it.
type Recorder interface {
	Signup()
	Signin(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) Signup()     {}
func (nopRecorder) Signin(bool) {}

// AuthService implements signup, signin, refresh, logout and the info lookup.
type AuthService struct {
	users    userrepo.Repository
	sessions SessionManager
	hasher   *security.Hasher
	audit    audit.AuditLogger
	recorder Recorder
	now      func() time.Time
}

// NewAuthService returns an AuthService. auditLogger and recorder may be nil.
func NewAuthService(users userrepo.Repository, sessions SessionManager, hasher *security.Hasher, auditLogger audit.AuditLogger, recorder Recorder) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		audit:    auditLogger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Signup creates a user with the given email and password and opens its first session.
func (s *AuthService) Signup(ctx context.Context, email, password, deviceID string) (*sessionsvc.TokenPair, error) {
	email = NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) > security.MaxPasswordBytes {
		return nil, apperr.Validation("password must be at most 72 bytes")
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.recorder.Signup()
	s.audit.LogEvent(ctx, user.ID, audit.ActionSignup, audit.ResourceUser, "")

	pair, err := s.sessions.IssueSession(ctx, user.ID, strings.TrimSpace(deviceID))
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionSignin, audit.ResourceSession, sessionMetadata(pair))
	return pair, nil
}

// Signin checks email and password and opens a new session. Unknown email and wrong password
// fail the same way.
func (s *AuthService) Signin(ctx context.Context, email, password, deviceID string) (*sessionsvc.TokenPair, error) {
	email = NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Matches(user.PasswordHash, []byte(password)) {
		userID := ""
		if user != nil {
			userID = user.ID
		}
		s.recorder.Signin(false)
		s.audit.LogEvent(ctx, userID, audit.ActionSigninFailure, audit.ResourceSession, "")
		return nil, ErrInvalidCredentials
	}
	pair, err := s.sessions.IssueSession(ctx, user.ID, strings.TrimSpace(deviceID))
	if err != nil {
		return nil, err
	}
	s.recorder.Signin(true)
	s.audit.LogEvent(ctx, user.ID, audit.ActionSignin, audit.ResourceSession, sessionMetadata(pair))
	return pair, nil
}

// Refresh rotates the session that rawRefresh belongs to.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*sessionsvc.TokenPair, error) {
	if rawRefresh == "" {
		return nil, apperr.Validation("refresh_token is required")
	}
	pair, err := s.sessions.RefreshSession(ctx, rawRefresh)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) || errors.Is(err, apperr.ErrConflict) {
			s.audit.LogEvent(ctx, "", audit.ActionRefreshFailure, audit.ResourceSession, "")
		}
		return nil, err
	}
	s.audit.LogEvent(ctx, pair.UserID, audit.ActionRefresh, audit.ResourceSession, sessionMetadata(pair))
	return pair, nil
}

// Logout revokes the session the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, id sessionsvc.Identity) error {
	if id.JTI == "" {
		return sessionsvc.ErrMissingToken
	}
	if err := s.sessions.RevokeSession(ctx, id.JTI); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, id.UserID, audit.ActionLogout, audit.ResourceSession, metadata(map[string]string{"session_id": id.SessionID, "device_id": id.DeviceID}))
	return nil
}

// Info returns the email of userID.
func (s *AuthService) Info(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return user.Email, nil
}

// NormalizeEmail trims and lower-cases email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return apperr.Validation("email and password are required")
	}
	return nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apperr.Validation("invalid email format")
	}
	return nil
}

func sessionMetadata(pair *sessionsvc.TokenPair) string {
	return metadata(map[string]string{"session_id": pair.SessionID, "device_id": pair.DeviceID})
}

func metadata(fields map[string]string) string {
	b, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(b)
}
