package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"filevault/backend/internal/apperr"
	"filevault/backend/internal/audit"
	auditrepo "filevault/backend/internal/audit/repository"
	"filevault/backend/internal/security"
	sessionrepo "filevault/backend/internal/session/repository"
	sessionsvc "filevault/backend/internal/session/service"
	userdomain "filevault/backend/internal/user/domain"
	userrepo "filevault/backend/internal/user/repository"
)

type testEnv struct {
	svc      *AuthService
	users    *userrepo.MemoryRepository
	sessions *sessionrepo.MemoryRepository
	manager  *sessionsvc.Manager
	audits   *auditrepo.MemoryRepository
	recorder *countingRecorder
}

type countingRecorder struct {
	signups, signinOK, signinFail int
}

func (r *countingRecorder) Signup() { r.signups++ }
func (r *countingRecorder) Signin(ok bool) {
	if ok {
		r.signinOK++
	} else {
		r.signinFail++
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	env := &testEnv{
		users:    userrepo.NewMemoryRepository(),
		sessions: sessionrepo.NewMemoryRepository(),
		audits:   auditrepo.NewMemoryRepository(),
		recorder: &countingRecorder{},
	}
	env.manager = sessionsvc.NewManager(env.sessions, codec, 10*time.Minute, 24*time.Hour)
	env.svc = NewAuthService(env.users, env.manager, security.NewHasher(4), audit.NewLogger(env.audits, nil), env.recorder)
	return env
}

func (e *testEnv) actions() []string {
	var out []string
	for _, a := range e.audits.All() {
		out = append(out, a.Action)
	}
	return out
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.Signup(ctx, "  A@X.com ", "pw123456", "laptop")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != "Bearer" {
		t.Errorf("pair = %+v", pair)
	}
	if pair.DeviceID != "laptop" {
		t.Errorf("DeviceID = %q, want laptop", pair.DeviceID)
	}
	user, _ := env.users.GetByEmail(ctx, "a@x.com")
	if user == nil {
		t.Fatal("user should be stored under the normalized email")
	}
	if user.PasswordHash == "pw123456" || !security.NewHasher(4).Matches(user.PasswordHash, []byte("pw123456")) {
		t.Error("password must be stored as a bcrypt digest")
	}
	if pair.UserID != user.ID {
		t.Errorf("pair.UserID = %q, want %q", pair.UserID, user.ID)
	}
	if env.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", env.sessions.Len())
	}
	if env.recorder.signups != 1 {
		t.Errorf("signups = %d, want 1", env.recorder.signups)
	}
	if got := strings.Join(env.actions(), ","); got != "signup,signin" {
		t.Errorf("audit actions = %q, want signup,signin", got)
	}
}

func TestSignup_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"missing email", "", "pw123456"},
		{"blank email", "   ", "pw123456"},
		{"missing password", "a@x.com", ""},
		{"bad email", "not-an-email", "pw123456"},
		{"password too long", "a@x.com", strings.Repeat("p", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Signup(context.Background(), tt.email, tt.password, "")
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if env.users.Len() != 0 {
		t.Error("no user should be created on validation failure")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Signup(ctx, "a@x.com", "pw123456", ""); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	_, err := env.svc.Signup(ctx, "A@x.com", "other-pass", "")
	if !errors.Is(err, ErrEmailAlreadyRegistered) || !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
	if env.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", env.sessions.Len())
	}
}

// racyUsers reports no existing user, then loses the insert race.
type racyUsers struct {
	*userrepo.MemoryRepository
}

func (racyUsers) GetByEmail(context.Context, string) (*userdomain.User, error) { return nil, nil }

func TestSignup_LostInsertRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.users.Create(ctx, &userdomain.User{ID: "u-1", Email: "a@x.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	svc := NewAuthService(racyUsers{env.users}, env.manager, security.NewHasher(4), nil, nil)
	if _, err := svc.Signup(ctx, "a@x.com", "pw123456", ""); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
	if env.sessions.Len() != 0 {
		t.Error("no session should be issued when the insert fails")
	}
}

func TestSignin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	signup, err := env.svc.Signup(ctx, "a@x.com", "pw123456", "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if _, err := env.svc.Signin(ctx, "a@x.com", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.svc.Signin(ctx, "nobody@x.com", "pw123456", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.svc.Signin(ctx, "a@x.com", "", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing password: err = %v, want ErrValidation", err)
	}

	pair, err := env.svc.Signin(ctx, " A@X.COM", "pw123456", "")
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}
	if pair.AccessToken == signup.AccessToken || pair.SessionID == signup.SessionID {
		t.Error("signin must open a new session with new tokens")
	}
	if !strings.HasPrefix(pair.DeviceID, "device-"+pair.UserID+"-") {
		t.Errorf("DeviceID = %q, want generated default", pair.DeviceID)
	}
	if env.sessions.Len() != 2 {
		t.Errorf("sessions = %d, want 2", env.sessions.Len())
	}
	if env.recorder.signinOK != 1 || env.recorder.signinFail != 2 {
		t.Errorf("signin ok/fail = %d/%d, want 1/2", env.recorder.signinOK, env.recorder.signinFail)
	}

	var failures int
	for _, a := range env.audits.All() {
		if a.Action == audit.ActionSigninFailure {
			failures++
		}
	}
	if failures != 2 {
		t.Errorf("signin_failure audits = %d, want 2", failures)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gate := env.manager.Gate()

	pair, err := env.svc.Signup(ctx, "a@x.com", "pw123456", "d1")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty refresh: err = %v, want ErrValidation", err)
	}

	next, err := env.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("reused refresh: err = %v, want unauthenticated", err)
	}

	id, err := gate.Authenticate(ctx, next.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	email, err := env.svc.Info(ctx, id.UserID)
	if err != nil || email != "a@x.com" {
		t.Errorf("Info = %q, %v", email, err)
	}

	if err := env.svc.Logout(ctx, id); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := env.svc.Logout(ctx, id); err != nil {
		t.Errorf("second Logout should be a no-op: %v", err)
	}
	if _, err := gate.Authenticate(ctx, next.AccessToken); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("after logout: err = %v, want unauthenticated", err)
	}
	if err := env.svc.Logout(ctx, sessionsvc.Identity{}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("empty identity: err = %v, want unauthenticated", err)
	}

	want := "signup,signin,refresh,refresh_failure,logout,logout"
	if got := strings.Join(env.actions(), ","); got != want {
		t.Errorf("audit actions = %q, want %q", got, want)
	}
}

func TestInfo_UserGone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pair, _ := env.svc.Signup(ctx, "a@x.com", "pw123456", "")
	env.users.Delete(pair.UserID)

	_, err := env.svc.Info(ctx, pair.UserID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Mixed.Case@Example.COM\t"); got != "mixed.case@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
