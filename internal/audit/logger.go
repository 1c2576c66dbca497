package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"filevault/backend/internal/audit/domain"
	auditrepo "filevault/backend/internal/audit/repository"
)

// Actions recorded by the auth flows.
const (
	ActionSignup         = "signup"
	ActionSignin         = "signin"
	ActionSigninFailure  = "signin_failure"
	ActionRefresh        = "refresh"
	ActionRefreshFailure = "refresh_failure"
	ActionLogout         = "logout"
)

// Resources named on audit entries.
const (
	ResourceUser    = "user"
	ResourceSession = "session"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Mirror receives a copy of every entry after it is persisted (e.g. an OpenTelemetry log exporter).
type Mirror interface {
	Emit(ctx context.Context, entry *domain.AuditLog)
}

// AuditLogger writes a single audit event with explicit action/resource. Used by the auth service.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	mirror      Mirror
	now         func() time.Time
}

// NewLogger returns a Logger that persists to repo and uses ipExtractor for the client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, now: time.Now}
}

// WithMirror sets the Mirror that receives each entry. Returns l for chaining.
func (l *Logger) WithMirror(m Mirror) *Logger {
	l.mirror = m
	return l
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := ""
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		slog.WarnContext(ctx, "audit.write_failed", "action", action, "resource", resource, "err", err)
		return
	}
	if l.mirror != nil {
		l.mirror.Emit(ctx, entry)
	}
}

// Nop is an AuditLogger that records nothing.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
