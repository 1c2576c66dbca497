package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"filevault/backend/internal/audit/domain"
)

const auditScope = "filevault.audit"

// recordEmitter is the part of otellog.Logger the mirror needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditMirror forwards persisted audit entries to the OTel log pipeline.
type AuditMirror struct {
	logger recordEmitter
}

// NewAuditMirror returns a mirror that emits through provider. A nil provider yields a mirror
// that drops everything.
func NewAuditMirror(provider *sdklog.LoggerProvider) *AuditMirror {
	if provider == nil {
		return &AuditMirror{}
	}
	return &AuditMirror{logger: provider.Logger(auditScope)}
}

// NewAuditMirrorWithLogger returns a mirror that emits to logger. Used by tests.
func NewAuditMirrorWithLogger(logger recordEmitter) *AuditMirror {
	return &AuditMirror{logger: logger}
}

// Emit converts entry to a log record. Failures surface in the exporter, not here.
func (m *AuditMirror) Emit(ctx context.Context, entry *domain.AuditLog) {
	if m == nil || m.logger == nil || entry == nil {
		return
	}
	rec := otellog.Record{}
	ts := entry.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityInfo)
	if entry.Action == "signin_failure" || entry.Action == "refresh_failure" {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	rec.SetBody(otellog.StringValue(entry.Action))
	rec.AddAttributes(
		otellog.String("audit.id", entry.ID),
		otellog.String("audit.action", entry.Action),
		otellog.String("audit.resource", entry.Resource),
		otellog.String("client.ip", entry.IP),
	)
	if entry.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", entry.UserID))
	}
	if entry.Metadata != "" {
		rec.AddAttributes(otellog.String("audit.metadata", entry.Metadata))
	}
	m.logger.Emit(ctx, rec)
}
