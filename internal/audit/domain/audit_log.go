package domain

import "time"

// AuditLog is one recorded authentication event.
type AuditLog struct {
	ID        string
	UserID    string // empty when the actor is unknown (e.g. failed signin for an unknown email)
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
