package domain

import "time"

// User is an account that can sign in. Email is stored normalized (trimmed, lower-case).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
