package domain

import "time"

type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Identity is the authenticated actor of a single request.
type Identity struct {
	UserID    int64
	Username  string
	SessionID string
}
