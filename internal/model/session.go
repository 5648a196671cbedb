package model

import "time"

// Session ties a browser token to a user id. The user itself is always
// re-read from the ledger, never cached here.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
