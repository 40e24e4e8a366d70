package models

import (
	"time"
)

// SessionStatus is the connection state of one messaging session.
type SessionStatus string

const (
	StatusUnlinked        SessionStatus = "unlinked"
	StatusConnecting      SessionStatus = "connecting"
	StatusAwaitingPairing SessionStatus = "awaiting_pairing"
	StatusConnected       SessionStatus = "connected"
	StatusDisconnected    SessionStatus = "disconnected"
	StatusTerminated      SessionStatus = "terminated"
)

// Session is the persisted record for one gateway session. The API key is
// the bearer credential for the HTTP API, not the messaging credential.
type Session struct {
	SessionID string    `json:"session_id" gorm:"primaryKey"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credentials is the opaque messaging-credential blob for one session.
// The transport owns its contents; the gateway only stores and erases it.
type Credentials struct {
	SessionID string    `json:"session_id" gorm:"primaryKey"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}
