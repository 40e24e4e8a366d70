package storage

import (
	"errors"

	"github.com/wagate/wagate-backend/internal/models"
)

// ErrNotFound is returned when a session, credential blob or rule document
// does not exist in the backing store.
var ErrNotFound = errors.New("not found")

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the interface for storage operations
type Store interface {
	// Session records (API key registration)
	SaveSession(session *models.Session) error
	GetSession(sessionID string) (*models.Session, error)
	DeleteSession(sessionID string) error
	ListSessions() ([]*models.Session, error)

	// Messaging credentials (opaque transport blob)
	SaveCredentials(sessionID string, data []byte) error
	GetCredentials(sessionID string) ([]byte, error)
	HasCredentials(sessionID string) bool
	DeleteCredentials(sessionID string) error

	// Rule collections, one self-contained document per session per tier
	SaveAutoReplies(sessionID string, rules []models.AutoReplyRule) error
	GetAutoReplies(sessionID string) ([]models.AutoReplyRule, error)
	SaveRegexTriggers(sessionID string, rules []models.RegexTrigger) error
	GetRegexTriggers(sessionID string) ([]models.RegexTrigger, error)
	SaveProRegexTriggers(sessionID string, rules []models.ProRegexTrigger) error
	GetProRegexTriggers(sessionID string) ([]models.ProRegexTrigger, error)
	DeleteRules(sessionID string) error
}
