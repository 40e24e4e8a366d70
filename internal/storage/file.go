package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wagate/wagate-backend/internal/models"
)

// FileStore persists sessions, credentials and rule collections as JSON
// documents under a data directory, one file per session per concern.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the data directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(sessionID, kind string) string {
	return filepath.Join(f.dir, sessionID+"_"+kind+".json")
}

func (f *FileStore) writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileStore) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// Session records

func (f *FileStore) SaveSession(session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = time.Now()
	return f.writeJSON(f.path(session.SessionID, "session"), session)
}

func (f *FileStore) GetSession(sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var session models.Session
	if err := f.readJSON(f.path(sessionID, "session"), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (f *FileStore) DeleteSession(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(sessionID, "session"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore) ListSessions() ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(f.dir, "*_session.json"))
	if err != nil {
		return nil, err
	}

	var sessions []*models.Session
	for _, path := range matches {
		var session models.Session
		if err := f.readJSON(path, &session); err != nil {
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

// Messaging credentials

func (f *FileStore) SaveCredentials(sessionID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds := models.Credentials{
		SessionID: sessionID,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	return f.writeJSON(f.path(sessionID, "creds"), &creds)
}

func (f *FileStore) GetCredentials(sessionID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var creds models.Credentials
	if err := f.readJSON(f.path(sessionID, "creds"), &creds); err != nil {
		return nil, err
	}
	return creds.Data, nil
}

func (f *FileStore) HasCredentials(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := os.Stat(f.path(sessionID, "creds"))
	return err == nil
}

func (f *FileStore) DeleteCredentials(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(sessionID, "creds"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Rule collections

func (f *FileStore) SaveAutoReplies(sessionID string, rules []models.AutoReplyRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeJSON(f.path(sessionID, "autoreplies"), rules)
}

func (f *FileStore) GetAutoReplies(sessionID string) ([]models.AutoReplyRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rules []models.AutoReplyRule
	if err := f.readJSON(f.path(sessionID, "autoreplies"), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (f *FileStore) SaveRegexTriggers(sessionID string, rules []models.RegexTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeJSON(f.path(sessionID, "triggers"), rules)
}

func (f *FileStore) GetRegexTriggers(sessionID string) ([]models.RegexTrigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rules []models.RegexTrigger
	if err := f.readJSON(f.path(sessionID, "triggers"), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (f *FileStore) SaveProRegexTriggers(sessionID string, rules []models.ProRegexTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeJSON(f.path(sessionID, "triggers_pro"), rules)
}

func (f *FileStore) GetProRegexTriggers(sessionID string) ([]models.ProRegexTrigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rules []models.ProRegexTrigger
	if err := f.readJSON(f.path(sessionID, "triggers_pro"), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (f *FileStore) DeleteRules(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, kind := range []string{"autoreplies", "triggers", "triggers_pro"} {
		err := os.Remove(f.path(sessionID, kind))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
