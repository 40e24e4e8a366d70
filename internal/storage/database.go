package storage

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wagate/wagate-backend/internal/models"
)

// DatabaseStore persists everything through GORM. Rule collections are kept
// as whole JSON documents so they round-trip exactly as written.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open GORM connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) SaveSession(session *models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = time.Now()
	return d.db.Save(session).Error
}

func (d *DatabaseStore) GetSession(sessionID string) (*models.Session, error) {
	var session models.Session
	err := d.db.First(&session, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (d *DatabaseStore) DeleteSession(sessionID string) error {
	return d.db.Delete(&models.Session{}, "session_id = ?", sessionID).Error
}

func (d *DatabaseStore) ListSessions() ([]*models.Session, error) {
	var sessions []*models.Session
	if err := d.db.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (d *DatabaseStore) SaveCredentials(sessionID string, data []byte) error {
	creds := models.Credentials{
		SessionID: sessionID,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	return d.db.Save(&creds).Error
}

func (d *DatabaseStore) GetCredentials(sessionID string) ([]byte, error) {
	var creds models.Credentials
	err := d.db.First(&creds, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return creds.Data, nil
}

func (d *DatabaseStore) HasCredentials(sessionID string) bool {
	var count int64
	d.db.Model(&models.Credentials{}).Where("session_id = ?", sessionID).Count(&count)
	return count > 0
}

func (d *DatabaseStore) DeleteCredentials(sessionID string) error {
	return d.db.Delete(&models.Credentials{}, "session_id = ?", sessionID).Error
}

func (d *DatabaseStore) saveRuleDoc(sessionID, tier string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	doc := models.RuleDocument{SessionID: sessionID, Tier: tier, Data: data}
	return d.db.Save(&doc).Error
}

func (d *DatabaseStore) getRuleDoc(sessionID, tier string, v interface{}) error {
	var doc models.RuleDocument
	err := d.db.First(&doc, "session_id = ? AND tier = ?", sessionID, tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(doc.Data, v)
}

func (d *DatabaseStore) SaveAutoReplies(sessionID string, rules []models.AutoReplyRule) error {
	return d.saveRuleDoc(sessionID, "autoreplies", rules)
}

func (d *DatabaseStore) GetAutoReplies(sessionID string) ([]models.AutoReplyRule, error) {
	var rules []models.AutoReplyRule
	if err := d.getRuleDoc(sessionID, "autoreplies", &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (d *DatabaseStore) SaveRegexTriggers(sessionID string, rules []models.RegexTrigger) error {
	return d.saveRuleDoc(sessionID, "triggers", rules)
}

func (d *DatabaseStore) GetRegexTriggers(sessionID string) ([]models.RegexTrigger, error) {
	var rules []models.RegexTrigger
	if err := d.getRuleDoc(sessionID, "triggers", &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (d *DatabaseStore) SaveProRegexTriggers(sessionID string, rules []models.ProRegexTrigger) error {
	return d.saveRuleDoc(sessionID, "triggers_pro", rules)
}

func (d *DatabaseStore) GetProRegexTriggers(sessionID string) ([]models.ProRegexTrigger, error) {
	var rules []models.ProRegexTrigger
	if err := d.getRuleDoc(sessionID, "triggers_pro", &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (d *DatabaseStore) DeleteRules(sessionID string) error {
	return d.db.Delete(&models.RuleDocument{}, "session_id = ?", sessionID).Error
}
