package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/wagate/wagate-backend/internal/models"
	"github.com/wagate/wagate-backend/internal/storage"
)

// RuleService owns the per-session rule collections used for dispatch.
// Writes validate the whole collection before anything is persisted or
// swapped into memory.
type RuleService struct {
	store storage.Store

	mu          sync.RWMutex
	autoReplies map[string][]models.AutoReplyRule
	triggers    map[string][]models.RegexTrigger
	proTriggers map[string][]models.ProRegexTrigger
}

// NewRuleService creates a new rule service backed by the given store
func NewRuleService(store storage.Store) *RuleService {
	return &RuleService{
		store:       store,
		autoReplies: make(map[string][]models.AutoReplyRule),
		triggers:    make(map[string][]models.RegexTrigger),
		proTriggers: make(map[string][]models.ProRegexTrigger),
	}
}

// Load pulls a session's persisted rule collections into memory. Missing or
// unreadable documents degrade to empty collections, never an error.
func (rs *RuleService) Load(sessionID string) {
	autoReplies, err := rs.store.GetAutoReplies(sessionID)
	if err != nil && err != storage.ErrNotFound {
		log.Printf("⚠️  Could not load auto-replies for %s: %v", sessionID, err)
	}
	triggers, err := rs.store.GetRegexTriggers(sessionID)
	if err != nil && err != storage.ErrNotFound {
		log.Printf("⚠️  Could not load regex triggers for %s: %v", sessionID, err)
	}
	proTriggers, err := rs.store.GetProRegexTriggers(sessionID)
	if err != nil && err != storage.ErrNotFound {
		log.Printf("⚠️  Could not load pro regex triggers for %s: %v", sessionID, err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.autoReplies[sessionID] = autoReplies
	rs.triggers[sessionID] = triggers
	rs.proTriggers[sessionID] = proTriggers
}

// ReplaceAutoReplies atomically validates, persists and swaps the collection.
func (rs *RuleService) ReplaceAutoReplies(sessionID string, rules []models.AutoReplyRule) error {
	if err := models.ValidateAutoReplies(rules); err != nil {
		return err
	}
	if err := rs.store.SaveAutoReplies(sessionID, rules); err != nil {
		return fmt.Errorf("persist auto-replies: %w", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.autoReplies[sessionID] = append([]models.AutoReplyRule(nil), rules...)
	return nil
}

// ReplaceRegexTriggers atomically validates, persists and swaps the collection.
func (rs *RuleService) ReplaceRegexTriggers(sessionID string, rules []models.RegexTrigger) error {
	if err := models.ValidateRegexTriggers(rules); err != nil {
		return err
	}
	if err := rs.store.SaveRegexTriggers(sessionID, rules); err != nil {
		return fmt.Errorf("persist regex triggers: %w", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.triggers[sessionID] = append([]models.RegexTrigger(nil), rules...)
	return nil
}

// ReplaceProRegexTriggers atomically validates, persists and swaps the collection.
func (rs *RuleService) ReplaceProRegexTriggers(sessionID string, rules []models.ProRegexTrigger) error {
	if err := models.ValidateProRegexTriggers(rules); err != nil {
		return err
	}
	if err := rs.store.SaveProRegexTriggers(sessionID, rules); err != nil {
		return fmt.Errorf("persist pro regex triggers: %w", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.proTriggers[sessionID] = append([]models.ProRegexTrigger(nil), rules...)
	return nil
}

// GetAutoReplies returns a copy of the session's auto-reply collection.
func (rs *RuleService) GetAutoReplies(sessionID string) []models.AutoReplyRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]models.AutoReplyRule(nil), rs.autoReplies[sessionID]...)
}

// GetRegexTriggers returns a copy of the session's trigger collection.
func (rs *RuleService) GetRegexTriggers(sessionID string) []models.RegexTrigger {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]models.RegexTrigger(nil), rs.triggers[sessionID]...)
}

// GetProRegexTriggers returns a copy of the session's pro trigger collection.
func (rs *RuleService) GetProRegexTriggers(sessionID string) []models.ProRegexTrigger {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]models.ProRegexTrigger(nil), rs.proTriggers[sessionID]...)
}

// Remove wipes a session's rules from memory and persistent storage.
func (rs *RuleService) Remove(sessionID string) {
	if err := rs.store.DeleteRules(sessionID); err != nil {
		log.Printf("⚠️  Could not delete rule documents for %s: %v", sessionID, err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.autoReplies, sessionID)
	delete(rs.triggers, sessionID)
	delete(rs.proTriggers, sessionID)
}
