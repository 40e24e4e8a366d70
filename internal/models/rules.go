package models

import "fmt"

// AutoReplyRule replies with a fixed text when the normalized message
// equals the normalized keyword.
type AutoReplyRule struct {
	Keyword string `json:"keyword"`
	Reply   string `json:"reply"`
}

// RegexTrigger forwards the first match of a case-insensitive pattern to a
// callback endpoint. Among multiple matching triggers the one with the
// longest pattern string wins.
type RegexTrigger struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	CallbackURL string `json:"callbackUrl"`
}

// ProRegexTrigger is a RegexTrigger restricted to an allow-list of sender
// numbers. Pro triggers are evaluated before every other tier, first match
// in stored order wins.
type ProRegexTrigger struct {
	Name           string   `json:"name"`
	Pattern        string   `json:"pattern"`
	CallbackURL    string   `json:"callbackUrl"`
	AllowedSenders []string `json:"allowedSenders"`
}

// ValidateAutoReplies checks a whole collection; one bad entry rejects all.
func ValidateAutoReplies(rules []AutoReplyRule) error {
	for i, r := range rules {
		if r.Keyword == "" {
			return fmt.Errorf("auto-reply %d: missing keyword", i)
		}
		if r.Reply == "" {
			return fmt.Errorf("auto-reply %d: missing reply", i)
		}
	}
	return nil
}

// ValidateRegexTriggers checks a whole collection; one bad entry rejects all.
func ValidateRegexTriggers(rules []RegexTrigger) error {
	for i, r := range rules {
		if r.Name == "" {
			return fmt.Errorf("trigger %d: missing name", i)
		}
		if r.Pattern == "" {
			return fmt.Errorf("trigger %d: missing pattern", i)
		}
		if r.CallbackURL == "" {
			return fmt.Errorf("trigger %d: missing callbackUrl", i)
		}
	}
	return nil
}

// ValidateProRegexTriggers checks a whole collection; one bad entry rejects all.
func ValidateProRegexTriggers(rules []ProRegexTrigger) error {
	for i, r := range rules {
		if r.Name == "" {
			return fmt.Errorf("pro trigger %d: missing name", i)
		}
		if r.Pattern == "" {
			return fmt.Errorf("pro trigger %d: missing pattern", i)
		}
		if r.CallbackURL == "" {
			return fmt.Errorf("pro trigger %d: missing callbackUrl", i)
		}
		if len(r.AllowedSenders) == 0 {
			return fmt.Errorf("pro trigger %d: missing allowedSenders", i)
		}
	}
	return nil
}

// RuleDocument stores one serialized rule collection in the database backend.
type RuleDocument struct {
	SessionID string `json:"session_id" gorm:"primaryKey"`
	Tier      string `json:"tier" gorm:"primaryKey"`
	Data      []byte `json:"data"`
}
