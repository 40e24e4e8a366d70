package services

import (
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/wagate/wagate-backend/internal/models"
	"github.com/wagate/wagate-backend/internal/utils"
)

// OutboundAction is the single reply a dispatched message may produce.
type OutboundAction struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Dispatcher evaluates inbound messages against a session's rules in tier
// order: pro regex triggers, then auto-replies, then regex triggers. At most
// one action comes out.
type Dispatcher struct {
	rules   *RuleService
	invoker *CallbackInvoker

	// humanDelay is slept before auto-reply and trigger-reply sends so
	// replies do not land instantly. Tests inject a no-op sleep.
	humanDelay time.Duration
	sleep      func(time.Duration)
}

// NewDispatcher creates a dispatcher with the default humanizing delay
func NewDispatcher(rules *RuleService, invoker *CallbackInvoker) *Dispatcher {
	return &Dispatcher{
		rules:      rules,
		invoker:    invoker,
		humanDelay: 1500 * time.Millisecond,
		sleep:      time.Sleep,
	}
}

// SetDelay overrides the humanizing delay policy.
func (d *Dispatcher) SetDelay(delay time.Duration, sleep func(time.Duration)) {
	d.humanDelay = delay
	if sleep != nil {
		d.sleep = sleep
	}
}

// Dispatch runs one message through the pipeline. A nil action means the
// message is consumed with no reply. Messages without text are dropped
// silently.
func (d *Dispatcher) Dispatch(sessionID, sender, text string) *OutboundAction {
	if text == "" {
		return nil
	}

	if action := d.dispatchPro(sessionID, sender, text); action != nil {
		return action
	}
	if action := d.dispatchAutoReply(sessionID, sender, text); action != nil {
		return action
	}
	return d.dispatchRegex(sessionID, sender, text)
}

// dispatchPro runs the allow-listed tier. First trigger in stored order
// whose pattern matches wins, regardless of later matches.
func (d *Dispatcher) dispatchPro(sessionID, sender, text string) *OutboundAction {
	senderPhone := utils.JIDToPhone(sender)

	for _, trigger := range d.rules.GetProRegexTriggers(sessionID) {
		re, err := regexp.Compile("(?i)" + trigger.Pattern)
		if err != nil {
			log.Printf("⚠️  Skipping pro trigger %q: bad pattern: %v", trigger.Name, err)
			continue
		}
		if !senderAllowed(senderPhone, trigger.AllowedSenders) {
			continue
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}

		keyword := text[loc[0]:loc[1]]
		reply := d.invoker.Invoke(trigger.CallbackURL, CallbackPayload{
			Keyword: keyword,
			Name:    trigger.Name,
			Pattern: trigger.Pattern,
		})
		return &OutboundAction{To: sender, Text: reply}
	}
	return nil
}

// dispatchAutoReply compares the normalized message against every keyword.
// First match in stored order wins.
func (d *Dispatcher) dispatchAutoReply(sessionID, sender, text string) *OutboundAction {
	normalized := NormalizeText(text)

	for _, rule := range d.rules.GetAutoReplies(sessionID) {
		if normalized != NormalizeText(rule.Keyword) {
			continue
		}
		d.sleep(d.humanDelay)
		return &OutboundAction{To: sender, Text: rule.Reply}
	}
	return nil
}

// dispatchRegex runs the generic tier. Among all matching triggers the one
// with the strictly longest pattern string wins; ties go to the earliest.
func (d *Dispatcher) dispatchRegex(sessionID, sender, text string) *OutboundAction {
	var best *models.RegexTrigger
	var bestRe *regexp.Regexp

	for _, trigger := range d.rules.GetRegexTriggers(sessionID) {
		re, err := regexp.Compile("(?i)" + trigger.Pattern)
		if err != nil {
			log.Printf("⚠️  Skipping trigger %q: bad pattern: %v", trigger.Name, err)
			continue
		}
		if re.FindStringIndex(text) == nil {
			continue
		}
		if best == nil || len(trigger.Pattern) > len(best.Pattern) {
			t := trigger
			best, bestRe = &t, re
		}
	}
	if best == nil {
		return nil
	}

	loc := bestRe.FindStringIndex(text)
	keyword := text[loc[0]:loc[1]]
	reply := d.invoker.Invoke(best.CallbackURL, CallbackPayload{
		Keyword: keyword,
		Name:    best.Name,
		Pattern: best.Pattern,
	})
	d.sleep(d.humanDelay)
	return &OutboundAction{To: sender, Text: reply}
}

// NormalizeText lower-cases and strips everything but ASCII letters and
// digits, so "Hi There!" matches keyword "hithere".
func NormalizeText(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func senderAllowed(senderPhone string, allowed []string) bool {
	for _, number := range allowed {
		if utils.NormalizePhone(number) == senderPhone {
			return true
		}
	}
	return false
}
