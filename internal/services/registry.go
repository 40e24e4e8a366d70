package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wagate/wagate-backend/internal/models"
	"github.com/wagate/wagate-backend/internal/storage"
	"github.com/wagate/wagate-backend/internal/transport"
)

// SessionHandle is the live state of one session: connection status, the
// last pairing code, and the transport client owned by its supervisor.
type SessionHandle struct {
	ID string

	mu      sync.Mutex
	status  models.SessionStatus
	qr      string
	client  transport.Client
	cancel  context.CancelFunc
	running bool
	notify  chan struct{}
}

// signal wakes every waiter. Callers must hold h.mu.
func (h *SessionHandle) signal() {
	close(h.notify)
	h.notify = make(chan struct{})
}

func (h *SessionHandle) setStatus(status models.SessionStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.signal()
}

func (h *SessionHandle) setQR(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// A new pairing code always invalidates the previous one.
	h.qr = code
	h.status = models.StatusAwaitingPairing
	h.signal()
}

func (h *SessionHandle) setConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.qr = ""
	h.status = models.StatusConnected
	h.signal()
}

// SessionRegistry is the sole owner of session lifecycle. It maps session
// identifiers to handles and runs one supervisor goroutine per started
// session. All mutation is keyed by identifier; unrelated sessions never
// share a lock beyond the map itself.
type SessionRegistry struct {
	store      storage.Store
	rules      *RuleService
	dispatcher *Dispatcher
	dial       transport.Dialer
	retry      RetryPolicy
	alerts     *AlertService

	mu      sync.RWMutex
	handles map[string]*SessionHandle
}

var (
	registryInstance *SessionRegistry
	registryMu       sync.Mutex
)

// SetRegistry sets the global registry instance (call from main.go)
func SetRegistry(r *SessionRegistry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registryInstance = r
}

// GetRegistry returns the global registry instance
func GetRegistry() *SessionRegistry {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registryInstance
}

// NewSessionRegistry creates a registry wired to its collaborators.
func NewSessionRegistry(store storage.Store, rules *RuleService, dispatcher *Dispatcher, dial transport.Dialer, alerts *AlertService) *SessionRegistry {
	return &SessionRegistry{
		store:      store,
		rules:      rules,
		dispatcher: dispatcher,
		dial:       dial,
		retry:      DefaultRetry(),
		alerts:     alerts,
		handles:    make(map[string]*SessionHandle),
	}
}

// SetRetryPolicy overrides the reconnect policy.
func (r *SessionRegistry) SetRetryPolicy(p RetryPolicy) {
	r.retry = p
}

// Create registers a session's API key (idempotent overwrite) and ensures a
// handle exists. A brand-new session starts Unlinked with no transport.
func (r *SessionRegistry) Create(sessionID, apiKey string) error {
	if err := r.store.SaveSession(&models.Session{SessionID: sessionID, APIKey: apiKey}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[sessionID]; !exists {
		r.handles[sessionID] = &SessionHandle{
			ID:     sessionID,
			status: models.StatusUnlinked,
			notify: make(chan struct{}),
		}
		log.Printf("✅ Session %s registered", sessionID)
	}
	return nil
}

func (r *SessionRegistry) handle(sessionID string) (*SessionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, exists := r.handles[sessionID]
	return h, exists
}

// Status returns the session's connection status. Unknown sessions report
// Terminated.
func (r *SessionRegistry) Status(sessionID string) models.SessionStatus {
	h, exists := r.handle(sessionID)
	if !exists {
		return models.StatusTerminated
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Connected reports whether the session's transport is live.
func (r *SessionRegistry) Connected(sessionID string) bool {
	return r.Status(sessionID) == models.StatusConnected
}

// QR returns the last pairing code, empty when none is pending.
func (r *SessionRegistry) QR(sessionID string) string {
	h, exists := r.handle(sessionID)
	if !exists {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.qr
}

// SessionCount returns the number of registered handles (for /health).
func (r *SessionRegistry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Start brings the session's connection up. No-op while a supervisor is
// already driving the session (connected or still pairing/retrying); a dead
// handle is discarded and replaced atomically under the per-session lock.
func (r *SessionRegistry) Start(sessionID string) error {
	h, exists := r.handle(sessionID)
	if !exists {
		return fmt.Errorf("session %s not found", sessionID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}

	// Stale handle from a previous life: drop its transport.
	if h.client != nil {
		h.client.Close()
		h.client = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.running = true
	h.status = models.StatusConnecting
	h.signal()

	go r.supervise(ctx, h)
	return nil
}

// SendText sends a message on a connected session.
func (r *SessionRegistry) SendText(ctx context.Context, sessionID, toJID, text string) error {
	h, exists := r.handle(sessionID)
	if !exists {
		return fmt.Errorf("session %s not found", sessionID)
	}

	h.mu.Lock()
	client := h.client
	connected := h.status == models.StatusConnected
	h.mu.Unlock()

	if !connected || client == nil {
		return fmt.Errorf("session %s not connected", sessionID)
	}
	return client.SendText(ctx, toJID, text)
}

// Stop terminates the session: cancels its supervisor and any retry timer,
// logs the device out, and erases credentials, rules and the session record.
// The identifier may be reused afterwards.
func (r *SessionRegistry) Stop(sessionID string) error {
	r.mu.Lock()
	h, exists := r.handles[sessionID]
	if exists {
		delete(r.handles, sessionID)
	}
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("session %s not found", sessionID)
	}

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	if h.client != nil {
		ctx, cancelLogout := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.client.Logout(ctx); err != nil {
			log.Printf("⚠️  Logout for %s failed: %v", sessionID, err)
		}
		cancelLogout()
		h.client.Close()
		h.client = nil
	}
	h.running = false
	h.status = models.StatusTerminated
	h.qr = ""
	h.signal()
	h.mu.Unlock()

	if err := r.store.DeleteCredentials(sessionID); err != nil {
		log.Printf("⚠️  Could not delete credentials for %s: %v", sessionID, err)
	}
	if err := r.store.DeleteSession(sessionID); err != nil {
		log.Printf("⚠️  Could not delete session record for %s: %v", sessionID, err)
	}
	r.rules.Remove(sessionID)

	log.Printf("🗑️  Session %s terminated", sessionID)
	return nil
}

// WaitForPairing blocks until the session is connected or a pairing code is
// available, up to the timeout. Waiters block on the handle's notification
// channel rather than polling.
func (r *SessionRegistry) WaitForPairing(ctx context.Context, sessionID string, timeout time.Duration) (connected bool, qr string, err error) {
	h, exists := r.handle(sessionID)
	if !exists {
		return false, "", fmt.Errorf("session %s not found", sessionID)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		h.mu.Lock()
		if h.status == models.StatusConnected {
			h.mu.Unlock()
			return true, "", nil
		}
		if h.qr != "" {
			qr := h.qr
			h.mu.Unlock()
			return false, qr, nil
		}
		wait := h.notify
		h.mu.Unlock()

		select {
		case <-wait:
		case <-deadline.C:
			return false, "", fmt.Errorf("timed out waiting for pairing")
		case <-ctx.Done():
			return false, "", ctx.Err()
		}
	}
}

// Restore re-registers persisted sessions after a restart and resumes the
// ones that still hold messaging credentials.
func (r *SessionRegistry) Restore() {
	sessions, err := r.store.ListSessions()
	if err != nil {
		log.Printf("⚠️  Could not list persisted sessions: %v", err)
		return
	}

	for _, session := range sessions {
		if err := r.Create(session.SessionID, session.APIKey); err != nil {
			log.Printf("⚠️  Could not restore session %s: %v", session.SessionID, err)
			continue
		}
		if r.store.HasCredentials(session.SessionID) {
			if err := r.Start(session.SessionID); err != nil {
				log.Printf("⚠️  Could not resume session %s: %v", session.SessionID, err)
			}
		}
	}

	log.Printf("✅ Restored %d persisted session(s)", len(sessions))
}
