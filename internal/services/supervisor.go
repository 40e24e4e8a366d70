package services

import (
	"context"
	"log"
	"time"

	"github.com/wagate/wagate-backend/internal/models"
	"github.com/wagate/wagate-backend/internal/storage"
	"github.com/wagate/wagate-backend/internal/transport"
)

// RetryPolicy decides how long to wait before the next reconnect attempt.
// Attempts are unbounded; a policy only shapes the delay.
type RetryPolicy interface {
	Delay(loggedOut bool) time.Duration
}

// FixedRetry reconnects after a fixed delay, shorter when the credential
// was revoked so a fresh pairing code shows up quickly.
type FixedRetry struct {
	LoggedOut time.Duration
	Transient time.Duration
}

func (f FixedRetry) Delay(loggedOut bool) time.Duration {
	if loggedOut {
		return f.LoggedOut
	}
	return f.Transient
}

// DefaultRetry returns the stock reconnect policy
func DefaultRetry() RetryPolicy {
	return FixedRetry{LoggedOut: 4 * time.Second, Transient: 7 * time.Second}
}

// supervise is the per-session connection loop: dial, pump events, and on
// close decide between credential reset and plain reconnect. It is the only
// goroutine that touches the session's transport, so inbound messages are
// dispatched strictly one at a time.
func (r *SessionRegistry) supervise(ctx context.Context, h *SessionHandle) {
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	for {
		creds, err := r.store.GetCredentials(h.ID)
		if err != nil && err != storage.ErrNotFound {
			log.Printf("⚠️  Could not read credentials for %s: %v", h.ID, err)
		}

		client, err := r.dial(h.ID, creds)
		if err == nil {
			err = client.Connect(ctx)
		}
		if err != nil {
			log.Printf("❌ Connect failed for %s: %v", h.ID, err)
			h.setStatus(models.StatusDisconnected)
			if !sleepCtx(ctx, r.retry.Delay(false)) {
				return
			}
			h.setStatus(models.StatusConnecting)
			continue
		}

		h.mu.Lock()
		h.client = client
		h.mu.Unlock()

		loggedOut, closed := r.pumpEvents(ctx, h, client)

		client.Close()
		h.mu.Lock()
		h.client = nil
		h.mu.Unlock()

		if !closed {
			// Stop cancelled us; it owns the terminal state.
			return
		}

		h.setStatus(models.StatusDisconnected)

		if loggedOut {
			log.Printf("🔒 Session %s logged out - wiping credentials for fresh pairing", h.ID)
			if err := r.store.DeleteCredentials(h.ID); err != nil {
				log.Printf("⚠️  Could not delete credentials for %s: %v", h.ID, err)
			}
			r.alerts.NotifyLoggedOut(h.ID)
		} else {
			log.Printf("🔌 Session %s disconnected - will reconnect", h.ID)
		}

		if !sleepCtx(ctx, r.retry.Delay(loggedOut)) {
			return
		}
		h.setStatus(models.StatusConnecting)
	}
}

// pumpEvents consumes transport events until the connection closes or the
// context is cancelled. Returns whether the close was a logout and whether
// the connection actually closed (false means cancellation).
func (r *SessionRegistry) pumpEvents(ctx context.Context, h *SessionHandle, client transport.Client) (loggedOut, closed bool) {
	for {
		select {
		case <-ctx.Done():
			return false, false
		case ev, ok := <-client.Events():
			if !ok {
				return false, true
			}

			switch ev := ev.(type) {
			case transport.QREvent:
				log.Printf("📲 Pairing code issued for %s", h.ID)
				h.setQR(ev.Code)

			case transport.OpenedEvent:
				log.Printf("✅ Session %s connected", h.ID)
				h.setConnected()
				r.rules.Load(h.ID)

			case transport.CredsEvent:
				if err := r.store.SaveCredentials(h.ID, ev.Data); err != nil {
					log.Printf("⚠️  Could not persist credentials for %s: %v", h.ID, err)
				}

			case transport.MessageEvent:
				r.handleInbound(ctx, h, client, ev)

			case transport.ClosedEvent:
				return ev.IsLoggedOut(), true
			}
		}
	}
}

// handleInbound runs one message through the dispatch pipeline and sends
// the resulting action, if any. Dispatch side effects complete before the
// next event is consumed.
func (r *SessionRegistry) handleInbound(ctx context.Context, h *SessionHandle, client transport.Client, ev transport.MessageEvent) {
	action := r.dispatcher.Dispatch(h.ID, ev.From, ev.Text)
	if action == nil {
		return
	}
	if err := client.SendText(ctx, action.To, action.Text); err != nil {
		log.Printf("❌ Failed to send reply on %s: %v", h.ID, err)
	}
}

// sleepCtx waits for the delay unless the context is cancelled first.
func sleepCtx(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
