// Package transport abstracts the messaging-protocol connection. The wire
// protocol itself lives behind a bridge process; this package only moves
// events and sends across.
package transport

import "context"

// Client is one live protocol connection for a single session.
type Client interface {
	// Connect establishes the connection. Events start flowing on the
	// channel returned by Events once Connect returns nil.
	Connect(ctx context.Context) error

	// SendText sends a text message to a JID.
	SendText(ctx context.Context, toJID, text string) error

	// Logout invalidates the device link on the remote side.
	Logout(ctx context.Context) error

	// Events delivers connection lifecycle events and inbound messages,
	// one at a time. The channel is closed when the connection dies.
	Events() <-chan Event

	Close() error
}

// Dialer creates a Client for a session, resuming with the given
// credential blob when non-nil.
type Dialer func(sessionID string, creds []byte) (Client, error)

// Event is one transport occurrence. Exactly one of the Is* predicates or
// type switches below applies.
type Event interface{ isEvent() }

// QREvent carries a freshly issued pairing code. Each one invalidates the
// previous code.
type QREvent struct {
	Code string
}

// OpenedEvent signals the connection is authenticated and live.
type OpenedEvent struct{}

// ClosedEvent signals the connection dropped, with the protocol status code.
type ClosedEvent struct {
	StatusCode int
}

// StatusLoggedOut is the close code for a revoked device credential.
const StatusLoggedOut = 401

// IsLoggedOut reports whether the close means the credential is gone for
// good and a fresh pairing is required.
func (e ClosedEvent) IsLoggedOut() bool {
	return e.StatusCode == StatusLoggedOut
}

// MessageEvent is one inbound message. Text is empty when the message had
// no extractable text.
type MessageEvent struct {
	From string
	Text string
}

// CredsEvent carries an updated credential blob the gateway must persist.
type CredsEvent struct {
	Data []byte
}

func (QREvent) isEvent()      {}
func (OpenedEvent) isEvent()  {}
func (ClosedEvent) isEvent()  {}
func (MessageEvent) isEvent() {}
func (CredsEvent) isEvent()   {}
