package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// frame is the JSON envelope exchanged with the protocol bridge.
type frame struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	To    string `json:"to,omitempty"`
	Text  string `json:"text,omitempty"`
	From  string `json:"from,omitempty"`
	Code  string `json:"code,omitempty"`
	Creds string `json:"creds,omitempty"` // base64 credential blob
	// Status is the protocol close code on "close" frames.
	Status int `json:"status,omitempty"`
}

// BridgeClient speaks JSON frames over a websocket to the protocol bridge,
// which owns the actual messaging wire protocol and encryption.
type BridgeClient struct {
	sessionID string
	baseURL   string
	creds     []byte

	conn    *websocket.Conn
	writeMu sync.Mutex
	events  chan Event
	done    chan struct{}
	closed  sync.Once
}

// NewBridgeDialer returns a Dialer that connects sessions through the
// bridge at baseURL (ws:// or wss://).
func NewBridgeDialer(baseURL string) Dialer {
	return func(sessionID string, creds []byte) (Client, error) {
		if baseURL == "" {
			return nil, fmt.Errorf("BRIDGE_URL not configured")
		}
		return &BridgeClient{
			sessionID: sessionID,
			baseURL:   baseURL,
			creds:     creds,
			events:    make(chan Event, 16),
			done:      make(chan struct{}),
		}, nil
	}
}

func (b *BridgeClient) Connect(ctx context.Context) error {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return fmt.Errorf("invalid bridge URL: %w", err)
	}
	u.Path = "/session/" + b.sessionID

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	b.conn = conn

	// Hand over stored credentials so the bridge can resume the session.
	hello := frame{ID: uuid.NewString(), Type: "connect"}
	if len(b.creds) > 0 {
		hello.Creds = base64.StdEncoding.EncodeToString(b.creds)
	}
	if err := b.write(&hello); err != nil {
		conn.Close()
		return err
	}

	go b.readPump()
	return nil
}

func (b *BridgeClient) write(f *frame) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return b.conn.WriteJSON(f)
}

// readPump translates bridge frames into transport events until the
// connection dies, then closes the event channel.
func (b *BridgeClient) readPump() {
	defer func() {
		b.closed.Do(func() { close(b.done) })
		close(b.events)
	}()

	for {
		var f frame
		if err := b.conn.ReadJSON(&f); err != nil {
			select {
			case <-b.done:
			default:
				log.Printf("bridge read error for %s: %v", b.sessionID, err)
				b.events <- ClosedEvent{StatusCode: 0}
			}
			return
		}

		switch f.Type {
		case "qr":
			b.events <- QREvent{Code: f.Code}
		case "open":
			b.events <- OpenedEvent{}
		case "close":
			b.events <- ClosedEvent{StatusCode: f.Status}
			return
		case "message":
			b.events <- MessageEvent{From: f.From, Text: f.Text}
		case "creds":
			data, err := base64.StdEncoding.DecodeString(f.Creds)
			if err != nil {
				log.Printf("bridge sent undecodable creds for %s: %v", b.sessionID, err)
				continue
			}
			b.events <- CredsEvent{Data: data}
		default:
			log.Printf("bridge sent unknown frame type %q for %s", f.Type, b.sessionID)
		}
	}
}

func (b *BridgeClient) SendText(ctx context.Context, toJID, text string) error {
	if b.conn == nil {
		return fmt.Errorf("not connected")
	}
	return b.write(&frame{ID: uuid.NewString(), Type: "send", To: toJID, Text: text})
}

func (b *BridgeClient) Logout(ctx context.Context) error {
	if b.conn == nil {
		return nil
	}
	return b.write(&frame{ID: uuid.NewString(), Type: "logout"})
}

func (b *BridgeClient) Events() <-chan Event {
	return b.events
}

func (b *BridgeClient) Close() error {
	b.closed.Do(func() { close(b.done) })
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
