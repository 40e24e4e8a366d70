package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wagate/wagate-backend/internal/models"
	"github.com/wagate/wagate-backend/internal/storage"
	"github.com/wagate/wagate-backend/internal/transport"
)

// fakeClient is a scripted transport connection driven by the test.
type fakeClient struct {
	creds  []byte
	events chan transport.Event

	mu        sync.Mutex
	sent      []sentText
	loggedOut bool
	closeOnce sync.Once
}

type sentText struct {
	to, text string
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }

func (f *fakeClient) SendText(ctx context.Context, toJID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{to: toJID, text: text})
	return nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeClient) Events() <-chan transport.Event { return f.events }

func (f *fakeClient) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeClient) sentMessages() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.sent...)
}

func (f *fakeClient) wasLoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

// fakeDialer hands out fakeClients and remembers them in dial order.
type fakeDialer struct {
	mu      sync.Mutex
	clients []*fakeClient
}

func (d *fakeDialer) dial(sessionID string, creds []byte) (transport.Client, error) {
	c := &fakeClient{creds: creds, events: make(chan transport.Event, 8)}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients = append(d.clients, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *fakeDialer) client(t *testing.T, n int) *fakeClient {
	t.Helper()
	waitFor(t, func() bool { return d.count() > n }, "transport was never dialed")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[n]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestRegistry(t *testing.T) (*SessionRegistry, *fakeDialer, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	rules := NewRuleService(store)
	dispatcher := NewDispatcher(rules, NewCallbackInvoker())
	dispatcher.SetDelay(0, func(time.Duration) {})

	dialer := &fakeDialer{}
	registry := NewSessionRegistry(store, rules, dispatcher, dialer.dial, nil)
	registry.SetRetryPolicy(FixedRetry{LoggedOut: 10 * time.Millisecond, Transient: 10 * time.Millisecond})
	return registry, dialer, store
}

func TestRegistry_CreateStartsUnlinked(t *testing.T) {
	registry, dialer, _ := newTestRegistry(t)

	if err := registry.Create("s1", "key1"); err != nil {
		t.Fatal(err)
	}

	if got := registry.Status("s1"); got != models.StatusUnlinked {
		t.Errorf("status = %q, want %q", got, models.StatusUnlinked)
	}
	if registry.Connected("s1") {
		t.Error("fresh session reports connected")
	}
	if dialer.count() != 0 {
		t.Errorf("create dialed the transport %d times, want 0", dialer.count())
	}
}

func TestRegistry_CreateOverwritesKey(t *testing.T) {
	registry, _, store := newTestRegistry(t)

	if err := registry.Create("s1", "old"); err != nil {
		t.Fatal(err)
	}
	if err := registry.Create("s1", "new"); err != nil {
		t.Fatal(err)
	}

	session, err := store.GetSession("s1")
	if err != nil {
		t.Fatal(err)
	}
	if session.APIKey != "new" {
		t.Errorf("api key = %q, want %q", session.APIKey, "new")
	}
}

func TestSupervisor_PairingFlow(t *testing.T) {
	registry, dialer, _ := newTestRegistry(t)
	registry.Create("s1", "key")
	if err := registry.Start("s1"); err != nil {
		t.Fatal(err)
	}

	client := dialer.client(t, 0)
	client.events <- transport.QREvent{Code: "code-1"}

	waitFor(t, func() bool {
		return registry.Status("s1") == models.StatusAwaitingPairing
	}, "session never reached awaiting_pairing")
	if got := registry.QR("s1"); got != "code-1" {
		t.Errorf("qr = %q, want %q", got, "code-1")
	}

	// A new pairing code replaces the previous one.
	client.events <- transport.QREvent{Code: "code-2"}
	waitFor(t, func() bool { return registry.QR("s1") == "code-2" }, "qr was not replaced")

	connected, qr, err := registry.WaitForPairing(context.Background(), "s1", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if connected || qr != "code-2" {
		t.Errorf("WaitForPairing = (%v, %q), want (false, code-2)", connected, qr)
	}

	client.events <- transport.OpenedEvent{}
	waitFor(t, func() bool { return registry.Connected("s1") }, "session never connected")
	if got := registry.QR("s1"); got != "" {
		t.Errorf("qr after connect = %q, want cleared", got)
	}
}

func TestSupervisor_RulesLoadedOnOpen(t *testing.T) {
	registry, dialer, store := newTestRegistry(t)
	store.SaveAutoReplies("s1", []models.AutoReplyRule{{Keyword: "hello", Reply: "hi!"}})

	registry.Create("s1", "key")
	registry.Start("s1")
	dialer.client(t, 0).events <- transport.OpenedEvent{}

	waitFor(t, func() bool {
		return len(registry.rules.GetAutoReplies("s1")) == 1
	}, "persisted rules were not loaded on connect")
}

func TestSupervisor_InboundDispatched(t *testing.T) {
	registry, dialer, store := newTestRegistry(t)
	store.SaveAutoReplies("s1", []models.AutoReplyRule{{Keyword: "hello", Reply: "hi!"}})

	registry.Create("s1", "key")
	registry.Start("s1")
	client := dialer.client(t, 0)
	client.events <- transport.OpenedEvent{}
	waitFor(t, func() bool { return registry.Connected("s1") }, "session never connected")

	client.events <- transport.MessageEvent{From: "911234567890@s.whatsapp.net", Text: "  HELLO!! "}

	waitFor(t, func() bool { return len(client.sentMessages()) == 1 }, "no reply was sent")
	sent := client.sentMessages()[0]
	if sent.to != "911234567890@s.whatsapp.net" || sent.text != "hi!" {
		t.Errorf("sent = %+v, want hi! back to sender", sent)
	}
}

func TestSupervisor_CredsEventPersisted(t *testing.T) {
	registry, dialer, store := newTestRegistry(t)
	registry.Create("s1", "key")
	registry.Start("s1")

	dialer.client(t, 0).events <- transport.CredsEvent{Data: []byte("blob")}

	waitFor(t, func() bool { return store.HasCredentials("s1") }, "credentials were not persisted")
	data, _ := store.GetCredentials("s1")
	if string(data) != "blob" {
		t.Errorf("stored creds = %q, want %q", data, "blob")
	}
}

func TestSupervisor_TransientCloseReconnectsWithCreds(t *testing.T) {
	registry, dialer, store := newTestRegistry(t)
	store.SaveCredentials("s1", []byte("keep-me"))

	registry.Create("s1", "key")
	registry.Start("s1")
	client := dialer.client(t, 0)
	client.events <- transport.OpenedEvent{}
	waitFor(t, func() bool { return registry.Connected("s1") }, "session never connected")

	client.events <- transport.ClosedEvent{StatusCode: 500}

	next := dialer.client(t, 1)
	if !store.HasCredentials("s1") {
		t.Error("transient close erased credentials")
	}
	if string(next.creds) != "keep-me" {
		t.Errorf("reconnect creds = %q, want %q", next.creds, "keep-me")
	}
}

func TestSupervisor_LoggedOutCloseWipesCreds(t *testing.T) {
	registry, dialer, store := newTestRegistry(t)
	store.SaveCredentials("s1", []byte("revoked"))

	registry.Create("s1", "key")
	registry.Start("s1")
	client := dialer.client(t, 0)
	client.events <- transport.OpenedEvent{}
	waitFor(t, func() bool { return registry.Connected("s1") }, "session never connected")

	client.events <- transport.ClosedEvent{StatusCode: transport.StatusLoggedOut}

	next := dialer.client(t, 1)
	if store.HasCredentials("s1") {
		t.Error("logged-out close kept credentials")
	}
	if next.creds != nil {
		t.Errorf("fresh pairing cycle got creds %q, want none", next.creds)
	}
}

func TestRegistry_StartIsIdempotentWhileRunning(t *testing.T) {
	registry, dialer, _ := newTestRegistry(t)
	registry.Create("s1", "key")
	registry.Start("s1")
	dialer.client(t, 0)

	for i := 0; i < 5; i++ {
		if err := registry.Start("s1"); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(30 * time.Millisecond)

	if dialer.count() != 1 {
		t.Errorf("transport dialed %d times, want 1", dialer.count())
	}
}

func TestRegistry_StopTerminatesAndWipes(t *testing.T) {
	registry, dialer, store := newTestRegistry(t)
	store.SaveCredentials("s1", []byte("blob"))
	store.SaveAutoReplies("s1", []models.AutoReplyRule{{Keyword: "a", Reply: "b"}})

	registry.Create("s1", "key")
	registry.Start("s1")
	client := dialer.client(t, 0)
	client.events <- transport.OpenedEvent{}
	waitFor(t, func() bool { return registry.Connected("s1") }, "session never connected")

	if err := registry.Stop("s1"); err != nil {
		t.Fatal(err)
	}

	if got := registry.Status("s1"); got != models.StatusTerminated {
		t.Errorf("status after delete = %q, want %q", got, models.StatusTerminated)
	}
	if registry.Connected("s1") {
		t.Error("deleted session reports connected")
	}
	if !client.wasLoggedOut() {
		t.Error("delete did not request transport logout")
	}
	if store.HasCredentials("s1") {
		t.Error("delete kept credentials")
	}
	if _, err := store.GetSession("s1"); err != storage.ErrNotFound {
		t.Errorf("session record still present after delete: %v", err)
	}
	if rules := registry.rules.GetAutoReplies("s1"); len(rules) != 0 {
		t.Errorf("rules survived delete: %v", rules)
	}

	// Retry timers must be cancelled: no further dials after delete.
	dials := dialer.count()
	time.Sleep(50 * time.Millisecond)
	if dialer.count() != dials {
		t.Error("supervisor kept reconnecting after delete")
	}
}

func TestRegistry_IDReusableAfterStop(t *testing.T) {
	registry, dialer, _ := newTestRegistry(t)
	registry.Create("s1", "key")
	registry.Start("s1")
	dialer.client(t, 0)
	registry.Stop("s1")

	if err := registry.Create("s1", "key2"); err != nil {
		t.Fatal(err)
	}
	if got := registry.Status("s1"); got != models.StatusUnlinked {
		t.Errorf("recreated session status = %q, want %q", got, models.StatusUnlinked)
	}
}

func TestRegistry_WaitForPairingTimesOut(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	registry.Create("s1", "key")

	_, _, err := registry.WaitForPairing(context.Background(), "s1", 30*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestSupervisor_CallbackFailureFallsBackAndStaysConnected(t *testing.T) {
	registry, dialer, store := newTestRegistry(t)
	store.SaveRegexTriggers("s1", []models.RegexTrigger{
		{Name: "dead", Pattern: `ping`, CallbackURL: "http://127.0.0.1:1/unreachable"},
	})

	registry.Create("s1", "key")
	registry.Start("s1")
	client := dialer.client(t, 0)
	client.events <- transport.OpenedEvent{}
	waitFor(t, func() bool { return registry.Connected("s1") }, "session never connected")

	client.events <- transport.MessageEvent{From: "911234567890@s.whatsapp.net", Text: "ping"}

	waitFor(t, func() bool { return len(client.sentMessages()) == 1 }, "no reply was sent")
	if got := client.sentMessages()[0].text; got != CallbackFallback {
		t.Errorf("reply = %q, want the fallback string", got)
	}
	if !registry.Connected("s1") {
		t.Error("callback failure knocked the session offline")
	}
}

func TestRegistry_SendTextRequiresConnection(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	registry.Create("s1", "key")

	err := registry.SendText(context.Background(), "s1", "911234567890@s.whatsapp.net", "hi")
	if err == nil {
		t.Fatal("expected an error on a disconnected session")
	}
}
