package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wagate/wagate-backend/internal/models"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestFileStore_SessionRoundTrip(t *testing.T) {
	store := newTestFileStore(t)

	if err := store.SaveSession(&models.Session{SessionID: "s1", APIKey: "secret"}); err != nil {
		t.Fatal(err)
	}

	session, err := store.GetSession("s1")
	if err != nil {
		t.Fatal(err)
	}
	if session.SessionID != "s1" || session.APIKey != "secret" {
		t.Errorf("got %+v, want s1/secret", session)
	}

	sessions, err := store.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Errorf("ListSessions returned %d, want 1", len(sessions))
	}

	if err := store.DeleteSession("s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetSession("s1"); err != ErrNotFound {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestFileStore_CredentialsRoundTrip(t *testing.T) {
	store := newTestFileStore(t)

	if store.HasCredentials("s1") {
		t.Error("fresh store claims to have credentials")
	}
	if err := store.SaveCredentials("s1", []byte("blob")); err != nil {
		t.Fatal(err)
	}
	if !store.HasCredentials("s1") {
		t.Error("saved credentials not found")
	}

	data, err := store.GetCredentials("s1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "blob" {
		t.Errorf("creds = %q, want %q", data, "blob")
	}

	if err := store.DeleteCredentials("s1"); err != nil {
		t.Fatal(err)
	}
	if store.HasCredentials("s1") {
		t.Error("credentials survived delete")
	}
	// Deleting twice is fine.
	if err := store.DeleteCredentials("s1"); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}

func TestFileStore_RuleCollectionsRoundTrip(t *testing.T) {
	store := newTestFileStore(t)

	autoReplies := []models.AutoReplyRule{{Keyword: "hello", Reply: "hi!"}}
	triggers := []models.RegexTrigger{{Name: "t", Pattern: `a\d+`, CallbackURL: "http://example.com/cb"}}
	proTriggers := []models.ProRegexTrigger{{Name: "p", Pattern: `b+`, CallbackURL: "http://example.com/cb", AllowedSenders: []string{"911234567890"}}}

	if err := store.SaveAutoReplies("s1", autoReplies); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveRegexTriggers("s1", triggers); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveProRegexTriggers("s1", proTriggers); err != nil {
		t.Fatal(err)
	}

	gotAuto, err := store.GetAutoReplies("s1")
	if err != nil || len(gotAuto) != 1 || gotAuto[0] != autoReplies[0] {
		t.Errorf("auto-replies = %v (%v), want %v", gotAuto, err, autoReplies)
	}
	gotTriggers, err := store.GetRegexTriggers("s1")
	if err != nil || len(gotTriggers) != 1 || gotTriggers[0] != triggers[0] {
		t.Errorf("triggers = %v (%v), want %v", gotTriggers, err, triggers)
	}
	gotPro, err := store.GetProRegexTriggers("s1")
	if err != nil || len(gotPro) != 1 || gotPro[0].Name != "p" || len(gotPro[0].AllowedSenders) != 1 {
		t.Errorf("pro triggers = %v (%v), want %v", gotPro, err, proTriggers)
	}

	if err := store.DeleteRules("s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetAutoReplies("s1"); err != ErrNotFound {
		t.Errorf("auto-replies survived DeleteRules: %v", err)
	}
}

func TestFileStore_MissingDocumentsReportNotFound(t *testing.T) {
	store := newTestFileStore(t)

	if _, err := store.GetSession("ghost"); err != ErrNotFound {
		t.Errorf("GetSession err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetCredentials("ghost"); err != ErrNotFound {
		t.Errorf("GetCredentials err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetAutoReplies("ghost"); err != ErrNotFound {
		t.Errorf("GetAutoReplies err = %v, want ErrNotFound", err)
	}
}

func TestFileStore_DocumentsAreScopedBySession(t *testing.T) {
	store := newTestFileStore(t)

	store.SaveAutoReplies("s1", []models.AutoReplyRule{{Keyword: "a", Reply: "b"}})
	if _, err := store.GetAutoReplies("s2"); err != ErrNotFound {
		t.Errorf("s2 sees rules of s1: %v", err)
	}

	// Files land under the store's directory, one per concern.
	dir := store.dir
	if _, err := os.Stat(filepath.Join(dir, "s1_autoreplies.json")); err != nil {
		t.Errorf("expected document file on disk: %v", err)
	}
}
