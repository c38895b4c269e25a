package command

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hermes/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type memStore struct {
	prefs map[string]string // workspace/user -> code
	err   error
}

func newMemStore() *memStore { return &memStore{prefs: map[string]string{}} }

func (m *memStore) Get(_ context.Context, workspace, userID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.prefs[workspace+"/"+userID], nil
}

func (m *memStore) Set(_ context.Context, workspace, userID, language string) error {
	if m.err != nil {
		return m.err
	}
	m.prefs[workspace+"/"+userID] = language
	return nil
}

func (m *memStore) AddWorkspace(ctx context.Context, workspace, lang string) error {
	return m.Set(ctx, workspace, domain.DefaultUserKey, lang)
}

func (m *memStore) BatchGet(context.Context, string, []string) ([]domain.Preference, error) {
	return nil, nil
}

func testCommander(store domain.PreferenceStore) *Commander {
	return NewCommander(store, NewCatalog(), testLogger())
}

func TestSetLanguage(t *testing.T) {
	store := newMemStore()
	c := testCommander(store)

	reply := c.Execute(context.Background(), "T1", "U1", "set language Spanish")
	if reply != "Language set to Spanish" {
		t.Errorf("reply: %q", reply)
	}
	if store.prefs["T1/U1"] != "es" {
		t.Errorf("stored code: %q", store.prefs["T1/U1"])
	}
}

func TestSetLanguage_CaseInsensitive(t *testing.T) {
	store := newMemStore()
	c := testCommander(store)

	reply := c.Execute(context.Background(), "T1", "U1", "set language FRENCH")
	if reply != "Language set to French" {
		t.Errorf("reply: %q", reply)
	}
	if store.prefs["T1/U1"] != "fr" {
		t.Errorf("stored code: %q", store.prefs["T1/U1"])
	}
}

func TestSetLanguage_Invalid(t *testing.T) {
	store := newMemStore()
	c := testCommander(store)

	reply := c.Execute(context.Background(), "T1", "U1", "set language klingon")
	if reply != "Invalid language" {
		t.Errorf("reply: %q", reply)
	}
	if len(store.prefs) != 0 {
		t.Error("invalid language must not be stored")
	}
}

func TestGetLanguage_RoundTrip(t *testing.T) {
	store := newMemStore()
	c := testCommander(store)
	ctx := context.Background()

	if reply := c.Execute(ctx, "T1", "U1", "get language"); reply != "None set" {
		t.Errorf("before set: %q", reply)
	}

	c.Execute(ctx, "T1", "U1", "set language Spanish")

	if reply := c.Execute(ctx, "T1", "U1", "get language"); reply != "Language set to Spanish" {
		t.Errorf("after set: %q", reply)
	}
}

func TestListLanguages(t *testing.T) {
	c := testCommander(newMemStore())

	reply := c.Execute(context.Background(), "T1", "U1", "list languages")
	if !strings.Contains(reply, "English") || !strings.Contains(reply, "Japanese") {
		t.Errorf("list incomplete: %q", reply)
	}
	names := strings.Split(reply, ", ")
	if len(names) != 24 {
		t.Errorf("expected 24 languages, got %d", len(names))
	}
}

func TestHelp(t *testing.T) {
	c := testCommander(newMemStore())

	reply := c.Execute(context.Background(), "T1", "U1", "help")
	for _, want := range []string{"help -", "set language <language> -", "get language -", "list languages -"} {
		if !strings.Contains(reply, want) {
			t.Errorf("help missing %q:\n%s", want, reply)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	c := testCommander(newMemStore())

	reply := c.Execute(context.Background(), "T1", "U1", "make me a sandwich")
	if !strings.Contains(reply, "Command not found") {
		t.Errorf("reply: %q", reply)
	}
	if !strings.Contains(reply, "set language") {
		t.Error("unknown command reply should include help")
	}
}

func TestStoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("store down")
	c := testCommander(store)

	reply := c.Execute(context.Background(), "T1", "U1", "set language Spanish")
	if strings.Contains(reply, "store down") {
		t.Error("internal error detail leaked to user")
	}
}

func TestLoadCatalog_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.yaml")
	if err := os.WriteFile(path, []byte("elvish: qya\nEnglish: en\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if code, ok := catalog.Code("Elvish"); !ok || code != "qya" {
		t.Errorf("override entry missing: %q %v", code, ok)
	}
	if _, ok := catalog.Code("french"); ok {
		t.Error("override should replace the builtin catalog entirely")
	}
}

func TestLoadCatalog_MissingFileFallsBack(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if code, ok := catalog.Code("german"); !ok || code != "de" {
		t.Errorf("builtin fallback broken: %q %v", code, ok)
	}
}
