package guilds

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "guild_settings.yaml"), nil)
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg := s.Config(1); cfg != (Config{}) {
		t.Errorf("unconfigured guild = %+v, want zero value", cfg)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guild_settings.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path, nil)
	if err := s.Load(); err == nil {
		t.Error("malformed YAML should fail to load")
	}
}

func TestSettingsPersistAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guild_settings.yaml")

	s := NewStore(path, nil)
	if err := s.SetWatchChannel(42, "111"); err != nil {
		t.Fatalf("SetWatchChannel: %v", err)
	}
	if err := s.SetPostChannel(42, "222"); err != nil {
		t.Fatalf("SetPostChannel: %v", err)
	}
	if err := s.SetWatchChannel(99, "333"); err != nil {
		t.Fatalf("SetWatchChannel second guild: %v", err)
	}

	// A fresh store reading the same file sees every mutation.
	reloaded := NewStore(path, nil)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := reloaded.Config(42)
	if cfg.WatchChannel != "111" || cfg.PostChannel != "222" {
		t.Errorf("guild 42 = %+v", cfg)
	}
	if got := reloaded.Config(99).WatchChannel; got != "333" {
		t.Errorf("guild 99 watch channel = %q", got)
	}
}

// brokenStore returns a store whose save path cannot be written.
func brokenStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "missing-dir", "guilds.yaml"), nil)
}

func TestUpdateRollsBackOnSaveFailure(t *testing.T) {
	s := brokenStore(t)

	if err := s.SetWatchChannel(42, "111"); err == nil {
		t.Fatal("save to an unwritable path should fail")
	}
	if cfg := s.Config(42); cfg != (Config{}) {
		t.Errorf("failed save left in-memory state behind: %+v", cfg)
	}

	// An existing entry keeps its old value after a failed mutation.
	writable := newTestStore(t)
	if err := writable.SetWatchChannel(42, "111"); err != nil {
		t.Fatal(err)
	}
	writable.path = filepath.Join(t.TempDir(), "missing-dir", "guilds.yaml")
	if err := writable.SetWatchChannel(42, "222"); err == nil {
		t.Fatal("save to an unwritable path should fail")
	}
	if got := writable.Config(42).WatchChannel; got != "111" {
		t.Errorf("WatchChannel = %q, want rollback to 111", got)
	}
}

func TestEnsureTokenRollsBackOnSaveFailure(t *testing.T) {
	s := brokenStore(t)

	if _, err := s.EnsureToken(7); err == nil {
		t.Fatal("minting should fail when the token cannot be persisted")
	}
	if got := s.Config(7).WebhookToken; got != "" {
		t.Errorf("unpersisted token kept in memory: %q", got)
	}
	// The guild stays in bootstrap mode.
	if !s.VerifyToken(7, "anything") {
		t.Error("failed mint should leave the guild accepting any token")
	}
}

func TestEnsureTokenStable(t *testing.T) {
	s := newTestStore(t)

	token, err := s.EnsureToken(7)
	if err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	again, err := s.EnsureToken(7)
	if err != nil {
		t.Fatalf("second EnsureToken: %v", err)
	}
	if again != token {
		t.Errorf("token changed between calls: %q vs %q", token, again)
	}

	other, err := s.EnsureToken(8)
	if err != nil {
		t.Fatalf("EnsureToken other guild: %v", err)
	}
	if other == token {
		t.Error("distinct guilds share a token")
	}
}

func TestVerifyToken(t *testing.T) {
	s := newTestStore(t)

	// Bootstrap mode: no token configured, anything passes.
	if !s.VerifyToken(7, "anything") {
		t.Error("guild without token should accept any token")
	}
	if !s.VerifyToken(7, "") {
		t.Error("guild without token should accept an empty token")
	}

	token, err := s.EnsureToken(7)
	if err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}

	if !s.VerifyToken(7, token) {
		t.Error("configured token should verify")
	}
	if s.VerifyToken(7, "wrong") {
		t.Error("wrong token should be rejected once one is configured")
	}
	if s.VerifyToken(7, "") {
		t.Error("empty token should be rejected once one is configured")
	}
}

func TestDestination(t *testing.T) {
	s := newTestStore(t)

	watch, post := s.Destination(1, "fallback")
	if watch != "" || post != "fallback" {
		t.Errorf("unconfigured guild: watch=%q post=%q", watch, post)
	}

	if err := s.SetWatchChannel(1, "w"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPostChannel(1, "p"); err != nil {
		t.Fatal(err)
	}

	watch, post = s.Destination(1, "fallback")
	if watch != "w" || post != "p" {
		t.Errorf("configured guild: watch=%q post=%q", watch, post)
	}
}
