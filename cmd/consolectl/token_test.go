package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTokenFile_RoundTrip(t *testing.T) {
	tf := tokenFile{path: filepath.Join(t.TempDir(), "nested", "token")}

	if _, err := tf.Load(); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected errNotLoggedIn before login, got %v", err)
	}
	if err := tf.Save("abc123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(tf.path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected mode 0600, got %o", perm)
	}

	tok, err := tf.Load()
	if err != nil || tok != "abc123" {
		t.Fatalf("expected abc123, got %q (%v)", tok, err)
	}

	if err := tf.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := tf.Remove(); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if _, err := tf.Load(); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected errNotLoggedIn after logout, got %v", err)
	}
}

func TestTokenFile_BlankIsLoggedOut(t *testing.T) {
	tf := tokenFile{path: filepath.Join(t.TempDir(), "token")}
	if err := os.WriteFile(tf.path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tf.Load(); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected errNotLoggedIn, got %v", err)
	}
}
