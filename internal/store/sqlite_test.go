// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers alias/login round-trips, duplicate rejection, and not-found errors

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestAddAndGetServerAlias(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddServerAlias(ctx, "@alice:example.com", "https://git.example.com", "work"); err != nil {
		t.Fatalf("AddServerAlias failed: %v", err)
	}

	has, err := store.HasServerAlias(ctx, "@alice:example.com", "work")
	if err != nil {
		t.Fatalf("HasServerAlias failed: %v", err)
	}
	if !has {
		t.Error("HasServerAlias returned false after add")
	}

	got, err := store.GetServerAlias(ctx, "@alice:example.com", "work")
	if err != nil {
		t.Fatalf("GetServerAlias failed: %v", err)
	}
	if got != "https://git.example.com" {
		t.Errorf("GetServerAlias mismatch: got %q, want %q", got, "https://git.example.com")
	}
}

func TestAddServerAlias_Duplicate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddServerAlias(ctx, "@alice:example.com", "https://git.example.com", "work"); err != nil {
		t.Fatalf("AddServerAlias failed: %v", err)
	}

	err := store.AddServerAlias(ctx, "@alice:example.com", "https://other.example.com", "work")
	if err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestServerAlias_PerUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	// Same alias name for different users is fine
	if err := store.AddServerAlias(ctx, "@alice:example.com", "https://git.example.com", "work"); err != nil {
		t.Fatalf("AddServerAlias (alice) failed: %v", err)
	}
	if err := store.AddServerAlias(ctx, "@bob:example.com", "https://forge.example.org", "work"); err != nil {
		t.Fatalf("AddServerAlias (bob) failed: %v", err)
	}

	got, err := store.GetServerAlias(ctx, "@bob:example.com", "work")
	if err != nil {
		t.Fatalf("GetServerAlias failed: %v", err)
	}
	if got != "https://forge.example.org" {
		t.Errorf("GetServerAlias mismatch: got %q, want %q", got, "https://forge.example.org")
	}
}

func TestRemoveServerAlias(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddServerAlias(ctx, "@alice:example.com", "https://git.example.com", "work"); err != nil {
		t.Fatalf("AddServerAlias failed: %v", err)
	}
	if err := store.RemoveServerAlias(ctx, "@alice:example.com", "work"); err != nil {
		t.Fatalf("RemoveServerAlias failed: %v", err)
	}

	has, err := store.HasServerAlias(ctx, "@alice:example.com", "work")
	if err != nil {
		t.Fatalf("HasServerAlias failed: %v", err)
	}
	if has {
		t.Error("HasServerAlias returned true after remove")
	}
}

func TestRemoveServerAlias_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.RemoveServerAlias(context.Background(), "@alice:example.com", "nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetServerAliases(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	// Two aliases may point at the same server
	if err := store.AddServerAlias(ctx, "@alice:example.com", "https://git.example.com", "work"); err != nil {
		t.Fatalf("AddServerAlias failed: %v", err)
	}
	if err := store.AddServerAlias(ctx, "@alice:example.com", "https://git.example.com", "main"); err != nil {
		t.Fatalf("AddServerAlias failed: %v", err)
	}

	aliases, err := store.GetServerAliases(ctx, "@alice:example.com")
	if err != nil {
		t.Fatalf("GetServerAliases failed: %v", err)
	}
	if len(aliases) != 2 {
		t.Fatalf("expected 2 aliases, got %d", len(aliases))
	}
	for _, a := range aliases {
		if a.Server != "https://git.example.com" {
			t.Errorf("unexpected server %q for alias %q", a.Server, a.Alias)
		}
	}
}

func TestGetServerAliases_Empty(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	aliases, err := store.GetServerAliases(context.Background(), "@nobody:example.com")
	if err != nil {
		t.Fatalf("GetServerAliases failed: %v", err)
	}
	if len(aliases) != 0 {
		t.Errorf("expected no aliases, got %d", len(aliases))
	}
}

func TestAddAndGetLogin(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddLogin(ctx, "@alice:example.com", "https://git.example.com", "tok-123"); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}

	info, err := store.GetLogin(ctx, "@alice:example.com", "https://git.example.com")
	if err != nil {
		t.Fatalf("GetLogin failed: %v", err)
	}
	if info.Server != "https://git.example.com" {
		t.Errorf("Server mismatch: got %q, want %q", info.Server, "https://git.example.com")
	}
	if info.APIToken != "tok-123" {
		t.Errorf("APIToken mismatch: got %q, want %q", info.APIToken, "tok-123")
	}
}

func TestAddLogin_Duplicate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddLogin(ctx, "@alice:example.com", "https://git.example.com", "tok-123"); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}

	// A second login for the same server is rejected, not overwritten
	err := store.AddLogin(ctx, "@alice:example.com", "https://git.example.com", "tok-456")
	if err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	info, err := store.GetLogin(ctx, "@alice:example.com", "https://git.example.com")
	if err != nil {
		t.Fatalf("GetLogin failed: %v", err)
	}
	if info.APIToken != "tok-123" {
		t.Errorf("token was overwritten: got %q, want %q", info.APIToken, "tok-123")
	}
}

func TestGetLogin_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetLogin(context.Background(), "@alice:example.com", "https://git.example.com")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveLogin(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddLogin(ctx, "@alice:example.com", "https://git.example.com", "tok-123"); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}
	if err := store.RemoveLogin(ctx, "@alice:example.com", "https://git.example.com"); err != nil {
		t.Fatalf("RemoveLogin failed: %v", err)
	}

	_, err := store.GetLogin(ctx, "@alice:example.com", "https://git.example.com")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestRemoveLogin_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.RemoveLogin(context.Background(), "@alice:example.com", "https://git.example.com")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetServers(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddLogin(ctx, "@alice:example.com", "https://git.example.com", "tok-1"); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}
	if err := store.AddLogin(ctx, "@alice:example.com", "https://forge.example.org", "tok-2"); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}
	if err := store.AddLogin(ctx, "@bob:example.com", "https://git.example.com", "tok-3"); err != nil {
		t.Fatalf("AddLogin failed: %v", err)
	}

	servers, err := store.GetServers(ctx, "@alice:example.com")
	if err != nil {
		t.Fatalf("GetServers failed: %v", err)
	}
	if len(servers) != 2 {
		t.Errorf("expected 2 servers, got %d", len(servers))
	}
}

func TestRepoAliasRoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddRepoAlias(ctx, "@alice:example.com", "org/repo", "main"); err != nil {
		t.Fatalf("AddRepoAlias failed: %v", err)
	}

	has, err := store.HasRepoAlias(ctx, "@alice:example.com", "main")
	if err != nil {
		t.Fatalf("HasRepoAlias failed: %v", err)
	}
	if !has {
		t.Error("HasRepoAlias returned false after add")
	}

	got, err := store.GetRepoAlias(ctx, "@alice:example.com", "main")
	if err != nil {
		t.Fatalf("GetRepoAlias failed: %v", err)
	}
	if got != "org/repo" {
		t.Errorf("GetRepoAlias mismatch: got %q, want %q", got, "org/repo")
	}

	if err := store.RemoveRepoAlias(ctx, "@alice:example.com", "main"); err != nil {
		t.Fatalf("RemoveRepoAlias failed: %v", err)
	}

	has, err = store.HasRepoAlias(ctx, "@alice:example.com", "main")
	if err != nil {
		t.Fatalf("HasRepoAlias failed: %v", err)
	}
	if has {
		t.Error("HasRepoAlias returned true after remove")
	}
}

func TestAddRepoAlias_Duplicate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddRepoAlias(ctx, "@alice:example.com", "org/repo", "main"); err != nil {
		t.Fatalf("AddRepoAlias failed: %v", err)
	}

	err := store.AddRepoAlias(ctx, "@alice:example.com", "org/other", "main")
	if err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestRemoveRepoAlias_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.RemoveRepoAlias(context.Background(), "@alice:example.com", "nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRepoAliases(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AddRepoAlias(ctx, "@alice:example.com", "org/repo", "main"); err != nil {
		t.Fatalf("AddRepoAlias failed: %v", err)
	}
	if err := store.AddRepoAlias(ctx, "@alice:example.com", "org/docs", "docs"); err != nil {
		t.Fatalf("AddRepoAlias failed: %v", err)
	}

	aliases, err := store.GetRepoAliases(ctx, "@alice:example.com")
	if err != nil {
		t.Fatalf("GetRepoAliases failed: %v", err)
	}
	if len(aliases) != 2 {
		t.Errorf("expected 2 aliases, got %d", len(aliases))
	}
}
