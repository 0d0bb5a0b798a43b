package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestChunkCombineOutOfOrder(t *testing.T) {
	store := NewChunkSessionStore(t.TempDir(), 64*1024*1024)

	// Arrival order deliberately scrambled; the combined file must follow
	// index order.
	parts := []struct {
		index int
		data  string
	}{
		{2, "cc"},
		{0, "aa"},
		{1, "bb"},
	}
	for _, p := range parts {
		if _, err := store.Append("session-1", p.index, 3, strings.NewReader(p.data)); err != nil {
			t.Fatalf("Append chunk %d failed: %v", p.index, err)
		}
	}

	dst := filepath.Join(t.TempDir(), "combined")
	if err := store.Finalize("session-1", dst, 6); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read combined file: %v", err)
	}
	if string(data) != "aabbcc" {
		t.Fatalf("combined bytes = %q, want aabbcc", data)
	}

	if store.lookup("session-1") != nil {
		t.Fatal("session should be evicted after finalize")
	}
}

func TestChunkFragmentNamePadding(t *testing.T) {
	cases := []struct {
		index, total int
		want         string
	}{
		{0, 2, "0"},
		{9, 10, "9"},
		{2, 11, "02"},
		{10, 11, "10"},
		{5, 100, "05"},
	}
	for _, tc := range cases {
		if got := fragmentName(tc.index, tc.total); got != tc.want {
			t.Fatalf("fragmentName(%d, %d) = %q, want %q", tc.index, tc.total, got, tc.want)
		}
	}
}

func TestChunkSizeMismatch(t *testing.T) {
	store := NewChunkSessionStore(t.TempDir(), 64*1024*1024)

	store.Append("session-2", 0, 2, strings.NewReader("aa"))
	store.Append("session-2", 1, 2, strings.NewReader("bb"))

	dst := filepath.Join(t.TempDir(), "combined")
	err := store.Finalize("session-2", dst, 999)

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Kind != KindIntegrityFailure {
		t.Fatalf("expected integrity failure, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatal("destination file should be removed after mismatch")
	}
	if store.lookup("session-2") != nil {
		t.Fatal("session should be evicted even after a failed finalize")
	}
}

func TestChunkMinimumFragments(t *testing.T) {
	store := NewChunkSessionStore(t.TempDir(), 64*1024*1024)

	store.Append("session-3", 0, 1, strings.NewReader("only"))

	err := store.Finalize("session-3", filepath.Join(t.TempDir(), "combined"), 4)
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Kind != KindPolicyViolation {
		t.Fatalf("expected policy violation for single-fragment session, got %v", err)
	}
}

func TestChunkFragmentReplacement(t *testing.T) {
	store := NewChunkSessionStore(t.TempDir(), 64*1024*1024)

	store.Append("session-4", 0, 2, strings.NewReader("xxxx"))
	store.Append("session-4", 0, 2, strings.NewReader("aa"))
	store.Append("session-4", 1, 2, strings.NewReader("bb"))

	dst := filepath.Join(t.TempDir(), "combined")
	if err := store.Finalize("session-4", dst, 4); err != nil {
		t.Fatalf("Finalize failed after replacement: %v", err)
	}

	data, _ := os.ReadFile(dst)
	if string(data) != "aabb" {
		t.Fatalf("combined bytes = %q, want aabb", data)
	}
}

func TestChunkSessionIDValidation(t *testing.T) {
	store := NewChunkSessionStore(t.TempDir(), 64*1024*1024)

	if _, err := store.Append("../escape", 0, 2, strings.NewReader("x")); err == nil {
		t.Fatal("expected invalid session id to be rejected")
	}
	if _, err := store.Append("ok-session", -1, 2, strings.NewReader("x")); err == nil {
		t.Fatal("expected negative index to be rejected")
	}
	if _, err := store.Append("ok-session", 2, 2, strings.NewReader("x")); err == nil {
		t.Fatal("expected out-of-range index to be rejected")
	}
}

func TestChunkTotalCountPinnedPerSession(t *testing.T) {
	store := NewChunkSessionStore(t.TempDir(), 64*1024*1024)

	if _, err := store.Append("session-5", 0, 11, strings.NewReader("aa")); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	// A different total would change the fragment-name padding width and
	// scramble combine order, so it must be rejected outright.
	_, err := store.Append("session-5", 1, 2, strings.NewReader("bb"))
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Kind != KindPolicyViolation {
		t.Fatalf("expected mismatched chunk count to be rejected, got %v", err)
	}

	if _, err := store.Append("session-5", 1, 11, strings.NewReader("bb")); err != nil {
		t.Fatalf("consistent append failed: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "combined")
	if err := store.Finalize("session-5", dst, 4); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "aabb" {
		t.Fatalf("combined bytes = %q, want aabb", data)
	}
}

func TestChunkEvictStale(t *testing.T) {
	root := t.TempDir()
	store := NewChunkSessionStore(root, 64*1024*1024)

	store.Append("stale", 0, 2, strings.NewReader("aa"))
	store.Append("fresh", 0, 2, strings.NewReader("bb"))

	store.mu.Lock()
	store.sessions["stale"].lastActive = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	if n := store.EvictStale(30 * time.Minute); n != 1 {
		t.Fatalf("EvictStale = %d, want 1", n)
	}
	if store.lookup("stale") != nil {
		t.Fatal("stale session should be gone")
	}
	if store.lookup("fresh") == nil {
		t.Fatal("fresh session should survive")
	}
	if _, err := os.Stat(filepath.Join(root, "stale")); !os.IsNotExist(err) {
		t.Fatal("stale session directory should be removed")
	}
}
