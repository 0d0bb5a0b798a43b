package services

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"
)

var chunkSessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// chunkSession is the ephemeral state of one chunked upload. Fragments are
// recorded in arrival order; combine order comes from the zero-padded index
// encoded in the fragment name, never from arrival order.
type chunkSession struct {
	mu          sync.Mutex
	root        string
	totalChunks int
	fragments   []string
	accumulated int64
	lastActive  time.Time
}

// ChunkSessionStore tracks in-progress chunked uploads keyed by the
// client-supplied session id. The store map has its own lock; fragment
// writes and finalize for one session serialize on the session lock so
// independent sessions proceed concurrently.
type ChunkSessionStore struct {
	mu       sync.Mutex
	root     string
	maxCount int
	sessions map[string]*chunkSession
}

// NewChunkSessionStore derives the fragment-count cap from the maximum
// total size at the minimum 1 MiB chunk size.
func NewChunkSessionStore(root string, maxTotalSize int64) *ChunkSessionStore {
	maxCount := int(maxTotalSize / (1 << 20))
	if maxCount < 1 {
		maxCount = 1
	}
	return &ChunkSessionStore{
		root:     root,
		maxCount: maxCount,
		sessions: make(map[string]*chunkSession),
	}
}

// fragmentName zero-pads the chunk index so lexicographic order equals
// numeric order. Padding width is the digit count of totalChunks-1.
func fragmentName(index, totalChunks int) string {
	width := len(strconv.Itoa(totalChunks - 1))
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%0*d", width, index)
}

// getOrCreate is the insert-if-absent entry point for a session. The first
// append pins the session's chunk count; fragment names derive from it, so
// it must not drift between fragments.
func (s *ChunkSessionStore) getOrCreate(sessionID string, totalChunks int) *chunkSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &chunkSession{
			root:        filepath.Join(s.root, sessionID),
			totalChunks: totalChunks,
			lastActive:  time.Now(),
		}
		s.sessions[sessionID] = sess
	}
	return sess
}

func (s *ChunkSessionStore) lookup(sessionID string) *chunkSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

// Append writes one fragment. Re-sending an index replaces the previous
// fragment; directory creation is idempotent.
func (s *ChunkSessionStore) Append(sessionID string, index, totalChunks int, src io.Reader) (int64, error) {
	if !chunkSessionIDPattern.MatchString(sessionID) {
		return 0, newPolicyError("invalid chunk session id")
	}
	if index < 0 || totalChunks < 1 || index >= totalChunks {
		return 0, newPolicyError("invalid chunk index")
	}

	sess := s.getOrCreate(sessionID, totalChunks)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if totalChunks != sess.totalChunks {
		return 0, newPolicyError(fmt.Sprintf("chunk count %d does not match the session's %d", totalChunks, sess.totalChunks))
	}

	if err := os.MkdirAll(sess.root, 0o755); err != nil {
		return 0, newStoreError("failed to create chunk directory", err)
	}

	name := fragmentName(index, sess.totalChunks)
	path := filepath.Join(sess.root, name)

	var previous int64
	if fi, err := os.Stat(path); err == nil {
		previous = fi.Size()
	}

	dst, err := os.Create(path)
	if err != nil {
		return 0, newStoreError("failed to create chunk file", err)
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, newStoreError("failed to write chunk", err)
	}

	if !containsFragment(sess.fragments, name) {
		sess.fragments = append(sess.fragments, name)
	}
	sess.accumulated += written - previous
	sess.lastActive = time.Now()
	return written, nil
}

// Finalize combines the session's fragments into dstPath in strict index
// order and verifies the combined size against both the tracked total and
// the size claimed by the finalize request. The session is evicted and its
// directory removed whether or not the combine succeeds; cleanup failures
// are logged, the triggering error is returned.
func (s *ChunkSessionStore) Finalize(sessionID, dstPath string, claimedSize int64) error {
	sess := s.lookup(sessionID)
	if sess == nil {
		return newPolicyError("unknown chunk session")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer s.evictLocked(sessionID, sess)

	if len(sess.fragments) < 2 {
		return newPolicyError("chunked upload requires at least 2 chunks")
	}
	if len(sess.fragments) > s.maxCount {
		return newPolicyError(fmt.Sprintf("too many chunks, maximum is %d", s.maxCount))
	}

	names := append([]string(nil), sess.fragments...)
	sort.Strings(names)

	dst, err := os.Create(dstPath)
	if err != nil {
		return newStoreError("failed to create destination file", err)
	}

	var written int64
	for _, name := range names {
		src, err := os.Open(filepath.Join(sess.root, name))
		if err != nil {
			dst.Close()
			_ = os.Remove(dstPath)
			return newIntegrityError("failed to read chunk "+name, err)
		}
		n, err := io.Copy(dst, src)
		src.Close()
		if err != nil {
			dst.Close()
			_ = os.Remove(dstPath)
			return newIntegrityError("failed to combine chunk "+name, err)
		}
		written += n
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return newIntegrityError("failed to flush combined file", err)
	}

	if written != sess.accumulated || written != claimedSize {
		_ = os.Remove(dstPath)
		return newIntegrityError(
			fmt.Sprintf("combined size mismatch: wrote %d, tracked %d, claimed %d", written, sess.accumulated, claimedSize), nil)
	}

	return nil
}

// Evict aborts a session: fragments are unlinked (continue-on-error), the
// directory removed, state dropped.
func (s *ChunkSessionStore) Evict(sessionID string) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.evictLocked(sessionID, sess)
}

// evictLocked requires the session lock to be held.
func (s *ChunkSessionStore) evictLocked(sessionID string, sess *chunkSession) {
	for _, name := range sess.fragments {
		if err := os.Remove(filepath.Join(sess.root, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("chunk cleanup: remove fragment %s/%s: %v", sessionID, name, err)
		}
	}
	if err := os.Remove(sess.root); err != nil && !os.IsNotExist(err) {
		log.Printf("chunk cleanup: remove dir %s: %v", sessionID, err)
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// EvictStale drops sessions idle longer than maxAge and reports how many
// were removed.
func (s *ChunkSessionStore) EvictStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	stale := make([]string, 0)
	for id, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		s.Evict(id)
	}
	return len(stale)
}

func containsFragment(fragments []string, name string) bool {
	for _, f := range fragments {
		if f == name {
			return true
		}
	}
	return false
}
