package services

import (
	"crypto/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/Reutertu3/lolisafe/config"
)

const allocationAttempts = 100

const nameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NameAllocator hands out random storage names that are unique for the
// process lifetime. In trust-cache mode the in-memory set alone is
// authoritative; otherwise every candidate is also checked against the
// uploads directory on disk. Names are reserved in the set before being
// returned, so two concurrent callers can never receive the same name.
type NameAllocator struct {
	mu         sync.Mutex
	issued     map[string]struct{}
	dir        string
	trustCache bool
}

func NewNameAllocator(dir string, trustCache bool) *NameAllocator {
	return &NameAllocator{
		issued:     make(map[string]struct{}),
		dir:        dir,
		trustCache: trustCache,
	}
}

// resolveNameLength clamps a caller-supplied identifier length to the
// configured range, falling back to the default when the value is out of
// range or the deployment forces a fixed length.
func resolveNameLength(requested int) int {
	cfg := config.AppConfig.Uploads
	if cfg.ForceNameLength {
		return cfg.NameLength
	}
	if requested < cfg.NameLengthMin || requested > cfg.NameLengthMax {
		return cfg.NameLength
	}
	return requested
}

// Allocate returns a fresh "<random>.<ext>" name, or an AppError of kind
// TransientAllocation once the retry budget is exhausted.
func (a *NameAllocator) Allocate(length int, ext string) (string, error) {
	for i := 0; i < allocationAttempts; i++ {
		name := randomName(length)
		if ext != "" {
			name += "." + ext
		}

		a.mu.Lock()
		if _, taken := a.issued[name]; taken {
			a.mu.Unlock()
			continue
		}
		if !a.trustCache {
			if _, err := os.Stat(filepath.Join(a.dir, name)); err == nil {
				a.mu.Unlock()
				continue
			}
		}
		a.issued[name] = struct{}{}
		a.mu.Unlock()
		return name, nil
	}

	return "", newAppError(KindTransientAllocation, http.StatusInternalServerError,
		"failed to allocate a unique file identifier", nil)
}

func randomName(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = nameAlphabet[int(b)%len(nameAlphabet)]
	}
	return string(buf)
}
