package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"github.com/Reutertu3/lolisafe/models"
	"github.com/Reutertu3/lolisafe/repositories"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// StoredFile is a fully prepared file sitting at its final path, ready for
// deduplication and persistence.
type StoredFile struct {
	Path      string
	Name      string
	Original  string
	MimeType  string
	Extension string
	Size      int64
	UserID    *uint
	AlbumID   *uint
	IP        *string
	AgeHours  int64
}

type StoreResult struct {
	Upload    models.Upload
	Duplicate bool
}

// dedupEngine persists prepared files, folding content duplicates into the
// owner's existing record. Identity is (hash, size, owner).
type dedupEngine struct {
	txm     repositories.TxManager
	uploads repositories.UploadRepository
	albums  repositories.AlbumRepository
	cache   repositories.CacheRepository
	thumbs  *ThumbnailService
}

func newDedupEngine(txm repositories.TxManager, uploads repositories.UploadRepository, albums repositories.AlbumRepository, cache repositories.CacheRepository, thumbs *ThumbnailService) *dedupEngine {
	return &dedupEngine{txm: txm, uploads: uploads, albums: albums, cache: cache, thumbs: thumbs}
}

// StoreFiles hashes every file concurrently, verifies album ownership, then
// persists each file in batch order. A duplicate unlinks the freshly written
// file and reuses the existing record; everything downstream of persistence
// (thumbnails, cache invalidation, album bumps) is best-effort.
func (e *dedupEngine) StoreFiles(ctx context.Context, files []StoredFile) ([]StoreResult, error) {
	hashes := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			h, err := hashFile(files[i].Path)
			if err != nil {
				return err
			}
			hashes[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, newStoreError("failed to hash uploaded file", err)
	}

	if err := e.verifyAlbumOwnership(ctx, files); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	results := make([]StoreResult, 0, len(files))
	albumsTouched := map[uint]struct{}{}
	usersTouched := map[uint]struct{}{}
	createdAny := false

	for i, f := range files {
		upload := models.Upload{
			Name:      f.Name,
			Original:  f.Original,
			MimeType:  f.MimeType,
			Size:      f.Size,
			Hash:      hashes[i],
			UserID:    f.UserID,
			AlbumID:   f.AlbumID,
			IP:        f.IP,
			Timestamp: now,
		}
		if f.AgeHours > 0 {
			expiresAt := now + f.AgeHours*3600
			upload.ExpiresAt = &expiresAt
		}

		// Find-or-create in one transaction; the unique index on
		// (hash, size, user) backstops the remaining race window.
		var duplicate *models.Upload
		err := e.txm.WithTransaction(ctx, func(tx *gorm.DB) error {
			existing, err := e.uploads.FindByHashSizeUser(ctx, tx, hashes[i], f.Size, f.UserID)
			if err == nil {
				duplicate = &existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return e.uploads.Create(ctx, tx, &upload)
		})
		if err == nil && duplicate != nil {
			removeFiles([]string{f.Path})
			results = append(results, StoreResult{Upload: *duplicate, Duplicate: true})
			continue
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race against a concurrent identical upload; the unique
			// index caught it, so fold into whichever row won.
			existing, err2 := e.uploads.FindByHashSizeUser(ctx, nil, hashes[i], f.Size, f.UserID)
			if err2 != nil {
				return nil, newStoreError("failed to resolve duplicate upload", err2)
			}
			removeFiles([]string{f.Path})
			results = append(results, StoreResult{Upload: existing, Duplicate: true})
			continue
		}
		if err != nil {
			return nil, newStoreError("failed to persist upload", err)
		}
		createdAny = true

		if e.thumbs != nil && isThumbnailEligible(f.Extension) {
			e.thumbs.Enqueue(f.Path, upload.Name)
		}
		if upload.AlbumID != nil {
			albumsTouched[*upload.AlbumID] = struct{}{}
		}
		if upload.UserID != nil {
			usersTouched[*upload.UserID] = struct{}{}
		}

		results = append(results, StoreResult{Upload: upload})
	}

	if createdAny {
		e.invalidateAfterStore(ctx, albumsTouched, usersTouched, now)
	}
	return results, nil
}

func (e *dedupEngine) verifyAlbumOwnership(ctx context.Context, files []StoredFile) error {
	// Batch the ownership check per owner; unowned album ids are cleared so
	// the upload still lands, just outside the album.
	byUser := map[uint][]uint{}
	for _, f := range files {
		if f.UserID != nil && f.AlbumID != nil {
			byUser[*f.UserID] = append(byUser[*f.UserID], *f.AlbumID)
		}
	}

	for userID, albumIDs := range byUser {
		owned, err := e.albums.OwnedIDs(ctx, nil, userID, albumIDs)
		if err != nil {
			return newStoreError("failed to verify album ownership", err)
		}
		for i := range files {
			f := &files[i]
			if f.UserID == nil || f.AlbumID == nil || *f.UserID != userID {
				continue
			}
			if _, ok := owned[*f.AlbumID]; !ok {
				f.AlbumID = nil
			}
		}
	}
	return nil
}

func (e *dedupEngine) invalidateAfterStore(ctx context.Context, albums map[uint]struct{}, users map[uint]struct{}, now int64) {
	if e.cache != nil {
		if err := e.cache.InvalidateUploadStats(ctx); err != nil {
			log.Printf("failed to invalidate upload stats cache: %v", err)
		}
		if len(users) > 0 {
			if err := e.cache.InvalidateAlbumListing(ctx, keysOf(users)); err != nil {
				log.Printf("failed to invalidate album listing cache: %v", err)
			}
		}
	}
	if len(albums) > 0 {
		if err := e.albums.BumpEditedAt(ctx, nil, keysOf(albums), now); err != nil {
			log.Printf("failed to bump album edit time: %v", err)
		}
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func keysOf(set map[uint]struct{}) []uint {
	keys := make([]uint, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

// removeFiles unlinks already-written files after an abort or a duplicate
// fold; missing files are fine, anything else is logged and skipped.
func removeFiles(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove file %s: %v", p, err)
		}
	}
}
