package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Reutertu3/lolisafe/config"
	"github.com/Reutertu3/lolisafe/models"
	"github.com/Reutertu3/lolisafe/repositories"

	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Uploads: config.UploadsConfig{
			BaseDomain:       "https://safe.test",
			MaxFileSize:      64 * 1024 * 1024,
			RejectEmptyFiles: true,
			FilterMode:       "blacklist",
			ExtensionFilter:  []string{"exe", "bat"},
			NameLength:       32,
			NameLengthMin:    4,
			NameLengthMax:    64,
			TrustNameCache:   true,
			TemporaryUploads: true,
			TemporaryAges:    []int64{0, 1, 24},
		},
		Chunks: config.ChunksConfig{
			Enabled:      true,
			MaxTotalSize: 64 * 1024 * 1024,
		},
		URLUploads: config.URLUploadsConfig{
			Enabled:     true,
			MaxURLs:     20,
			MaxFileSize: 64 * 1024 * 1024,
			FilterMode:  "blacklist",
		},
		Pagination: config.PaginationConfig{PageSize: 25},
	}
}

type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeUploadRepo struct {
	mu      sync.Mutex
	nextID  uint
	records []models.Upload

	createErr error
	findErr   error
	listErr   error
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{nextID: 1}
}

func dedupKey(hash string, size int64, userID *uint) string {
	owner := "anon"
	if userID != nil {
		owner = fmt.Sprintf("%d", *userID)
	}
	return fmt.Sprintf("%s/%d/%s", hash, size, owner)
}

func (r *fakeUploadRepo) Create(_ context.Context, _ *gorm.DB, upload *models.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}

	key := dedupKey(upload.Hash, upload.Size, upload.UserID)
	for _, existing := range r.records {
		if upload.UserID != nil && dedupKey(existing.Hash, existing.Size, existing.UserID) == key {
			return gorm.ErrDuplicatedKey
		}
	}

	upload.ID = r.nextID
	r.nextID++
	r.records = append(r.records, *upload)
	return nil
}

func (r *fakeUploadRepo) FindByHashSizeUser(_ context.Context, _ *gorm.DB, hash string, size int64, userID *uint) (models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return models.Upload{}, r.findErr
	}

	key := dedupKey(hash, size, userID)
	for _, existing := range r.records {
		if dedupKey(existing.Hash, existing.Size, existing.UserID) == key {
			return existing, nil
		}
	}
	return models.Upload{}, gorm.ErrRecordNotFound
}

func (r *fakeUploadRepo) List(_ context.Context, _ *gorm.DB, in repositories.ListUploadsInput) ([]models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	var out []models.Upload
	for _, rec := range r.records {
		if in.ScopeUserID != nil {
			if rec.UserID == nil || *rec.UserID != *in.ScopeUserID {
				continue
			}
		}
		out = append(out, rec)
	}
	if in.Offset >= len(out) {
		return nil, nil
	}
	out = out[in.Offset:]
	if in.Limit > 0 && len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}

func (r *fakeUploadRepo) Count(_ context.Context, _ *gorm.DB, in repositories.ListUploadsInput) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return 0, r.listErr
	}

	var count int64
	for _, rec := range r.records {
		if in.ScopeUserID != nil {
			if rec.UserID == nil || *rec.UserID != *in.ScopeUserID {
				continue
			}
		}
		count++
	}
	return count, nil
}

type fakeAlbumRepo struct {
	owned       map[uint]map[uint]struct{} // userID -> owned album ids
	names       map[uint]string
	bumpedIDs   []uint
	bumpedAt    int64
	ownedErr    error
	namesErr    error
	bumpCount   int
	ownedCalled int
}

func newFakeAlbumRepo() *fakeAlbumRepo {
	return &fakeAlbumRepo{owned: map[uint]map[uint]struct{}{}, names: map[uint]string{}}
}

func (r *fakeAlbumRepo) OwnedIDs(_ context.Context, _ *gorm.DB, userID uint, albumIDs []uint) (map[uint]struct{}, error) {
	r.ownedCalled++
	if r.ownedErr != nil {
		return nil, r.ownedErr
	}
	result := map[uint]struct{}{}
	for _, id := range albumIDs {
		if _, ok := r.owned[userID][id]; ok {
			result[id] = struct{}{}
		}
	}
	return result, nil
}

func (r *fakeAlbumRepo) BumpEditedAt(_ context.Context, _ *gorm.DB, albumIDs []uint, editedAt int64) error {
	r.bumpCount++
	r.bumpedIDs = append(r.bumpedIDs, albumIDs...)
	r.bumpedAt = editedAt
	return nil
}

func (r *fakeAlbumRepo) NamesByIDs(_ context.Context, _ *gorm.DB, albumIDs []uint) (map[uint]string, error) {
	if r.namesErr != nil {
		return nil, r.namesErr
	}
	result := map[uint]string{}
	for _, id := range albumIDs {
		if name, ok := r.names[id]; ok {
			result[id] = name
		}
	}
	return result, nil
}

type fakeUserRepo struct {
	usersByID   map[uint]models.User
	usersByName map[string]models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	r := &fakeUserRepo{usersByID: map[uint]models.User{}, usersByName: map[string]models.User{}}
	for _, u := range users {
		r.usersByID[u.ID] = u
		r.usersByName[u.Username] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ *gorm.DB, userID uint) (models.User, error) {
	user, ok := r.usersByID[userID]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) IDsByUsernames(_ context.Context, _ *gorm.DB, usernames []string) (map[string]uint, error) {
	result := map[string]uint{}
	for _, name := range usernames {
		if user, ok := r.usersByName[name]; ok {
			result[name] = user.ID
		}
	}
	return result, nil
}

func (r *fakeUserRepo) NamesByIDs(_ context.Context, _ *gorm.DB, userIDs []uint) (map[uint]string, error) {
	result := map[uint]string{}
	for _, id := range userIDs {
		if user, ok := r.usersByID[id]; ok {
			result[id] = user.Username
		}
	}
	return result, nil
}

type fakeCacheRepo struct {
	statsInvalidated int
	albumUserIDs     []uint
}

func (r *fakeCacheRepo) InvalidateUploadStats(context.Context) error {
	r.statsInvalidated++
	return nil
}

func (r *fakeCacheRepo) InvalidateAlbumListing(_ context.Context, userIDs []uint) error {
	r.albumUserIDs = append(r.albumUserIDs, userIDs...)
	return nil
}

type fakeScanner struct {
	threat  string // non-empty flags every scanned file as infected
	scanErr error
	scanned []string
}

func (s *fakeScanner) Scan(_ context.Context, path string) (ScanResult, error) {
	s.scanned = append(s.scanned, path)
	if s.scanErr != nil {
		return ScanResult{}, s.scanErr
	}
	if s.threat != "" {
		return ScanResult{Infected: true, Threat: s.threat}, nil
	}
	return ScanResult{}, nil
}

type fakeFetcher struct {
	bodies map[string]string // URL -> body
	types  map[string]string
	errs   map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, maxBytes int64, dst io.Writer) (int64, string, error) {
	if err, ok := f.errs[url]; ok {
		return 0, "", err
	}
	body, ok := f.bodies[url]
	if !ok {
		return 0, "", newUpstreamError("fetching "+url+" returned status 404", nil)
	}
	if int64(len(body)) > maxBytes {
		return 0, "", newPolicyError(url + " exceeds the maximum download size")
	}
	n, err := io.WriteString(dst, body)
	return int64(n), f.types[url], err
}

type fakeStripper struct {
	stripped []string
	stripErr error
}

func (s *fakeStripper) Strip(_ context.Context, path string) error {
	if s.stripErr != nil {
		return s.stripErr
	}
	s.stripped = append(s.stripped, path)
	return nil
}

var errBoom = errors.New("boom")
