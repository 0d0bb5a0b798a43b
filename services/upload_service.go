package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Reutertu3/lolisafe/config"
	"github.com/Reutertu3/lolisafe/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// IngestRequest carries the per-request context shared by all ingestion
// branches: who is uploading, from where, and the requested options.
type IngestRequest struct {
	User                *models.User
	IP                  string
	AlbumID             *uint
	RequestedAge        string
	RequestedNameLength int
	StripTags           bool

	// Chunk fields; a non-empty ChunkID routes the batch into the chunk
	// session instead of direct ingestion.
	ChunkID     string
	ChunkIndex  int
	TotalChunks int
}

// ChunkFinalizeSpec describes one chunk session to combine.
type ChunkFinalizeSpec struct {
	SessionID  string `json:"uuid"`
	Original   string `json:"original"`
	MimeType   string `json:"type"`
	Size       int64  `json:"size"`
	AlbumID    *uint  `json:"albumid"`
	Age        string `json:"age"`
	NameLength int    `json:"filelength"`
}

type IngestedFile struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	ExpiresAt *int64 `json:"expirydate,omitempty"`
}

type IngestResponse struct {
	Files         []IngestedFile
	ChunkAccepted bool
}

type UploadService interface {
	IngestFiles(ctx context.Context, req *IngestRequest, files []*multipart.FileHeader) (*IngestResponse, error)
	IngestURLs(ctx context.Context, req *IngestRequest, urls []string) (*IngestResponse, error)
	FinishChunks(ctx context.Context, req *IngestRequest, specs []ChunkFinalizeSpec) (*IngestResponse, error)
}

type uploadService struct {
	allocator  *NameAllocator
	chunks     *ChunkSessionStore
	engine     *dedupEngine
	fetcher    RemoteFetcher
	scanner    Scanner
	stripper   TagStripper
	uploadsDir string
}

func NewUploadService(allocator *NameAllocator, chunks *ChunkSessionStore, engine *dedupEngine, fetcher RemoteFetcher, scanner Scanner, stripper TagStripper, uploadsDir string) UploadService {
	return &uploadService{
		allocator:  allocator,
		chunks:     chunks,
		engine:     engine,
		fetcher:    fetcher,
		scanner:    scanner,
		stripper:   stripper,
		uploadsDir: uploadsDir,
	}
}

// IngestFiles runs the direct-upload pipeline: authorization, retention
// resolution, per-file policy checks, disk writes, then the shared scan,
// strip and persistence tail. When chunk fields are present the fragment is
// appended to its session and an interim ack returned instead.
func (s *uploadService) IngestFiles(ctx context.Context, req *IngestRequest, files []*multipart.FileHeader) (*IngestResponse, error) {
	if err := checkAccount(req.User); err != nil {
		return nil, err
	}
	age, err := resolveAge(req.RequestedAge)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, newPolicyError("no files provided")
	}

	if req.ChunkID != "" {
		return s.appendChunk(req, files)
	}

	cfg := config.AppConfig.Uploads
	for _, fh := range files {
		original := sanitizeFilename(fh.Filename)
		if ext := fileExtension(original); isExtensionFiltered(ext) {
			return nil, newPolicyError(fmt.Sprintf("%s files are not permitted", displayExt(ext)))
		}
		if fh.Size > cfg.MaxFileSize {
			return nil, newPolicyError(fmt.Sprintf("%s exceeds the maximum file size of %d bytes", original, cfg.MaxFileSize))
		}
		if cfg.RejectEmptyFiles && fh.Size == 0 {
			return nil, newPolicyError("empty files are not allowed")
		}
	}

	prepared := make([]StoredFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, fh := range files {
		i, fh := i, fh
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			stored, err := s.writeMultipartFile(req, fh, age)
			if err != nil {
				return err
			}
			prepared[i] = stored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		removeFiles(pathsOf(prepared))
		return nil, err
	}

	return s.finishIngestion(ctx, req, prepared)
}

func (s *uploadService) appendChunk(req *IngestRequest, files []*multipart.FileHeader) (*IngestResponse, error) {
	if !config.AppConfig.Chunks.Enabled {
		return nil, newPolicyError("chunked uploads are disabled")
	}
	if len(files) != 1 {
		return nil, newPolicyError("chunk requests carry exactly one fragment")
	}

	src, err := files[0].Open()
	if err != nil {
		return nil, newStoreError("failed to open uploaded chunk", err)
	}
	defer src.Close()

	if _, err := s.chunks.Append(req.ChunkID, req.ChunkIndex, req.TotalChunks, src); err != nil {
		return nil, err
	}
	return &IngestResponse{ChunkAccepted: true}, nil
}

func (s *uploadService) writeMultipartFile(req *IngestRequest, fh *multipart.FileHeader, age int64) (StoredFile, error) {
	original := sanitizeFilename(fh.Filename)
	ext := fileExtension(original)

	name, err := s.allocator.Allocate(resolveNameLength(req.RequestedNameLength), ext)
	if err != nil {
		return StoredFile{}, err
	}
	dstPath := filepath.Join(s.uploadsDir, name)

	src, err := fh.Open()
	if err != nil {
		return StoredFile{}, newStoreError("failed to open uploaded file", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return StoredFile{}, newStoreError("failed to create file", err)
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		removeFiles([]string{dstPath})
		return StoredFile{}, newStoreError("failed to write file", err)
	}
	if config.AppConfig.Uploads.RejectEmptyFiles && written == 0 {
		removeFiles([]string{dstPath})
		return StoredFile{}, newPolicyError("empty files are not allowed")
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = getMimeType(ext)
	}

	return s.storedFile(req, dstPath, name, original, mimeType, ext, written, age), nil
}

// IngestURLs downloads every URL concurrently into temp files, renames each
// to its allocated name, then runs the shared tail. Any single failure
// aborts the whole batch and removes every file written so far.
func (s *uploadService) IngestURLs(ctx context.Context, req *IngestRequest, urls []string) (*IngestResponse, error) {
	cfg := config.AppConfig.URLUploads
	if !cfg.Enabled {
		return nil, newPolicyError("URL uploads are disabled")
	}
	if err := checkAccount(req.User); err != nil {
		return nil, err
	}
	age, err := resolveAge(req.RequestedAge)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, newPolicyError("no URLs provided")
	}
	if len(urls) > cfg.MaxURLs {
		return nil, newPolicyError(fmt.Sprintf("maximum %d URLs per request", cfg.MaxURLs))
	}

	prepared := make([]StoredFile, len(urls))
	var mu sync.Mutex
	var tempPaths []string

	g, gctx := errgroup.WithContext(ctx)
	for i, rawURL := range urls {
		i, rawURL := i, rawURL
		g.Go(func() error {
			stored, tempPath, err := s.downloadURL(gctx, req, rawURL, age)
			if tempPath != "" {
				mu.Lock()
				tempPaths = append(tempPaths, tempPath)
				mu.Unlock()
			}
			if err != nil {
				return err
			}
			prepared[i] = stored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		removeFiles(tempPaths)
		removeFiles(pathsOf(prepared))
		return nil, err
	}

	return s.finishIngestion(ctx, req, prepared)
}

// downloadURL fetches one URL through the optional proxy template into a
// temp file, then renames it to a freshly allocated name. The temp path is
// returned even on failure so the caller can sweep it.
func (s *uploadService) downloadURL(ctx context.Context, req *IngestRequest, rawURL string, age int64) (StoredFile, string, error) {
	cfg := config.AppConfig.URLUploads

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return StoredFile{}, "", newPolicyError("invalid URL: " + rawURL)
	}

	original := sanitizeFilename(path.Base(parsed.Path))
	if original == "" || original == "." || original == "/" {
		original = "index"
	}
	ext := fileExtension(original)
	if isURLExtensionFiltered(ext) {
		return StoredFile{}, "", newPolicyError(fmt.Sprintf("%s files are not permitted", displayExt(ext)))
	}

	fetchURL := rawURL
	if cfg.ProxyTemplate != "" {
		fetchURL = strings.ReplaceAll(cfg.ProxyTemplate, "%s", rawURL)
	}

	tempPath := filepath.Join(s.uploadsDir, uuid.New().String()+".tmp")
	dst, err := os.Create(tempPath)
	if err != nil {
		return StoredFile{}, "", newStoreError("failed to create temporary file", err)
	}
	written, contentType, err := s.fetcher.Fetch(ctx, fetchURL, cfg.MaxFileSize, dst)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = newStoreError("failed to flush downloaded file", cerr)
	}
	if err != nil {
		return StoredFile{}, tempPath, err
	}
	if config.AppConfig.Uploads.RejectEmptyFiles && written == 0 {
		return StoredFile{}, tempPath, newPolicyError(rawURL + " is an empty file")
	}

	name, err := s.allocator.Allocate(resolveNameLength(req.RequestedNameLength), ext)
	if err != nil {
		return StoredFile{}, tempPath, err
	}
	dstPath := filepath.Join(s.uploadsDir, name)
	if err := os.Rename(tempPath, dstPath); err != nil {
		return StoredFile{}, tempPath, newStoreError("failed to move downloaded file", err)
	}

	if contentType == "" {
		contentType = getMimeType(ext)
	}
	return s.storedFile(req, dstPath, name, original, contentType, ext, written, age), "", nil
}

// FinishChunks combines each requested chunk session into a final file and
// hands the batch to the shared tail. Sessions are evicted by the combine
// whether it succeeds or not.
func (s *uploadService) FinishChunks(ctx context.Context, req *IngestRequest, specs []ChunkFinalizeSpec) (*IngestResponse, error) {
	if !config.AppConfig.Chunks.Enabled {
		return nil, newPolicyError("chunked uploads are disabled")
	}
	if err := checkAccount(req.User); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, newPolicyError("no chunk sessions provided")
	}

	cfg := config.AppConfig.Chunks
	prepared := make([]StoredFile, 0, len(specs))
	for _, spec := range specs {
		original := sanitizeFilename(spec.Original)
		ext := fileExtension(original)
		if isExtensionFiltered(ext) {
			removeFiles(pathsOf(prepared))
			return nil, newPolicyError(fmt.Sprintf("%s files are not permitted", displayExt(ext)))
		}
		if spec.Size > cfg.MaxTotalSize {
			removeFiles(pathsOf(prepared))
			return nil, newPolicyError(fmt.Sprintf("%s exceeds the maximum chunked upload size of %d bytes", original, cfg.MaxTotalSize))
		}
		age, err := resolveAge(spec.Age)
		if err != nil {
			removeFiles(pathsOf(prepared))
			return nil, err
		}

		name, err := s.allocator.Allocate(resolveNameLength(spec.NameLength), ext)
		if err != nil {
			removeFiles(pathsOf(prepared))
			return nil, err
		}
		dstPath := filepath.Join(s.uploadsDir, name)

		if err := s.chunks.Finalize(spec.SessionID, dstPath, spec.Size); err != nil {
			removeFiles(pathsOf(prepared))
			return nil, err
		}

		mimeType := spec.MimeType
		if mimeType == "" {
			mimeType = getMimeType(ext)
		}
		stored := s.storedFile(req, dstPath, name, original, mimeType, ext, spec.Size, age)
		stored.AlbumID = spec.AlbumID
		prepared = append(prepared, stored)
	}

	return s.finishIngestion(ctx, req, prepared)
}

// finishIngestion is the tail shared by every branch: virus scan, optional
// tag strip, then dedup and persistence. Every prepared file is removed on
// abort.
func (s *uploadService) finishIngestion(ctx context.Context, req *IngestRequest, prepared []StoredFile) (*IngestResponse, error) {
	if err := s.scanFiles(ctx, req.User, prepared); err != nil {
		removeFiles(pathsOf(prepared))
		return nil, err
	}
	if err := s.stripTags(ctx, req, prepared); err != nil {
		removeFiles(pathsOf(prepared))
		return nil, err
	}

	results, err := s.engine.StoreFiles(ctx, prepared)
	if err != nil {
		removeFiles(pathsOf(prepared))
		return nil, err
	}

	resp := &IngestResponse{Files: make([]IngestedFile, 0, len(results))}
	for _, r := range results {
		resp.Files = append(resp.Files, IngestedFile{
			Name:      r.Upload.Name,
			URL:       buildFileURL(r.Upload.Name),
			ExpiresAt: r.Upload.ExpiresAt,
		})
	}
	return resp, nil
}

func (s *uploadService) scanFiles(ctx context.Context, user *models.User, prepared []StoredFile) error {
	if !config.AppConfig.Scan.Enabled || s.scanner == nil || scanBypassAllowed(user) {
		return nil
	}
	for _, f := range prepared {
		result, err := s.scanner.Scan(ctx, f.Path)
		if err != nil {
			return newUpstreamError("virus scan failed", err)
		}
		if result.Infected {
			return newSecurityError(fmt.Sprintf("threat detected in %s: %s", f.Original, result.Threat))
		}
	}
	return nil
}

func (s *uploadService) stripTags(ctx context.Context, req *IngestRequest, prepared []StoredFile) error {
	if !req.StripTags || !config.AppConfig.Uploads.StripTagsEnabled || s.stripper == nil {
		return nil
	}
	for _, f := range prepared {
		if !isThumbnailEligible(f.Extension) {
			continue
		}
		if err := s.stripper.Strip(ctx, f.Path); err != nil {
			return newUpstreamError("failed to strip tags from "+f.Original, err)
		}
	}
	return nil
}

func (s *uploadService) storedFile(req *IngestRequest, path, name, original, mimeType, ext string, size, age int64) StoredFile {
	stored := StoredFile{
		Path:      path,
		Name:      name,
		Original:  original,
		MimeType:  mimeType,
		Extension: ext,
		Size:      size,
		AlbumID:   req.AlbumID,
		AgeHours:  age,
	}
	if req.User != nil {
		userID := req.User.ID
		stored.UserID = &userID
	}
	if req.IP != "" {
		ip := req.IP
		stored.IP = &ip
	}
	return stored
}

// checkAccount rejects uploads from disabled accounts and, in private mode,
// from anonymous clients.
func checkAccount(user *models.User) error {
	if user != nil && !user.Enabled {
		return newAppError(KindPolicyViolation, http.StatusForbidden, "this account has been disabled", nil)
	}
	if user == nil && config.AppConfig.Uploads.Private {
		return newAppError(KindPolicyViolation, http.StatusForbidden, "anonymous uploads are not allowed", nil)
	}
	return nil
}

// resolveAge picks the retention age in hours for this upload. An age
// outside the configured allow-set falls back to permanent when permanent
// is allowed, and is rejected otherwise.
func resolveAge(requested string) (int64, error) {
	cfg := config.AppConfig.Uploads
	if !cfg.TemporaryUploads {
		return 0, nil
	}

	zeroAllowed := false
	for _, age := range cfg.TemporaryAges {
		if age == 0 {
			zeroAllowed = true
			break
		}
	}

	requested = strings.TrimSpace(requested)
	if requested != "" {
		if parsed, err := strconv.ParseInt(requested, 10, 64); err == nil {
			for _, age := range cfg.TemporaryAges {
				if age == parsed {
					return parsed, nil
				}
			}
		}
	}

	if zeroAllowed {
		return 0, nil
	}
	return 0, newPolicyError("permanent uploads are not permitted")
}

func buildFileURL(name string) string {
	return strings.TrimSuffix(config.AppConfig.Uploads.BaseDomain, "/") + "/" + name
}

func displayExt(ext string) string {
	if ext == "" {
		return "extensionless"
	}
	return "." + ext
}

func pathsOf(prepared []StoredFile) []string {
	paths := make([]string, 0, len(prepared))
	for _, f := range prepared {
		if f.Path != "" {
			paths = append(paths, f.Path)
		}
	}
	return paths
}
