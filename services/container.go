package services

import (
	"path/filepath"

	"github.com/Reutertu3/lolisafe/config"
	"github.com/Reutertu3/lolisafe/repositories"
)

// Container wires the service layer together over the repository container.
type Container struct {
	Upload     UploadService
	List       ListService
	Chunks     *ChunkSessionStore
	Thumbnails *ThumbnailService
}

func NewContainer(repos repositories.Container, fetcher RemoteFetcher, scanner Scanner, stripper TagStripper) *Container {
	cfg := config.AppConfig

	uploadsDir := filepath.Join(cfg.Storage.BasePath, "uploads")
	chunks := NewChunkSessionStore(filepath.Join(cfg.Storage.BasePath, "chunks"), cfg.Chunks.MaxTotalSize)

	var thumbs *ThumbnailService
	if cfg.Thumbnail.Enabled {
		thumbs = NewThumbnailService(filepath.Join(cfg.Storage.BasePath, "thumbs"))
		thumbs.Start()
	}

	allocator := NewNameAllocator(uploadsDir, cfg.Uploads.TrustNameCache)
	engine := newDedupEngine(repos.TxManager, repos.Uploads, repos.Albums, repos.Cache, thumbs)

	return &Container{
		Upload:     NewUploadService(allocator, chunks, engine, fetcher, scanner, stripper, uploadsDir),
		List:       NewListService(repos.Uploads, repos.Albums, repos.Users),
		Chunks:     chunks,
		Thumbnails: thumbs,
	}
}
