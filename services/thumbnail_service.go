package services

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Reutertu3/lolisafe/config"

	"github.com/disintegration/imaging"
)

var thumbnailExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true,
	"gif": true, "bmp": true, "webp": true,
}

func isThumbnailEligible(ext string) bool {
	return thumbnailExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

type thumbnailJob struct {
	srcPath string
	name    string
}

// ThumbnailService generates thumbnails on background workers. Enqueue
// never blocks the upload response; when the queue is full the job is
// dropped and logged.
type ThumbnailService struct {
	jobs chan thumbnailJob
	dir  string
}

func NewThumbnailService(dir string) *ThumbnailService {
	return &ThumbnailService{
		jobs: make(chan thumbnailJob, config.AppConfig.Thumbnail.QueueSize),
		dir:  dir,
	}
}

func (s *ThumbnailService) Start() {
	for i := 0; i < config.AppConfig.Thumbnail.WorkerCount; i++ {
		go s.worker()
	}
}

func (s *ThumbnailService) worker() {
	for job := range s.jobs {
		if err := s.generate(job.srcPath, job.name); err != nil {
			log.Printf("thumbnail generation failed for %s: %v", job.name, err)
		}
	}
}

func (s *ThumbnailService) Enqueue(srcPath, name string) {
	select {
	case s.jobs <- thumbnailJob{srcPath: srcPath, name: name}:
	default:
		log.Printf("thumbnail queue full, dropping job for %s", name)
	}
}

func (s *ThumbnailService) generate(srcPath, name string) error {
	cfg := config.AppConfig.Thumbnail

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	img, err := imaging.Open(srcPath)
	if err != nil {
		return err
	}

	thumb := imaging.Fit(img, cfg.Width, cfg.Height, imaging.Lanczos)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return imaging.Save(thumb, filepath.Join(s.dir, base+".png"))
}
