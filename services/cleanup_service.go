package services

import (
	"log"
	"time"

	"github.com/Reutertu3/lolisafe/config"
)

// StartChunkSweeper periodically evicts chunk sessions that have been idle
// past the configured age, reclaiming their fragment directories.
func StartChunkSweeper(chunks *ChunkSessionStore) {
	cfg := config.AppConfig.Chunks
	if !cfg.Enabled {
		return
	}

	interval := time.Duration(cfg.SweepIntervalSc) * time.Second
	maxAge := time.Duration(cfg.MaxAgeSeconds) * time.Second

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if n := chunks.EvictStale(maxAge); n > 0 {
				log.Printf("chunk sweeper: evicted %d stale sessions", n)
			}
		}
	}()
}
