package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Reutertu3/lolisafe/config"
	"github.com/Reutertu3/lolisafe/database"
	"github.com/Reutertu3/lolisafe/handlers"
	"github.com/Reutertu3/lolisafe/logger"
	"github.com/Reutertu3/lolisafe/middleware"
	"github.com/Reutertu3/lolisafe/models"
	"github.com/Reutertu3/lolisafe/repositories"
	"github.com/Reutertu3/lolisafe/services"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("starting lolisafe service")

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	if err := database.InitMySQL(&cfg.Database); err != nil {
		log.Fatalf("init mysql failed: %v", err)
	}

	database.DB.AutoMigrate(
		&models.User{},
		&models.Album{},
		&models.Upload{},
	)
	log.Println("database migration completed")

	if err := database.InitRedis(&cfg.Redis); err != nil {
		log.Fatalf("init redis failed: %v", err)
	}

	for _, dir := range []string{"uploads", "chunks", "thumbs"} {
		if err := os.MkdirAll(filepath.Join(cfg.Storage.BasePath, dir), 0o755); err != nil {
			log.Fatalf("create %s dir failed: %v", dir, err)
		}
	}

	repoContainer := repositories.NewGormRepositories(database.DB, database.RedisClient).BuildContainer()
	serviceContainer := services.NewContainer(repoContainer, services.NewHTTPFetcher(), nil, nil)
	handlers.SetServices(serviceContainer, repoContainer)

	services.StartChunkSweeper(serviceContainer.Chunks)
	log.Println("chunk sweeper started")

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogger())
	setupRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("server listening on http://%s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}

func setupRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", handlers.Health)

	open := api.Group("")
	open.Use(middleware.AuthOptional())
	{
		open.POST("/upload", handlers.Upload)
		open.POST("/upload/finishchunks", handlers.FinishChunks)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	{
		protected.GET("/uploads", handlers.ListUploads)
	}
}
