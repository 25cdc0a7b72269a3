package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ytaudio-server/internal/api"
	"ytaudio-server/internal/archive"
	"ytaudio-server/internal/config"
	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/jobs"
	"ytaudio-server/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf(">>> ❌ Error loading config: %v", err)
	}

	// 1. Filesystem
	if err := server.PrepareFilesystem(cfg); err != nil {
		log.Fatalf(">>> ❌ Error preparing filesystem: %v", err)
	}

	var store *archive.Store
	if cfg.KeepDownloads {
		store, err = archive.NewStore(cfg.DownloadDir)
		if err != nil {
			log.Fatalf(">>> ❌ Error opening download directory: %v", err)
		}
	}

	// 2. Services: extractor, pipeline, handler
	extractor, err := downloader.New(cfg.Extractor, cfg.SocketTimeout)
	if err != nil {
		log.Fatalf(">>> ❌ Error creating extractor: %v", err)
	}
	jobManager := jobs.NewManager(cfg, extractor, store)
	handler := api.NewHandler(jobManager)

	// 3. Router with middleware
	router := api.NewRouter(handler, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobManager.StartJanitor(ctx)

	fmt.Println(">>> 🎵 YouTube to Audio Server Started")
	fmt.Printf(">>> ⚡ Listening on http://%s (extractor: %s)\n", cfg.Addr(), cfg.Extractor)
	if store != nil {
		fmt.Printf(">>> 📦 Keeping downloads in %s\n", store.BaseDir)
	}

	// 4. Start
	if err := server.Run(ctx, router, cfg); err != nil {
		log.Fatal(err)
	}
}
