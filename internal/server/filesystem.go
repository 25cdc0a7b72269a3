package server

import (
	"log"
	"os"

	"ytaudio-server/internal/config"
)

// PrepareFilesystem creates the workspace root and, when downloads are kept,
// the download directory.
func PrepareFilesystem(cfg *config.Config) error {
	dirs := []string{cfg.TempDir}
	if cfg.KeepDownloads {
		dirs = append(dirs, cfg.DownloadDir)
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Printf("📂 Notice: Creating missing directory: %s\n", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
