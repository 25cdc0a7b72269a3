package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytaudio-server/internal/models"
)

const (
	// OutputTemplate is joined onto the workspace directory.
	OutputTemplate = "%(title)s.%(ext)s"

	// AudioFormat prefers an m4a audio-only stream, then any audio-only stream.
	AudioFormat = "bestaudio[acodec=m4a]/bestaudio"

	BackendYtDlp  = "ytdlp"
	BackendNative = "native"
)

// Extractor fetches the audio of url into the directory of outputTemplate.
type Extractor interface {
	Extract(ctx context.Context, url, outputTemplate string) (*models.ExtractionResult, error)
}

// New returns the extractor named by backend.
func New(backend string, socketTimeout time.Duration) (Extractor, error) {
	switch backend {
	case BackendYtDlp, "":
		return NewYtDlpExtractor(socketTimeout), nil
	case BackendNative:
		return NewNativeExtractor(socketTimeout), nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", backend)
	}
}

// skipped by findProducedFile: partial downloads and yt-dlp bookkeeping
var skippedExtensions = []string{".part", ".ytdl", ".json", ".tmp"}

// findProducedFile returns the media file the engine wrote into dir. The
// reported path wins when it exists; otherwise the largest remaining file is
// taken, since the workspace belongs to a single extraction.
func findProducedFile(dir, reported string) (string, error) {
	if reported != "" {
		if info, err := os.Stat(reported); err == nil && info.Mode().IsRegular() {
			return reported, nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read workspace %s: %w", dir, err)
	}

	var best string
	var bestSize int64 = -1
	for _, entry := range entries {
		if entry.IsDir() || hasSkippedExtension(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, entry.Name())
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no output file found in %s", dir)
	}
	return best, nil
}

func hasSkippedExtension(name string) bool {
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// extensionOf returns the extension of path without the dot.
func extensionOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
