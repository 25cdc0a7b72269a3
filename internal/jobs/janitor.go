package jobs

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// StartJanitor periodically removes workspaces orphaned by a crash and, when
// a retention is configured, expired archive entries. It stops with ctx.
func (m *Manager) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CleanupAfter)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runJanitor()
			}
		}
	}()
}

func (m *Manager) runJanitor() {
	log.Println("🧹 Janitor: Starting scheduled cleanup...")

	removed, err := sweepWorkspaces(m.cfg.TempDir, m.cfg.CleanupAfter, m.InFlight)
	if err != nil {
		log.Printf("❌ Janitor Error: Could not sweep temp: %v", err)
	}

	pruned := 0
	if m.archive != nil && m.cfg.DownloadRetention > 0 {
		pruned, err = m.archive.Prune(m.cfg.DownloadRetention)
		if err != nil {
			log.Printf("❌ Janitor Error: Could not prune downloads: %v", err)
		}
	}

	log.Printf("✅ Janitor: Cleanup finished (%d workspaces, %d downloads removed).", removed, pruned)
}

// sweepWorkspaces removes entries of root not modified within maxAge.
// A directory's mtime does not move while a file inside it grows, so entries
// named after an in-flight job are always kept.
func sweepWorkspaces(root string, maxAge time.Duration, inFlight func(id string) bool) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if inFlight != nil && inFlight(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			log.Printf("❌ Janitor Error: Could not remove %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}
