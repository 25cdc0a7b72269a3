package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ytaudio-server/internal/archive"
	"ytaudio-server/internal/config"
	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/models"

	"github.com/google/uuid"
)

// ErrServerBusy means no extraction slot freed up within the queue wait.
var ErrServerBusy = errors.New("server busy")

const (
	defaultTitle     = "audio"
	defaultExtension = "m4a"
)

// Deliverer hands a ready file to the client. The workspace holding the file
// is removed as soon as it returns.
type Deliverer func(file models.SanitizedFile) error

type Manager struct {
	active    sync.Map // job id -> *models.Job, while its workspace exists
	queue     chan struct{}
	cfg       *config.Config
	extractor downloader.Extractor
	archive   *archive.Store
}

// NewManager wires the pipeline. store may be nil when downloads are not kept.
func NewManager(cfg *config.Config, extractor downloader.Extractor, store *archive.Store) *Manager {
	return &Manager{
		queue:     make(chan struct{}, cfg.MaxConcurrentJobs),
		cfg:       cfg,
		extractor: extractor,
		archive:   store,
	}
}

// Process runs one download end to end: slot, workspace, extraction,
// sanitizing, optional archive copy, delivery. The workspace is released on
// every return path.
func (m *Manager) Process(ctx context.Context, req models.DownloadRequest, deliver Deliverer) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.New().String(),
		URL:       req.URL,
		Status:    models.StatusIdle,
		CreatedAt: time.Now(),
	}

	// Bounded concurrency
	release, err := m.acquireSlot(ctx)
	if err != nil {
		return m.fail(job, err)
	}
	defer release()

	m.active.Store(job.ID, job)
	defer m.active.Delete(job.ID)

	workspace, cleanup, err := m.acquireWorkspace(job.ID)
	if err != nil {
		return m.fail(job, err)
	}
	defer cleanup()

	m.updateStatus(job, models.StatusExtracting)

	extractCtx, cancel := context.WithTimeout(ctx, m.cfg.ExtractTimeout)
	defer cancel()

	result, err := m.extractor.Extract(extractCtx, req.URL, filepath.Join(workspace, downloader.OutputTemplate))
	if err != nil {
		return m.fail(job, err)
	}

	file, err := buildFile(result)
	if err != nil {
		return m.fail(job, err)
	}
	job.Filename = file.DisplayName
	m.updateStatus(job, models.StatusReady)

	if m.archive != nil {
		stored, err := m.archive.Save(file.DisplayName, file.ContentPath)
		if err != nil {
			return m.fail(job, err)
		}
		log.Printf("[job %s] 📦 Archived to %s", job.ID, stored)
	}

	if err := deliver(file); err != nil {
		return m.fail(job, fmt.Errorf("streaming %s: %w", file.DisplayName, err))
	}

	m.updateStatus(job, models.StatusStreamed)
	log.Printf("[job %s] ✅ Sent %s", job.ID, file.DisplayName)
	return job, nil
}

// InFlight reports whether id belongs to a job still holding its workspace.
func (m *Manager) InFlight(id string) bool {
	_, ok := m.active.Load(id)
	return ok
}

func (m *Manager) acquireSlot(ctx context.Context) (func(), error) {
	release := func() { <-m.queue }

	select {
	case m.queue <- struct{}{}:
		return release, nil
	default:
	}

	timer := time.NewTimer(m.cfg.QueueWait)
	defer timer.Stop()

	select {
	case m.queue <- struct{}{}:
		return release, nil
	case <-timer.C:
		return nil, ErrServerBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// acquireWorkspace creates the job's private directory and returns its
// release func.
func (m *Manager) acquireWorkspace(id string) (string, func(), error) {
	dir := filepath.Join(m.cfg.TempDir, id)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[job %s] ❌ Could not remove workspace %s: %v", id, dir, err)
		}
	}, nil
}

// buildFile derives the client-facing file from what the extractor reported.
func buildFile(result *models.ExtractionResult) (models.SanitizedFile, error) {
	title := result.Title
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}
	ext := strings.TrimPrefix(result.Extension, ".")
	if ext == "" {
		ext = defaultExtension
	}

	info, err := os.Stat(result.SourcePath)
	if err != nil {
		return models.SanitizedFile{}, fmt.Errorf("extracted file missing: %w", err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return models.SanitizedFile{}, fmt.Errorf("extracted file %s is empty", filepath.Base(result.SourcePath))
	}

	return models.SanitizedFile{
		DisplayName: downloader.Sanitize(title) + "." + ext,
		MimeType:    mimeType(ext),
		ContentPath: result.SourcePath,
	}, nil
}

func mimeType(ext string) string {
	if ext == "m4a" {
		return "audio/mp4"
	}
	return "audio/webm"
}

func (m *Manager) fail(job *models.Job, err error) (*models.Job, error) {
	job.Error = err.Error()
	m.updateStatus(job, models.StatusFailed)
	log.Printf("[job %s] ❌ %s failed: %v", job.ID, job.URL, err)
	return job, err
}

func (m *Manager) updateStatus(job *models.Job, status models.JobStatus) {
	job.Status = status
}
