package api

import (
	"context"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ytaudio-server/internal/config"
	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/jobs"
	"ytaudio-server/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	title string
	err   error
	calls atomic.Int32
}

func (s *stubExtractor) Extract(ctx context.Context, rawURL, outputTemplate string) (*models.ExtractionResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	path := filepath.Join(filepath.Dir(outputTemplate), s.title+".m4a")
	if err := os.WriteFile(path, []byte("fake audio"), 0644); err != nil {
		return nil, err
	}
	return &models.ExtractionResult{Title: s.title, Extension: "m4a", SourcePath: path}, nil
}

type busyPipeline struct{}

func (busyPipeline) Process(context.Context, models.DownloadRequest, jobs.Deliverer) (*models.Job, error) {
	return nil, jobs.ErrServerBusy
}

func newTestRouter(t *testing.T, ext downloader.Extractor) (*echo.Echo, *config.Config) {
	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	cfg.QueueWait = 50 * time.Millisecond
	cfg.RequestLogging = false
	cfg.RatePerMinute = 6000
	cfg.RateBurst = 100

	h := NewHandler(jobs.NewManager(cfg, ext, nil))
	return NewRouter(h, cfg), cfg
}

func postForm(e *echo.Echo, value string) *httptest.ResponseRecorder {
	return postFormFrom(e, value, "")
}

func postFormFrom(e *echo.Echo, value, clientIP string) *httptest.ResponseRecorder {
	form := url.Values{"url": {value}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if clientIP != "" {
		req.RemoteAddr = clientIP + ":40000"
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

var errorParagraph = regexp.MustCompile(`<p class="error"[^>]*>❌ (.*?)</p>`)

// errorText returns the message rendered in the form's error paragraph.
func errorText(t *testing.T, body string) string {
	t.Helper()
	m := errorParagraph.FindStringSubmatch(body)
	require.Len(t, m, 2, "no error paragraph in %q", body)
	return m[1]
}

func attachmentName(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	disposition, params, err := mime.ParseMediaType(rec.Header().Get(echo.HeaderContentDisposition))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	return params["filename"]
}

func TestIndexShowsForm(t *testing.T) {
	e, _ := newTestRouter(t, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="url"`)
	assert.NotContains(t, rec.Body.String(), `class="error"`)
}

func TestDownloadRequiresURL(t *testing.T) {
	ext := &stubExtractor{}
	e, _ := newTestRouter(t, ext)

	for _, value := range []string{"", "   "} {
		rec := postForm(e, value)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, urlRequiredMessage, errorText(t, rec.Body.String()))
	}
	assert.Zero(t, ext.calls.Load())
}

func TestDownloadStreamsFile(t *testing.T) {
	ext := &stubExtractor{title: "My:Video"}
	e, cfg := newTestRouter(t, ext)

	rec := postForm(e, "https://www.youtube.com/watch?v=abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "My_Video.m4a", attachmentName(t, rec))
	assert.Equal(t, "audio/mp4", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "fake audio", rec.Body.String())
	assert.Equal(t, int32(1), ext.calls.Load())

	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace must be removed after streaming")
}

func TestDownloadShowsNormalizedError(t *testing.T) {
	ext := &stubExtractor{err: &downloader.ExtractionError{
		Kind:    downloader.KindUnavailable,
		Message: "\x1b[0;31mERROR:\x1b[0m Video unavailable",
	}}
	e, cfg := newTestRouter(t, ext)

	rec := postForm(e, "https://www.youtube.com/watch?v=gone")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "Video unavailable", errorText(t, body))
	assert.NotContains(t, body, "ERROR:")
	assert.NotContains(t, body, "\x1b")
	assert.Empty(t, rec.Header().Get(echo.HeaderContentDisposition))

	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadNetworkError(t *testing.T) {
	ext := &stubExtractor{err: &downloader.ExtractionError{
		Kind:    downloader.KindNetwork,
		Message: "ERROR: [Errno 11001] getaddrinfo failed",
	}}
	e, _ := newTestRouter(t, ext)

	rec := postForm(e, "https://www.youtube.com/watch?v=abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, downloader.NetworkIssueMessage, errorText(t, rec.Body.String()))
}

func TestDownloadServerBusy(t *testing.T) {
	cfg := config.Default()
	cfg.RequestLogging = false
	e := NewRouter(NewHandler(busyPipeline{}), cfg)

	rec := postForm(e, "https://www.youtube.com/watch?v=abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, busyMessage, errorText(t, rec.Body.String()))
}

func TestDownloadRateLimited(t *testing.T) {
	ext := &stubExtractor{title: "Song"}
	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	cfg.RequestLogging = false
	cfg.RatePerMinute = 1
	cfg.RateBurst = 1
	e := NewRouter(NewHandler(jobs.NewManager(cfg, ext, nil)), cfg)

	first := postForm(e, "https://www.youtube.com/watch?v=abc")
	assert.Equal(t, http.StatusOK, first.Code)

	second := postForm(e, "https://www.youtube.com/watch?v=abc")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, tooManyRequestsMessage, errorText(t, second.Body.String()))
	assert.Equal(t, int32(1), ext.calls.Load())
}

func TestDownloadNonASCIIFilename(t *testing.T) {
	ext := &stubExtractor{title: "東京: ライブ"}
	e, _ := newTestRouter(t, ext)

	rec := postForm(e, "https://www.youtube.com/watch?v=abc")

	assert.Equal(t, http.StatusOK, rec.Code)
	header := rec.Header().Get(echo.HeaderContentDisposition)
	assert.Contains(t, header, "filename*=utf-8''")
	assert.Equal(t, "東京_ ライブ.m4a", attachmentName(t, rec))
}

func TestRateLimitIsPerClient(t *testing.T) {
	ext := &stubExtractor{title: "Song"}
	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	cfg.RequestLogging = false
	cfg.RatePerMinute = 1
	cfg.RateBurst = 1
	e := NewRouter(NewHandler(jobs.NewManager(cfg, ext, nil)), cfg)

	assert.Equal(t, http.StatusOK, postFormFrom(e, "https://youtu.be/a", "192.0.2.10").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFormFrom(e, "https://youtu.be/a", "192.0.2.10").Code)

	other := postFormFrom(e, "https://youtu.be/a", "198.51.100.7")
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, "Song.m4a", attachmentName(t, other))
	assert.Equal(t, int32(2), ext.calls.Load())
}

func TestHealth(t *testing.T) {
	e, _ := newTestRouter(t, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUserMessageHidesInternals(t *testing.T) {
	assert.Equal(t, downloader.GenericFailureMessage, userMessage(os.ErrNotExist))
	assert.Equal(t, busyMessage, userMessage(jobs.ErrServerBusy))
}

func TestCORSMiddleware(t *testing.T) {
	assert.Nil(t, CORSMiddleware(""))
	assert.Nil(t, CORSMiddleware(" , "))
	assert.NotNil(t, CORSMiddleware("https://a.example"))
	assert.NotNil(t, CORSMiddleware("*"))
}
