package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"ytaudio-server/internal/models"
)

// yt-dlp reports failures only as text, so kinds are matched on its wording.
var (
	networkSignatures = []string{
		"getaddrinfo failed",
		"failed to resolve",
		"name or service not known",
		"temporary failure in name resolution",
		"timed out",
		"connection reset",
		"connection refused",
		"network is unreachable",
	}
	unavailableSignatures = []string{
		"video unavailable",
		"private video",
		"has been removed",
		"is not available",
		"not available in your country",
		"sign in to confirm",
		"members-only",
		"http error 403",
		"http error 404",
	}
	unsupportedSignatures = []string{
		"unsupported url",
		"is not a valid url",
		"no video formats found",
		"requested format is not available",
	}
)

// YtDlpExtractor drives the yt-dlp binary through go-ytdlp.
type YtDlpExtractor struct {
	socketTimeout time.Duration
}

// NewYtDlpExtractor creates an extractor bounding each network operation of
// yt-dlp by socketTimeout.
func NewYtDlpExtractor(socketTimeout time.Duration) *YtDlpExtractor {
	return &YtDlpExtractor{socketTimeout: socketTimeout}
}

func (y *YtDlpExtractor) command(outputTemplate string) *ytdlp.Command {
	return ytdlp.New().
		Format(AudioFormat).
		NoPlaylist().
		NoCheckCertificates().
		Quiet().
		NoWarnings().
		NoProgress().
		SocketTimeout(y.socketTimeout.Seconds()).
		PrintJSON().
		Output(outputTemplate)
}

// Extract downloads the audio of url and resolves the file yt-dlp actually wrote.
func (y *YtDlpExtractor) Extract(ctx context.Context, url, outputTemplate string) (*models.ExtractionResult, error) {
	res, err := y.command(outputTemplate).Run(ctx, url)
	if err != nil {
		var stderr string
		if res != nil {
			stderr = res.Stderr
		}
		return nil, classifyYtDlp(ctx, stderr, err)
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, &ExtractionError{Kind: KindUnknown, Err: err}
	}
	if len(infos) == 0 {
		return nil, &ExtractionError{Kind: KindUnknown, Message: "yt-dlp reported no downloaded media"}
	}

	info := infos[0]
	var title, reported string
	if info.Title != nil {
		title = *info.Title
	}
	if info.Filename != nil {
		reported = *info.Filename
	}

	path, err := findProducedFile(filepath.Dir(outputTemplate), reported)
	if err != nil {
		return nil, &ExtractionError{Kind: KindUnknown, Err: err}
	}

	return &models.ExtractionResult{
		Title:      title,
		Extension:  extensionOf(path),
		SourcePath: path,
	}, nil
}

func classifyYtDlp(ctx context.Context, stderr string, err error) *ExtractionError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ExtractionError{Kind: KindNetwork, Message: "download timed out", Err: err}
	}

	message := errorLine(stderr)
	return &ExtractionError{
		Kind:    classifyMessage(message),
		Message: message,
		Err:     err,
	}
}

// errorLine picks the last "ERROR:" line of stderr, or its last non-empty line.
func errorLine(stderr string) string {
	var last string
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if last == "" {
			last = line
		}
		if strings.HasPrefix(ansiEscape.ReplaceAllString(line, ""), "ERROR:") {
			return line
		}
	}
	return last
}

func classifyMessage(message string) ErrorKind {
	lower := strings.ToLower(ansiEscape.ReplaceAllString(message, ""))
	switch {
	case lower == "":
		return KindUnknown
	case containsAny(lower, networkSignatures):
		return KindNetwork
	case containsAny(lower, unavailableSignatures):
		return KindUnavailable
	case containsAny(lower, unsupportedSignatures):
		return KindUnsupported
	default:
		return KindUnknown
	}
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
