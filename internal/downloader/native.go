package downloader

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"ytaudio-server/internal/models"
)

// workspaceName names the file on disk. Titles can exceed the filesystem's
// name limit, so the title only reaches the client as the display name.
const workspaceName = "audio"

// NativeExtractor fetches audio with the pure Go YouTube client, no yt-dlp needed.
type NativeExtractor struct {
	client youtube.Client
}

// NewNativeExtractor builds a client that skips certificate verification and
// bounds dialing and response headers by socketTimeout. The body copy itself
// is bounded only by the caller's context.
func NewNativeExtractor(socketTimeout time.Duration) *NativeExtractor {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	transport.DialContext = (&net.Dialer{Timeout: socketTimeout}).DialContext
	transport.TLSHandshakeTimeout = socketTimeout
	transport.ResponseHeaderTimeout = socketTimeout

	return &NativeExtractor{
		client: youtube.Client{HTTPClient: &http.Client{Transport: transport}},
	}
}

// Extract resolves the video behind url (never its playlist) and saves its
// best audio stream.
func (n *NativeExtractor) Extract(ctx context.Context, url, outputTemplate string) (*models.ExtractionResult, error) {
	video, err := n.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, classifyNative(ctx, fmt.Errorf("video info error: %w", err))
	}

	format := findBestAudioFormat(video.Formats)
	if format == nil {
		return nil, &ExtractionError{Kind: KindUnsupported, Message: "no audio format available"}
	}

	ext := formatExtension(format)
	path := workspaceFile(outputTemplate, ext)

	if err := n.downloadStream(ctx, video, format, path); err != nil {
		return nil, classifyNative(ctx, err)
	}

	// 0 byte check
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		return nil, &ExtractionError{Kind: KindUnknown, Message: "generated file is empty", Err: err}
	}

	return &models.ExtractionResult{
		Title:      video.Title,
		Extension:  ext,
		SourcePath: path,
	}, nil
}

func (n *NativeExtractor) downloadStream(ctx context.Context, v *youtube.Video, f *youtube.Format, path string) error {
	stream, _, err := n.client.GetStreamContext(ctx, v, f)
	if err != nil {
		return err
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		return err
	}
	return file.Close()
}

// findBestAudioFormat prefers the highest-bitrate audio/mp4 stream and falls
// back to the highest-bitrate audio stream of any container.
func findBestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var bestMP4, bestAny *youtube.Format
	for _, f := range formats {
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if bestAny == nil || f.Bitrate > bestAny.Bitrate {
			temp := f
			bestAny = &temp
		}
		if strings.HasPrefix(f.MimeType, "audio/mp4") && (bestMP4 == nil || f.Bitrate > bestMP4.Bitrate) {
			temp := f
			bestMP4 = &temp
		}
	}
	if bestMP4 != nil {
		return bestMP4
	}
	return bestAny
}

func formatExtension(f *youtube.Format) string {
	if strings.HasPrefix(f.MimeType, "audio/mp4") {
		return "m4a"
	}
	return "webm"
}

func workspaceFile(tmpl, ext string) string {
	return expandTemplate(tmpl, workspaceName, ext)
}

func expandTemplate(tmpl, title, ext string) string {
	return strings.NewReplacer("%(title)s", title, "%(ext)s", ext).Replace(tmpl)
}

func classifyNative(ctx context.Context, err error) *ExtractionError {
	var (
		dnsErr   *net.DNSError
		netErr   net.Error
		pathErr  *fs.PathError
		playable youtube.ErrPlayabiltyStatus
	)

	kind := KindUnknown
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &ExtractionError{Kind: KindNetwork, Message: "download timed out", Err: err}
	case errors.As(err, &dnsErr):
		kind = KindNetwork
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindNetwork
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.As(err, &playable):
		kind = KindUnavailable
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		kind = KindUnsupported
	case errors.As(err, &pathErr):
		// local disk failure: the text names server paths
		return &ExtractionError{Kind: KindUnknown, Err: err}
	}

	return &ExtractionError{Kind: kind, Message: err.Error(), Err: err}
}
