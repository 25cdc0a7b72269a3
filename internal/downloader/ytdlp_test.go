package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorLine(t *testing.T) {
	stderr := "[youtube] Extracting URL: https://youtu.be/x\n" +
		"\x1b[0;31mERROR:\x1b[0m [youtube] x: Video unavailable\n" +
		"some trailing note\n\n"
	assert.Equal(t, "\x1b[0;31mERROR:\x1b[0m [youtube] x: Video unavailable", errorLine(stderr))

	assert.Equal(t, "last words", errorLine("first\nlast words\n"))
	assert.Equal(t, "", errorLine(""))
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorKind
	}{
		{"ERROR: [Errno 11001] getaddrinfo failed", KindNetwork},
		{"ERROR: Failed to resolve 'youtube.com'", KindNetwork},
		{"ERROR: Read timed out.", KindNetwork},
		{"ERROR: [youtube] abc: Video unavailable", KindUnavailable},
		{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access", KindUnavailable},
		{"ERROR: [youtube] abc: Sign in to confirm your age", KindUnavailable},
		{"ERROR: Unsupported URL: https://example.com", KindUnsupported},
		{"ERROR: 'nope' is not a valid URL.", KindUnsupported},
		{"ERROR: something else entirely", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyMessage(tt.msg), tt.msg)
	}
}

func TestClassifyYtDlp(t *testing.T) {
	runErr := errors.New("exit status 1")

	err := classifyYtDlp(context.Background(), "ERROR: Video unavailable\n", runErr)
	assert.Equal(t, KindUnavailable, err.Kind)
	assert.Equal(t, "ERROR: Video unavailable", err.Message)
	assert.ErrorIs(t, err, runErr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	err = classifyYtDlp(ctx, "", runErr)
	assert.Equal(t, KindNetwork, err.Kind)

	err = classifyYtDlp(context.Background(), "", errors.New(`exec: "yt-dlp": executable file not found in $PATH`))
	assert.Equal(t, KindUnknown, err.Kind)
	assert.Equal(t, GenericFailureMessage, err.UserMessage())
}

func TestFindProducedFile(t *testing.T) {
	t.Run("reported path exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "Song.m4a")
		require.NoError(t, os.WriteFile(path, []byte("audio"), 0644))

		got, err := findProducedFile(dir, path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("falls back to the media file in the workspace", func(t *testing.T) {
		dir := t.TempDir()
		actual := filepath.Join(dir, "Song ｜ Live.webm")
		require.NoError(t, os.WriteFile(actual, []byte("audio data"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Song.webm.part"), []byte("partial partial"), 0644))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

		got, err := findProducedFile(dir, filepath.Join(dir, "Song | Live.webm"))
		require.NoError(t, err)
		assert.Equal(t, actual, got)
	})

	t.Run("empty workspace", func(t *testing.T) {
		_, err := findProducedFile(t.TempDir(), "")
		assert.Error(t, err)
	})
}

func TestNewExtractor(t *testing.T) {
	e, err := New(BackendYtDlp, 10*time.Second)
	require.NoError(t, err)
	assert.IsType(t, &YtDlpExtractor{}, e)

	e, err = New("", 10*time.Second)
	require.NoError(t, err)
	assert.IsType(t, &YtDlpExtractor{}, e)

	e, err = New(BackendNative, 10*time.Second)
	require.NoError(t, err)
	assert.IsType(t, &NativeExtractor{}, e)

	_, err = New("ffmpeg", 10*time.Second)
	assert.Error(t, err)
}
