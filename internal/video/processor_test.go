package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/recipekeeper/internal/platform"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	stdout []byte
	stderr []byte
	err    error
	// onRun runs before the result is returned, e.g. to write the output file.
	onRun func(args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(args)
	}
	return f.stdout, f.stderr, f.err
}

func (f *fakeRunner) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestProcessor(t *testing.T, runner Runner, fs afero.Fs, cfg Config) *Processor {
	t.Helper()
	if cfg.TempDir == "" {
		cfg.TempDir = "/scratch"
	}
	p, err := NewProcessor(cfg, WithRunner(runner), WithFS(fs))
	require.NoError(t, err)
	return p
}

func TestMetadataParsesOutputAndLimitsComments(t *testing.T) {
	var comments []string
	for i := 0; i < 7; i++ {
		comments = append(comments, fmt.Sprintf(`{"author":"user%d","text":"comment %d","author_is_uploader":%t}`, i, i, i == 0))
	}
	runner := &fakeRunner{stdout: []byte(`{
		"title": "Best Pasta",
		"description": "Ingredients: pasta, salt",
		"duration": 61.5,
		"uploader": "Chef",
		"thumbnail": "https://img.example.com/t.jpg",
		"comments": [` + strings.Join(comments, ",") + `]
	}`)}

	p := newTestProcessor(t, runner, afero.NewMemMapFs(), Config{})
	meta, err := p.Metadata(context.Background(), "https://youtu.be/abcdefghijk")
	require.NoError(t, err)

	require.Equal(t, "Best Pasta", meta.Title)
	require.Equal(t, "Chef", meta.Uploader)
	require.Equal(t, 61.5, meta.Duration)
	require.Len(t, meta.Comments, MaxComments)
	require.True(t, meta.Comments[0].AuthorIsUploader)
	require.Equal(t, "comment 4", meta.Comments[4].Text)

	call := runner.lastCall()
	require.Equal(t, "yt-dlp", call[0])
	require.Contains(t, call, "-J")
	require.Contains(t, call, "--skip-download")
	require.Contains(t, call, "--write-comments")
	require.Equal(t, metadataArgs, argValue(call, "--extractor-args"))
	require.Contains(t, argValue(call, "--extractor-args"), "max_comments=5,all,0,0")
	require.Equal(t, BrowserUserAgent, argValue(call, "--user-agent"))
	require.NotContains(t, call, "--cookies")
	require.Equal(t, "https://youtu.be/abcdefghijk", call[len(call)-1])
}

func TestMetadataRejectsInvalidJSON(t *testing.T) {
	p := newTestProcessor(t, &fakeRunner{stdout: []byte("not json")}, afero.NewMemMapFs(), Config{})
	_, err := p.Metadata(context.Background(), "https://youtu.be/abcdefghijk")
	require.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestCookiesOnlyPassedWhenFileExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{stdout: []byte(`{}`)}

	p := newTestProcessor(t, runner, fs, Config{CookiesPath: "/secrets/cookies.txt"})
	_, err := p.Metadata(context.Background(), "https://youtu.be/abcdefghijk")
	require.NoError(t, err)
	require.NotContains(t, runner.lastCall(), "--cookies")

	require.NoError(t, afero.WriteFile(fs, "/secrets/cookies.txt", []byte("# Netscape"), 0o600))
	_, err = p.Metadata(context.Background(), "https://youtu.be/abcdefghijk")
	require.NoError(t, err)
	require.Equal(t, "/secrets/cookies.txt", argValue(runner.lastCall(), "--cookies"))
}

func TestDownloadWritesUniqueFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{}
	runner.onRun = func(args []string) {
		require.NoError(t, afero.WriteFile(fs, argValue(args, "-o"), []byte("mp4 data"), 0o644))
	}

	fixed := time.UnixMilli(1700000000000)
	p, err := NewProcessor(Config{TempDir: "/scratch", MaxSizeMB: 100},
		WithRunner(runner), WithFS(fs), WithNow(func() time.Time { return fixed }))
	require.NoError(t, err)

	first, err := p.Download(context.Background(), "https://www.tiktok.com/@chef/video/123", platform.TikTok)
	require.NoError(t, err)
	require.Equal(t, "/scratch/video_1700000000000.mp4", first)

	call := runner.lastCall()
	require.Equal(t, downloadFormat, argValue(call, "-f"))
	require.Equal(t, "100M", argValue(call, "--max-filesize"))

	second, err := p.Download(context.Background(), "https://www.tiktok.com/@chef/video/123", platform.TikTok)
	require.NoError(t, err)
	require.Equal(t, "/scratch/video_1700000000001.mp4", second)

	p.Cleanup(first)
	exists, err := afero.Exists(fs, first)
	require.NoError(t, err)
	require.False(t, exists)

	// Removing a missing file is silent.
	p.Cleanup(first)
	p.Cleanup("")
}

func TestDownloadFailsOnEmptyOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{}
	runner.onRun = func(args []string) {
		require.NoError(t, afero.WriteFile(fs, argValue(args, "-o"), nil, 0o644))
	}

	p := newTestProcessor(t, runner, fs, Config{})
	_, err := p.Download(context.Background(), "https://youtu.be/abcdefghijk", platform.YouTube)
	require.ErrorIs(t, err, ErrEmptyDownload)

	entries, err := afero.ReadDir(fs, "/scratch")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDownloadFailureLogsBotDetection(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	runner := &fakeRunner{
		stderr: []byte("ERROR: [youtube] abc: Sign in to confirm you're not a bot"),
		err:    errors.New("exit status 1"),
	}
	p := newTestProcessor(t, runner, afero.NewMemMapFs(), Config{})

	_, err := p.Download(context.Background(), "https://youtu.be/abcdefghijk", platform.YouTube)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Sign in to confirm")

	entries := recorded.FilterMessageSnippet("bot detection").All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestNewProcessorRequiresTempDir(t *testing.T) {
	_, err := NewProcessor(Config{})
	require.Error(t, err)
}

func TestIsBotCheck(t *testing.T) {
	require.True(t, IsBotCheck("Sign in to confirm your age"))
	require.True(t, IsBotCheck("please confirm you are not a bot"))
	require.False(t, IsBotCheck("HTTP Error 404"))
}
