// Package video wraps yt-dlp to fetch video metadata and low-quality downloads.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/internal/platform"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

const (
	// BrowserUserAgent is sent to video platforms to look like a desktop browser.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MaxComments is the number of top comments kept from metadata.
	MaxComments = 5

	downloadFormat  = "worst[ext=mp4]/worst"
	downloadArgs    = "youtube:player_client=android,web;skip=dash,hls"
	defaultBinary   = "yt-dlp"
	defaultTimeout  = 60 * time.Second
	defaultMetaTime = 30 * time.Second
	stderrExcerpt   = 500
)

// metadataArgs caps comment retrieval at MaxComments top-level threads with no
// replies, so a popular video cannot push the metadata call past its timeout.
var metadataArgs = fmt.Sprintf("youtube:player_client=android,web;comment_sort=top;max_comments=%d,all,0,0;skip=dash,hls", MaxComments)

var (
	// ErrEmptyDownload is returned when yt-dlp exits cleanly without producing a file.
	ErrEmptyDownload = errors.New("video: download produced no data")
	// ErrInvalidMetadata is returned when yt-dlp output cannot be decoded.
	ErrInvalidMetadata = errors.New("video: invalid metadata output")
)

// Comment is a top-level comment on a video.
type Comment struct {
	Author           string `json:"author"`
	Text             string `json:"text"`
	AuthorIsUploader bool   `json:"author_is_uploader"`
}

// Metadata is the subset of yt-dlp info the extraction pipeline uses.
type Metadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Uploader    string    `json:"uploader"`
	Thumbnail   string    `json:"thumbnail"`
	Comments    []Comment `json:"comments"`
}

// Config controls yt-dlp invocation.
type Config struct {
	Binary          string
	TempDir         string
	MaxSizeMB       int
	DownloadTimeout time.Duration
	MetadataTimeout time.Duration
	CookiesPath     string
}

// Option customises a Processor.
type Option func(*Processor)

// WithRunner replaces the command runner, primarily for testing.
func WithRunner(r Runner) Option {
	return func(p *Processor) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithFS swaps the filesystem holding downloads.
func WithFS(fs afero.Fs) Option {
	return func(p *Processor) {
		if fs != nil {
			p.fs = fs
		}
	}
}

// WithNow overrides the clock used to name downloads.
func WithNow(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// Processor downloads videos and reads their metadata through yt-dlp.
type Processor struct {
	cfg    Config
	runner Runner
	fs     afero.Fs
	now    func() time.Time
	log    *zap.Logger

	mu        sync.Mutex
	lastStamp int64
}

// NewProcessor validates cfg and ensures the scratch directory exists.
func NewProcessor(cfg Config, opts ...Option) (*Processor, error) {
	cfg.Binary = strings.TrimSpace(cfg.Binary)
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	cfg.TempDir = strings.TrimSpace(cfg.TempDir)
	if cfg.TempDir == "" {
		return nil, errors.New("video: temp dir is required")
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultTimeout
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = defaultMetaTime
	}

	p := &Processor{
		cfg:    cfg,
		runner: ExecRunner{},
		fs:     afero.NewOsFs(),
		now:    time.Now,
		log:    logger.WithModule("video"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.fs.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("video: create temp dir: %w", err)
	}
	return p, nil
}

// Binary returns the yt-dlp executable in use.
func (p *Processor) Binary() string {
	return p.cfg.Binary
}

// TempDir returns the scratch directory for downloads.
func (p *Processor) TempDir() string {
	return p.cfg.TempDir
}

// Metadata returns the title, description, uploader, thumbnail and top comments of url.
func (p *Processor) Metadata(ctx context.Context, url string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.MetadataTimeout)
	defer cancel()

	args := []string{
		"-J",
		"--no-warnings",
		"--skip-download",
		"--write-comments",
		"--no-playlist",
		"--user-agent", BrowserUserAgent,
		"--extractor-args", metadataArgs,
	}
	args = append(args, p.cookieArgs()...)
	args = append(args, url)

	stdout, stderr, err := p.runner.Run(ctx, p.cfg.Binary, args...)
	if err != nil {
		p.logFailure("metadata", url, stderr, err)
		return nil, fmt.Errorf("video: metadata: %w%s", err, stderrSuffix(stderr))
	}

	var meta Metadata
	if err := json.Unmarshal(stdout, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if len(meta.Comments) > MaxComments {
		meta.Comments = meta.Comments[:MaxComments]
	}
	return &meta, nil
}

// Download fetches the smallest mp4 rendition of url into the scratch directory and
// returns its path. Callers must pass the path to Cleanup when done.
func (p *Processor) Download(ctx context.Context, url string, source platform.Platform) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()

	output := filepath.Join(p.cfg.TempDir, fmt.Sprintf("video_%d.mp4", p.nextStamp()))

	args := []string{
		"-f", downloadFormat,
		"-o", output,
		"--no-warnings",
		"--no-playlist",
		"--no-part",
		"--user-agent", BrowserUserAgent,
		"--extractor-args", downloadArgs,
	}
	if p.cfg.MaxSizeMB > 0 {
		args = append(args, "--max-filesize", fmt.Sprintf("%dM", p.cfg.MaxSizeMB))
	}
	args = append(args, p.cookieArgs()...)
	args = append(args, url)

	_, stderr, err := p.runner.Run(ctx, p.cfg.Binary, args...)
	if err != nil {
		p.Cleanup(output)
		p.logFailure("download", url, stderr, err)
		monitoring.RecordVideoDownload(source.String(), "failure")
		return "", fmt.Errorf("video: download: %w%s", err, stderrSuffix(stderr))
	}

	info, err := p.fs.Stat(output)
	if err != nil || info.Size() == 0 {
		p.Cleanup(output)
		monitoring.RecordVideoDownload(source.String(), "failure")
		return "", ErrEmptyDownload
	}

	monitoring.RecordVideoDownload(source.String(), "success")
	p.log.Debug("video downloaded",
		zap.String("platform", source.String()),
		zap.String("path", output),
		zap.Int64("bytes", info.Size()),
	)
	return output, nil
}

// Cleanup removes a downloaded file. Failures are logged and otherwise ignored.
func (p *Processor) Cleanup(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := p.fs.Remove(path); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		p.log.Warn("failed to remove downloaded video", zap.String("path", path), zap.Error(err))
	}
}

func (p *Processor) cookieArgs() []string {
	path := strings.TrimSpace(p.cfg.CookiesPath)
	if path == "" {
		return nil
	}
	if _, err := p.fs.Stat(path); err != nil {
		return nil
	}
	return []string{"--cookies", path}
}

// nextStamp returns a millisecond timestamp that is unique within the process.
func (p *Processor) nextStamp() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	stamp := p.now().UnixMilli()
	if stamp <= p.lastStamp {
		stamp = p.lastStamp + 1
	}
	p.lastStamp = stamp
	return stamp
}

func (p *Processor) logFailure(operation, url string, stderr []byte, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("url", url),
		zap.Error(err),
	}
	if IsBotCheck(string(stderr)) || IsBotCheck(err.Error()) {
		p.log.Warn("video platform bot detection triggered; recipe may still come from description or comments",
			append(fields, zap.String("hint", "set video.cookies_path to an exported cookies.txt"))...)
		return
	}
	p.log.Warn("yt-dlp failed", append(fields, zap.String("stderr", excerpt(stderr)))...)
}

// IsBotCheck reports whether message is a platform bot-detection challenge.
func IsBotCheck(message string) bool {
	return strings.Contains(message, "Sign in to confirm") || strings.Contains(message, "not a bot")
}

func stderrSuffix(stderr []byte) string {
	if msg := excerpt(stderr); msg != "" {
		return ": " + msg
	}
	return ""
}

func excerpt(b []byte) string {
	msg := strings.TrimSpace(string(b))
	if len(msg) > stderrExcerpt {
		msg = msg[:stderrExcerpt]
	}
	return msg
}
