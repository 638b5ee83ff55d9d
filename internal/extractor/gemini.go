package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/charlesng35/recipekeeper/pkg/logger"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.0-flash"

	videoMIMEType       = "video/mp4"
	defaultPollInterval = time.Second
	deleteTimeout       = 10 * time.Second
)

// Model is the generative backend used by the Extractor.
type Model interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateFromVideo(ctx context.Context, path, prompt string) (string, error)
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey       string
	Model        string
	PollInterval time.Duration
}

// GeminiModel implements Model on top of the Gemini API.
type GeminiModel struct {
	client       *genai.Client
	model        string
	pollInterval time.Duration
	log          *zap.Logger
}

// NewGeminiModel creates a Gemini API client.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("extractor: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: create gemini client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &GeminiModel{
		client:       client,
		model:        model,
		pollInterval: poll,
		log:          logger.WithModule("extractor"),
	}, nil
}

// Name returns the configured model id.
func (g *GeminiModel) Name() string {
	return g.model
}

// GenerateText sends a text-only prompt.
func (g *GeminiModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// GenerateFromVideo uploads the file at path, waits for it to become active, asks the
// model about it and deletes the remote copy.
func (g *GeminiModel) GenerateFromVideo(ctx context.Context, path, prompt string) (string, error) {
	file, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: videoMIMEType})
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	name := file.Name
	defer g.deleteFile(name)

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.pollInterval):
		}
		file, err = g.client.Files.Get(ctx, name, nil)
		if err != nil {
			return "", fmt.Errorf("poll video: %w", err)
		}
	}
	if file.State == genai.FileStateFailed {
		return "", ErrVideoProcessingFailed
	}

	mimeType := file.MIMEType
	if mimeType == "" {
		mimeType = videoMIMEType
	}
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromURI(file.URI, mimeType),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (g *GeminiModel) deleteFile(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if _, err := g.client.Files.Delete(ctx, name, nil); err != nil {
		g.log.Debug("failed to delete uploaded video", zap.String("file", name), zap.Error(err))
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}
