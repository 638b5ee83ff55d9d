package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
)

// DefaultTitle is used when the model omits a title.
const DefaultTitle = "Untitled Recipe"

type modelRecipe struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Language    string   `json:"language"`
}

// ParseResponse decodes a model answer into a Recipe. Code fences are tolerated.
// Answers carrying an "error" key or invalid JSON yield ErrNoRecipe.
func ParseResponse(raw, sourceURL string, source platform.Platform, thumbnail string) (*models.Recipe, error) {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrNoRecipe)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrNoRecipe, err)
	}
	if reason, ok := fields["error"]; ok {
		return nil, fmt.Errorf("%w: model reported %s", ErrNoRecipe, strings.TrimSpace(string(reason)))
	}

	var decoded modelRecipe
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("%w: unexpected shape: %v", ErrNoRecipe, err)
	}

	recipe := &models.Recipe{
		Title:        strings.TrimSpace(decoded.Title),
		Ingredients:  decoded.Ingredients,
		Steps:        decoded.Steps,
		SourceURL:    sourceURL,
		Platform:     source.String(),
		Language:     strings.TrimSpace(decoded.Language),
		ThumbnailURL: thumbnail,
	}
	if recipe.Title == "" {
		recipe.Title = DefaultTitle
	}
	recipe.Normalize()
	return recipe, nil
}

// StripCodeFence trims whitespace and removes a surrounding ```json or ``` fence.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
