package models

import "strings"

// DefaultLanguage is assumed when a source does not declare one.
const DefaultLanguage = "en"

// Recipe is the structured result of an extraction.
type Recipe struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Steps        []string `json:"steps"`
	SourceURL    string   `json:"source_url"`
	Platform     string   `json:"platform"`
	Language     string   `json:"language"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Author       string   `json:"author,omitempty"`
}

// Normalize fills defaults and guarantees non-nil slices so the JSON shape is stable.
func (r *Recipe) Normalize() {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	if strings.TrimSpace(r.Language) == "" {
		r.Language = DefaultLanguage
	}
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Steps == nil {
		r.Steps = []string{}
	}
}

// Extraction layers, reported as the source of a recipe.
const (
	SourceDescription   = "description"
	SourceComment       = "comment"
	SourceLinkedWebsite = "linked_website"
	SourceVideo         = "video"
	SourceSchemaOrg     = "schema_org"
	SourceWordPress     = "wordpress"
	SourceMicrodata     = "microdata"
	SourceHeuristic     = "heuristic"
	SourceAI            = "ai"

	// SourceCache marks results served from the recipe cache.
	SourceCache = "cache"
)
