package scraper

import (
	"encoding/json"
	"html"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
)

const minStructuredItems = 2

// ExtractSchemaOrg reads the first valid schema.org Recipe from the JSON-LD blocks in doc.
func ExtractSchemaOrg(doc *goquery.Document, sourceURL string) *models.Recipe {
	var found *models.Recipe
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(script.Text())), &data); err != nil {
			return true
		}
		node := findRecipeNode(data)
		if node == nil {
			return true
		}
		if recipe := parseSchemaRecipe(node, sourceURL); recipe != nil {
			found = recipe
			return false
		}
		return true
	})
	return found
}

// findRecipeNode walks JSON-LD looking for an object typed Recipe. @graph wins over
// sibling keys; other nested values are visited in key order.
func findRecipeNode(data any) map[string]any {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if node := findRecipeNode(item); node != nil {
				return node
			}
		}
	case map[string]any:
		if hasType(v, "Recipe") {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findRecipeNode(graph)
		}
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			switch v[key].(type) {
			case map[string]any, []any:
				if node := findRecipeNode(v[key]); node != nil {
					return node
				}
			}
		}
	}
	return nil
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func parseSchemaRecipe(node map[string]any, sourceURL string) *models.Recipe {
	title, _ := node["name"].(string)
	title = strings.TrimSpace(html.UnescapeString(title))
	if title == "" {
		return nil
	}

	ingredients := schemaIngredients(node)
	if len(ingredients) < minStructuredItems {
		return nil
	}

	steps := schemaInstructions(node)
	if len(steps) < minStructuredItems {
		return nil
	}

	recipe := &models.Recipe{
		Title:        title,
		Ingredients:  ingredients,
		Steps:        steps,
		SourceURL:    sourceURL,
		Platform:     platform.Website.String(),
		Language:     schemaLanguage(node["inLanguage"]),
		ThumbnailURL: schemaImage(node["image"]),
		Author:       schemaAuthor(node["author"]),
	}
	recipe.Normalize()
	return recipe
}

func schemaIngredients(node map[string]any) []string {
	for _, field := range []string{"recipeIngredient", "recipeIngredients", "ingredients"} {
		raw, ok := node[field]
		if !ok {
			continue
		}
		var out []string
		switch v := raw.(type) {
		case []any:
			for _, item := range v {
				switch it := item.(type) {
				case string:
					if text := collapse(it); text != "" {
						out = append(out, text)
					}
				case map[string]any:
					if text := collapse(firstString(it, "text", "name")); text != "" {
						out = append(out, text)
					}
				}
			}
		case string:
			if text := collapse(v); text != "" {
				out = append(out, text)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func schemaInstructions(node map[string]any) []string {
	for _, field := range []string{"recipeInstructions", "instructions"} {
		raw, ok := node[field]
		if !ok {
			continue
		}
		if steps := parseInstructions(raw); len(steps) > 0 {
			return steps
		}
	}
	return nil
}

func parseInstructions(raw any) []string {
	var steps []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if text := cleanInstruction(it); text != "" {
					steps = append(steps, text)
				}
			case map[string]any:
				steps = append(steps, stepsFromObject(it)...)
			}
		}
	case string:
		for _, line := range strings.Split(v, "\n") {
			if text := cleanInstruction(line); text != "" {
				steps = append(steps, text)
			}
		}
	case map[string]any:
		steps = stepsFromObject(v)
	}
	return steps
}

// stepsFromObject handles HowToStep, HowToSection and bare objects with text or name.
func stepsFromObject(obj map[string]any) []string {
	switch {
	case hasType(obj, "HowToStep"):
		if text, ok := obj["text"].(string); ok {
			return nonEmpty(cleanInstruction(text))
		}
		if text, ok := obj["itemListElement"].(string); ok {
			return nonEmpty(cleanInstruction(text))
		}
	case hasType(obj, "HowToSection"):
		items, _ := obj["itemListElement"].([]any)
		var steps []string
		for _, item := range items {
			switch it := item.(type) {
			case string:
				if text := cleanInstruction(it); text != "" {
					steps = append(steps, text)
				}
			case map[string]any:
				steps = append(steps, stepsFromObject(it)...)
			}
		}
		return steps
	}
	return nonEmpty(cleanInstruction(firstString(obj, "text", "name")))
}

func schemaImage(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		if len(v) == 0 {
			return ""
		}
		switch first := v[0].(type) {
		case string:
			return strings.TrimSpace(first)
		case map[string]any:
			return firstString(first, "url")
		}
	case map[string]any:
		return firstString(v, "url")
	}
	return ""
}

func schemaLanguage(raw any) string {
	switch v := raw.(type) {
	case string:
		if lang := strings.TrimSpace(v); lang != "" {
			return lang
		}
	case map[string]any:
		if lang := firstString(v, "@value"); lang != "" {
			return lang
		}
	}
	return models.DefaultLanguage
}

func schemaAuthor(raw any) string {
	switch v := raw.(type) {
	case string:
		return collapse(v)
	case map[string]any:
		return collapse(firstString(v, "name"))
	case []any:
		for _, item := range v {
			if author := schemaAuthor(item); author != "" {
				return author
			}
		}
	}
	return ""
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
