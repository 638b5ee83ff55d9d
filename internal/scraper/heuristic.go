package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
)

const (
	minHeuristicIngredients = 3
	minHeuristicSteps       = 2
	maxHeuristicIngredients = 20
	maxHeuristicSteps       = 30
)

var ingredientSelectors = []string{
	".ingredients li",
	`[class*="ingredient"] li`,
	`[class*="Ingredient"] li`,
	"#ingredients li",
	"ul.ingredients li",
	".recipe-ingredients li",
	`[id*="ingredient"] li`,
	".ingredient-list li",
	`section[class*="ingredient"] li`,
	`div[class*="ingredient"] li`,
}

var instructionSelectors = []string{
	".instructions li",
	".directions li",
	".steps li",
	`[class*="instruction"] li`,
	`[class*="Instruction"] li`,
	`[class*="direction"] li`,
	`[class*="Direction"] li`,
	`[class*="step"] li`,
	"#instructions li",
	"#directions li",
	"ul.instructions li",
	"ol.instructions li",
	".recipe-instructions li",
	".recipe-directions li",
	`[id*="instruction"] li`,
	`[id*="direction"] li`,
	`section[class*="instruction"] li`,
	`section[class*="direction"] li`,
	`div[class*="instruction"] li`,
	`div[class*="direction"] li`,
}

var titleSelectors = []string{
	"h1",
	"h1.recipe-title",
	`h1[class*="recipe"]`,
	`h1[class*="Recipe"]`,
	".recipe-title",
	`[class*="recipe-title"]`,
	`[class*="Recipe-title"]`,
	"h2.recipe-title",
	`h2[class*="recipe"]`,
}

var thumbnailSelectors = []string{
	".recipe-image img",
	`[class*="recipe-image"] img`,
	`[class*="Recipe-image"] img`,
	"figure img",
	"article img",
	".entry-content img",
}

var (
	ingredientLabel  = regexp.MustCompile(`^(?:ingredients?:?$|for the|recipe$|print$|pin$|share$|save$)`)
	instructionLabel = regexp.MustCompile(`^(?:instructions?:?|directions?:?|steps?:?|method:?|print|pin|share|save)$`)
)

var actionWords = []string{
	"add", "mix", "stir", "pour", "bake", "cook", "heat", "place", "put", "remove",
	"cut", "chop", "slice", "combine", "whisk", "fold", "blend", "serve", "prepare",
}

// ExtractHeuristic guesses a recipe from common class and id naming on pages
// without structured data.
func ExtractHeuristic(doc *goquery.Document, sourceURL string) *models.Recipe {
	title := heuristicTitle(doc)
	if title == "" {
		return nil
	}

	ingredients := collectValid(doc, ingredientSelectors, isValidIngredient, minHeuristicIngredients, maxHeuristicIngredients)
	if len(ingredients) < minHeuristicIngredients {
		return nil
	}

	steps := collectValid(doc, instructionSelectors, isValidInstruction, minHeuristicSteps, maxHeuristicSteps)
	if len(steps) < minHeuristicSteps {
		return nil
	}

	recipe := &models.Recipe{
		Title:        title,
		Ingredients:  ingredients,
		Steps:        steps,
		SourceURL:    sourceURL,
		Platform:     platform.Website.String(),
		ThumbnailURL: pageThumbnail(doc),
	}
	recipe.Normalize()
	return recipe
}

func heuristicTitle(doc *goquery.Document) string {
	for _, selector := range titleSelectors {
		elem := doc.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		title := selectionText(elem)
		if n := runeLen(title); n > 3 && n < 200 {
			return title
		}
	}
	return ""
}

// collectValid walks selectors in order, keeping unique valid texts in document
// order, and stops at the first selector that brings the total to enough.
func collectValid(doc *goquery.Document, selectors []string, valid func(string) bool, enough, limit int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, selector := range selectors {
		items := doc.Find(selector)
		if items.Length() == 0 {
			continue
		}
		items.Each(func(_ int, item *goquery.Selection) {
			text := selectionText(item)
			if !valid(text) {
				return
			}
			if _, dup := seen[text]; dup {
				return
			}
			seen[text] = struct{}{}
			out = append(out, text)
		})
		if len(out) >= enough {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func isValidIngredient(text string) bool {
	n := runeLen(text)
	if n < 2 || n > 200 {
		return false
	}
	return !ingredientLabel.MatchString(strings.ToLower(text))
}

func isValidInstruction(text string) bool {
	n := runeLen(text)
	if n < 5 || n > 1000 {
		return false
	}
	lower := strings.ToLower(text)
	if instructionLabel.MatchString(lower) {
		return false
	}
	for _, word := range actionWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// pageThumbnail checks social meta tags before falling back to recipe images.
func pageThumbnail(doc *goquery.Document) string {
	if content := strings.TrimSpace(doc.Find(`meta[property="og:image"]`).First().AttrOr("content", "")); content != "" {
		return content
	}
	if content := strings.TrimSpace(doc.Find(`meta[name="twitter:image"]`).First().AttrOr("content", "")); content != "" {
		return content
	}
	for _, selector := range thumbnailSelectors {
		img := doc.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		if src := imageSource(img); strings.Contains(src, "http") {
			return src
		}
	}
	return ""
}
