package scraper

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
)

const minPluginStepLength = 6

type pluginExtractor func(container *goquery.Selection, sourceURL string) *models.Recipe

type wordpressPlugin struct {
	name       string
	containers []string
	extract    pluginExtractor
}

// wordpressPlugins are tried in order; the first container that yields a recipe wins.
var wordpressPlugins = []wordpressPlugin{
	{"wprm", []string{".wprm-recipe", "#wprm-recipe-container", `[class*="wprm-recipe"]`}, extractWPRM},
	{"tasty", []string{".tasty-recipes", ".tasty-recipe", `[class*="tasty-recipe"]`}, extractTasty},
	{"wp_recipe_maker", []string{".wp-recipe-maker", `[class*="wp-recipe-maker"]`}, extractGenericPlugin},
	{"mv_create", []string{".mv-create-card", `[class*="mv-create"]`}, extractGenericPlugin},
	{"ziplist", []string{".ziplist-recipe", ".zlrecipe-container"}, extractGenericPlugin},
}

// ExtractWordPress detects common WordPress recipe plugins and reads their markup.
// It returns the plugin name alongside the recipe.
func ExtractWordPress(doc *goquery.Document, sourceURL string) (*models.Recipe, string) {
	for _, plugin := range wordpressPlugins {
		for _, selector := range plugin.containers {
			container := doc.Find(selector).First()
			if container.Length() == 0 {
				continue
			}
			if recipe := plugin.extract(container, sourceURL); recipe != nil {
				return recipe, plugin.name
			}
		}
	}
	return nil, ""
}

func extractWPRM(container *goquery.Selection, sourceURL string) *models.Recipe {
	title := selectionText(container.Find(`.wprm-recipe-name, [class*="recipe-name"]`).First())
	if title == "" {
		return nil
	}

	ingredients := collectTexts(firstMatching(container,
		".wprm-recipe-ingredient", ".wprm-recipe-ingredient-name", `[class*="recipe-ingredient"]`), 2)
	if len(ingredients) == 0 {
		ingredients = collectTexts(container.Find(".wprm-recipe-ingredients-container, .wprm-recipe-ingredients").First().Find("li"), 1)
	}
	if len(ingredients) < minStructuredItems {
		return nil
	}

	steps := collectTexts(firstMatching(container,
		".wprm-recipe-instruction-text", ".wprm-recipe-instruction", `[class*="recipe-instruction-text"]`), minPluginStepLength)
	if len(steps) == 0 {
		steps = collectTexts(container.Find(".wprm-recipe-instructions-container, .wprm-recipe-instructions").First().Find("li"), minPluginStepLength)
	}
	if len(steps) < minStructuredItems {
		return nil
	}

	image := container.Find(`.wprm-recipe-image img, .wprm-recipe-image-container img, img[class*="recipe-image"]`).First()
	return pluginRecipe(title, ingredients, steps, imageSource(image), sourceURL)
}

func extractTasty(container *goquery.Selection, sourceURL string) *models.Recipe {
	title := selectionText(container.Find(`.tasty-recipes-title, [class*="tasty-recipes-title"]`).First())
	if title == "" {
		return nil
	}

	ingredients := collectTexts(container.Find(".tasty-recipes-ingredients li, .tasty-recipes-ingredients-body li"), 1)
	if len(ingredients) < minStructuredItems {
		return nil
	}

	steps := collectTexts(container.Find(".tasty-recipes-instructions li, .tasty-recipes-instructions-body li"), minPluginStepLength)
	if len(steps) < minStructuredItems {
		return nil
	}

	image := container.Find(`.tasty-recipes-image img, img[class*="tasty-recipes-image"]`).First()
	return pluginRecipe(title, ingredients, steps, imageSource(image), sourceURL)
}

// extractGenericPlugin covers WP Recipe Maker, Mediavine Create and ZipList, which
// share a loose heading plus list layout.
func extractGenericPlugin(container *goquery.Selection, sourceURL string) *models.Recipe {
	title := selectionText(container.Find(`h2, h3, .recipe-title, [class*="recipe-name"]`).First())
	if title == "" {
		return nil
	}

	ingredientList := container.Find(`[class*="ingredients"], .ingredients-list`).First()
	ingredients := collectTexts(ingredientList.Find("li, .ingredient"), 1)
	if len(ingredients) < minStructuredItems {
		return nil
	}

	instructionList := container.Find(`[class*="instructions"], .instructions-list`).First()
	steps := collectTexts(instructionList.Find("li, .instruction"), minPluginStepLength)
	if len(steps) < minStructuredItems {
		return nil
	}

	return pluginRecipe(title, ingredients, steps, imageSource(container.Find("img").First()), sourceURL)
}

func pluginRecipe(title string, ingredients, steps []string, image, sourceURL string) *models.Recipe {
	recipe := &models.Recipe{
		Title:        title,
		Ingredients:  ingredients,
		Steps:        steps,
		SourceURL:    sourceURL,
		Platform:     platform.Website.String(),
		ThumbnailURL: image,
	}
	recipe.Normalize()
	return recipe
}

// firstMatching returns the matches of the first selector that finds anything.
func firstMatching(root *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, selector := range selectors {
		if found := root.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return root.Find(selectors[len(selectors)-1])
}

// collectTexts returns the cleaned text of every element at least minLen runes long.
func collectTexts(sel *goquery.Selection, minLen int) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := selectionText(s); text != "" && runeLen(text) >= minLen {
			out = append(out, text)
		}
	})
	return out
}
