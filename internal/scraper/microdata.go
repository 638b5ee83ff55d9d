package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/charlesng35/recipekeeper/internal/models"
	"github.com/charlesng35/recipekeeper/internal/platform"
)

// ExtractMicrodata reads a schema.org Recipe described with itemscope/itemprop
// attributes. Properties of nested items (an author's name, say) are ignored.
func ExtractMicrodata(doc *goquery.Document, sourceURL string) *models.Recipe {
	root := doc.Find(`[itemtype*="schema.org/Recipe"]`).First()
	if root.Length() == 0 {
		return nil
	}

	title := collapse(propValue(ownProps(root, "name").First()))
	if title == "" {
		return nil
	}

	var ingredients []string
	ownProps(root, "recipeIngredient", "ingredients").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(propValue(s)); text != "" {
			ingredients = append(ingredients, text)
		}
	})
	if len(ingredients) < minStructuredItems {
		return nil
	}

	var steps []string
	ownProps(root, "recipeInstructions").Each(func(_ int, s *goquery.Selection) {
		steps = append(steps, microdataSteps(s)...)
	})
	if len(steps) < minStructuredItems {
		return nil
	}

	recipe := &models.Recipe{
		Title:        title,
		Ingredients:  ingredients,
		Steps:        steps,
		SourceURL:    sourceURL,
		Platform:     platform.Website.String(),
		ThumbnailURL: microdataImage(ownProps(root, "image").First()),
		Language:     strings.TrimSpace(propValue(ownProps(root, "inLanguage").First())),
		Author:       microdataAuthor(ownProps(root, "author").First()),
	}
	recipe.Normalize()
	return recipe
}

// ownProps selects descendants of root carrying one of the given itemprop names
// whose nearest enclosing itemscope is root itself.
func ownProps(root *goquery.Selection, names ...string) *goquery.Selection {
	selectors := make([]string, len(names))
	for i, name := range names {
		selectors[i] = `[itemprop~="` + name + `"]`
	}
	rootNode := root.Get(0)
	return root.Find(strings.Join(selectors, ", ")).FilterFunction(func(_ int, s *goquery.Selection) bool {
		scope := s.ParentsFiltered("[itemscope]").First()
		return scope.Length() > 0 && scope.Get(0) == rootNode
	})
}

// propValue prefers the machine-readable content attribute over visible text.
func propValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return content
	}
	return s.Text()
}

func microdataSteps(s *goquery.Selection) []string {
	var steps []string
	add := func(text string) {
		if cleaned := cleanInstruction(text); cleaned != "" {
			steps = append(steps, cleaned)
		}
	}

	if items := s.Find("li"); items.Length() > 0 {
		items.Each(func(_ int, li *goquery.Selection) { add(li.Text()) })
		return steps
	}
	if text := s.Find(`[itemprop="text"]`).First(); text.Length() > 0 {
		add(propValue(text))
		return steps
	}
	if s.Find("p").Length() > 1 {
		s.Find("p").Each(func(_ int, p *goquery.Selection) { add(p.Text()) })
		return steps
	}
	add(propValue(s))
	return steps
}

func microdataImage(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"src", "content", "href", "data-src"} {
		if value := strings.TrimSpace(s.AttrOr(attr, "")); value != "" {
			return value
		}
	}
	if img := s.Find("img").First(); img.Length() > 0 {
		return imageSource(img)
	}
	return ""
}

func microdataAuthor(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if _, scoped := s.Attr("itemscope"); scoped {
		if name := s.Find(`[itemprop="name"]`).First(); name.Length() > 0 {
			return collapse(propValue(name))
		}
	}
	return collapse(propValue(s))
}
