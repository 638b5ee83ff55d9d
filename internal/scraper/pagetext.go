package scraper

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

const (
	// MaxPageTextRunes caps the page text handed to the model.
	MaxPageTextRunes = 50000
	defaultPageTitle = "Recipe"
	chromeSelectors  = "script, style, nav, header, footer, aside, noscript"
)

// PageText renders the readable part of rawHTML as markdown and returns it with
// the document title.
func PageText(rawHTML string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", err
	}

	title = selectionText(doc.Find("title").First())
	if title == "" {
		title = defaultPageTitle
	}

	doc.Find(chromeSelectors).Remove()

	body, err := doc.Html()
	if err == nil {
		text, err = htmltomarkdown.ConvertString(body)
	}
	if err != nil || strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	text = strings.TrimSpace(text)
	return title, truncateRunes(text, MaxPageTextRunes), nil
}
