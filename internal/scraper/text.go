package scraper

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var stepNumbering = regexp.MustCompile(`(?i)^\s*(?:step\s*)?\d+[.):\s]+`)

// collapse unescapes leftover entities and squeezes whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// cleanInstruction removes leading numbering such as "1.", "2)" or "Step 3:".
func cleanInstruction(s string) string {
	s = html.UnescapeString(s)
	s = stepNumbering.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func selectionText(s *goquery.Selection) string {
	return collapse(s.Text())
}

// imageSource prefers src and falls back to lazy-loading data-src.
func imageSource(img *goquery.Selection) string {
	if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
		return src
	}
	return strings.TrimSpace(img.AttrOr("data-src", ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
