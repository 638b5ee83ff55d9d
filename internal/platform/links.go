package platform

import (
	"net/url"
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)

// ExtractWebsiteLink returns the first link in text that points at a recipe
// website. Social networks and link shorteners are skipped.
func ExtractWebsiteLink(text string) string {
	for _, candidate := range linkPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?")
		parsed, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		host := parsed.Hostname()
		if IsSocialDomain(host) || IsShortenerDomain(host) {
			continue
		}
		if Detect(candidate) == Website {
			return candidate
		}
	}
	return ""
}
