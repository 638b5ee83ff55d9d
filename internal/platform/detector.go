// Package platform classifies source URLs and derives stable cache identities for them.
package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform identifies where a recipe comes from.
type Platform string

const (
	YouTube   Platform = "youtube"
	TikTok    Platform = "tiktok"
	Instagram Platform = "instagram"
	Website   Platform = "website"

	// Unsupported is returned for URLs no extractor can handle.
	Unsupported Platform = ""
)

// IsVideo reports whether the platform is served by the video pipeline.
func (p Platform) IsVideo() bool {
	return p == YouTube || p == TikTok || p == Instagram
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

type videoPatterns struct {
	platform Platform
	patterns []*regexp.Regexp
}

// Order matters: the first matching platform wins.
var videoPlatforms = []videoPatterns{
	{YouTube, []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/watch`),
		regexp.MustCompile(`youtube\.com/shorts`),
		regexp.MustCompile(`youtu\.be/`),
		regexp.MustCompile(`youtube\.com/embed`),
	}},
	{TikTok, []*regexp.Regexp{
		regexp.MustCompile(`tiktok\.com/@[\w.-]+/video/\d+`),
		regexp.MustCompile(`vm\.tiktok\.com/\w+`),
		regexp.MustCompile(`tiktok\.com/t/\w+`),
	}},
	{Instagram, []*regexp.Regexp{
		regexp.MustCompile(`instagram\.com/reels?/[\w-]+`),
		regexp.MustCompile(`instagram\.com/p/[\w-]+`),
		regexp.MustCompile(`instagram\.com/tv/[\w-]+`),
	}},
}

// socialDomains never host recipe pages of their own; links to them that are not
// recognised videos are rejected instead of being scraped as websites.
var socialDomains = map[string]struct{}{
	"youtube.com": {}, "youtu.be": {}, "tiktok.com": {}, "instagram.com": {},
	"twitter.com": {}, "x.com": {}, "facebook.com": {}, "fb.watch": {},
	"snapchat.com": {}, "linkedin.com": {}, "pinterest.com": {}, "twitch.tv": {},
	"reddit.com": {}, "discord.com": {}, "telegram.org": {}, "t.me": {},
}

var shortenerDomains = map[string]struct{}{
	"bit.ly": {}, "tinyurl.com": {}, "ow.ly": {}, "t.co": {}, "goo.gl": {},
}

// Detect classifies rawURL. It never performs I/O.
func Detect(rawURL string) Platform {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if lower == "" {
		return Unsupported
	}

	for _, vp := range videoPlatforms {
		for _, pattern := range vp.patterns {
			if pattern.MatchString(lower) {
				return vp.platform
			}
		}
	}

	host, ok := httpHost(lower)
	if !ok {
		return Unsupported
	}
	if IsSocialDomain(host) {
		return Unsupported
	}
	return Website
}

// IsSupported reports whether Detect yields a usable platform.
func IsSupported(rawURL string) bool {
	return Detect(rawURL) != Unsupported
}

// IsSocialDomain reports whether host (or one of its parents) is a social network.
func IsSocialDomain(host string) bool {
	return matchDomain(host, socialDomains)
}

// IsShortenerDomain reports whether host is a known link shortener.
func IsShortenerDomain(host string) bool {
	return matchDomain(host, shortenerDomains)
}

// BareHost lowercases host and removes any port and leading "www.".
func BareHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, found := strings.Cut(host, ":"); found {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}

func matchDomain(host string, set map[string]struct{}) bool {
	host = BareHost(host)
	for host != "" {
		if _, ok := set[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
	return false
}

func httpHost(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	host := parsed.Hostname()
	if host == "" || (!strings.Contains(host, ".") && host != "localhost") {
		return "", false
	}
	return host, true
}
