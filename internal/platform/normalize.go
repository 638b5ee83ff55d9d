package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// CacheKeyLength is the number of hex characters kept from the SHA-256 digest.
const CacheKeyLength = 16

var (
	youtubeIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`(?i:youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`(?i:m\.youtube\.com/watch\?v=)([a-zA-Z0-9_-]{11})`),
	}
	tiktokVideoPattern = regexp.MustCompile(`(?i:tiktok\.com/@[\w.-]+/video/)(\d+)`)
	tiktokShortPattern = regexp.MustCompile(`(?i:vm\.tiktok\.com|tiktok\.com/t)/(\w+)`)
	instagramPattern   = regexp.MustCompile(`(?i:instagram\.com/(?:reels|reel|p|tv)/)([\w-]+)`)
	idSegmentPattern   = regexp.MustCompile(`^[\w-]+$`)
	cacheKeyPattern    = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// trackingParams are dropped from website URLs before hashing.
var trackingParams = map[string]struct{}{
	"fbclid": {}, "gclid": {}, "mc_cid": {}, "mc_eid": {}, "igshid": {},
}

// Normalize converts rawURL into its canonical "platform:id" identity. When no
// identifier can be extracted the full URL is used instead.
func Normalize(rawURL string, p Platform) string {
	rawURL = strings.TrimSpace(rawURL)

	var id string
	switch p {
	case YouTube:
		id = youtubeID(rawURL)
	case TikTok:
		id = tiktokID(rawURL)
	case Instagram:
		id = firstSubmatch(instagramPattern, rawURL)
	case Website:
		id = canonicalWebsite(rawURL)
	}

	if id == "" {
		return string(p) + ":" + rawURL
	}
	return string(p) + ":" + id
}

// CacheKey hashes a canonical identity into a short cache key.
func CacheKey(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:CacheKeyLength]
}

// NormalizeAndHash returns the canonical identity and its cache key.
func NormalizeAndHash(rawURL string, p Platform) (canonical, key string) {
	canonical = Normalize(rawURL, p)
	return canonical, CacheKey(canonical)
}

// EnsureScheme prefixes scheme-less input such as "youtube.com/shorts/abc" with
// https:// so it can be validated and fetched like any pasted link.
func EnsureScheme(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.Contains(rawURL, "://") {
		return rawURL
	}
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Scheme != "" && parsed.Opaque == "" {
		return rawURL
	}
	return "https://" + rawURL
}

// IsCacheKey reports whether key has the shape produced by CacheKey.
func IsCacheKey(key string) bool {
	return cacheKeyPattern.MatchString(key)
}

func youtubeID(rawURL string) string {
	for _, pattern := range youtubeIDPatterns {
		if id := firstSubmatch(pattern, rawURL); id != "" {
			return id
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if v := strings.TrimSpace(parsed.Query().Get("v")); v != "" && idSegmentPattern.MatchString(v) {
		return v
	}

	segments := strings.Split(strings.Trim(parsed.EscapedPath(), "/"), "/")
	host := BareHost(parsed.Host)
	switch {
	case host == "youtu.be" && len(segments) >= 1:
		return validSegment(segments[0])
	case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed"):
		return validSegment(segments[1])
	}
	return ""
}

func tiktokID(rawURL string) string {
	if id := firstSubmatch(tiktokVideoPattern, rawURL); id != "" {
		return id
	}
	if code := firstSubmatch(tiktokShortPattern, rawURL); code != "" {
		return "short:" + code
	}
	return ""
}

// canonicalWebsite lowercases the host, drops "www.", the fragment, trailing
// slashes and tracking parameters, and sorts the remaining query.
func canonicalWebsite(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}

	host := BareHost(parsed.Host)
	path := strings.TrimRight(parsed.EscapedPath(), "/")

	query := parsed.Query()
	keys := make([]string, 0, len(query))
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			continue
		}
		if _, drop := trackingParams[lower]; drop {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(host)
	b.WriteString(path)
	if len(keys) > 0 {
		clean := url.Values{}
		for _, key := range keys {
			clean[key] = query[key]
		}
		b.WriteByte('?')
		b.WriteString(clean.Encode())
	}
	return b.String()
}

func validSegment(segment string) string {
	if idSegmentPattern.MatchString(segment) {
		return segment
	}
	return ""
}

func firstSubmatch(pattern *regexp.Regexp, s string) string {
	match := pattern.FindStringSubmatch(s)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
