// Package normalize canonicalizes article URLs and titles into comparable keys.
// Both functions are total: any input, including the empty string, yields a
// key, and an empty key means "no usable value".
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var hyperlinkPattern = regexp.MustCompile(`(?i)HYPERLINK\("([^"]+)"`)

// placeholders are link labels written into the URL column instead of a URL.
var placeholders = map[string]struct{}{
	"記事を開く":        {},
	"🔗 記事を開く":      {},
	"Open Article": {},
}

// keptParams are the query keys that identify an article on some sites.
var keptParams = map[string]struct{}{
	"id":         {},
	"article_id": {},
	"article":    {},
}

// URL returns the canonical form of raw used for duplicate detection.
func URL(raw string) string {
	if m := hyperlinkPattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	u := strings.TrimSpace(raw)
	if _, ok := placeholders[u]; ok {
		return ""
	}

	base, query, hasQuery := strings.Cut(u, "?")
	base = strings.TrimSuffix(base, "/")
	if !hasQuery {
		return base
	}
	if kept := filterQuery(query); kept != "" {
		return base + "?" + kept
	}
	return base
}

// filterQuery keeps the identifying parameters, sorted by key. A key repeated
// in the query keeps its last value.
func filterQuery(query string) string {
	params := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if _, keep := keptParams[strings.ToLower(key)]; keep {
			params[key] = value
		}
	}
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

// titleNoise are the punctuation marks that vary between reposts of the same
// press release.
var titleNoise = map[rune]struct{}{
	'、': {},
	'，': {},
	'・': {},
	'ー': {},
	'-': {},
	'―': {},
}

// Title returns the canonical form of raw used for duplicate detection. The
// mapping is lossy on purpose: titles differing only in spacing or the noise
// punctuation collapse to the same key.
func Title(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if unicode.IsSpace(r) {
			continue
		}
		if _, noise := titleNoise[r]; noise {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
