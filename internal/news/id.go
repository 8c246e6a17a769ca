package news

import (
	"github.com/JakeFAU/newsdesk/internal/hash/sha256"
)

// articleIDLength is the number of hex characters kept from the digest.
const articleIDLength = 16

var idHasher = sha256.New()

// ArticleID derives the stable deep-link identifier for an article from its
// title, date and source. Links already published depend on this exact
// derivation: trimmed fields joined by newlines, SHA-256, first 16 hex chars.
func ArticleID(title, date, source string) string {
	return idHasher.ShortDigest(articleIDLength, title, date, source)
}
