package news

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint returns the dedup key of an entry: hex SHA-256 over title,
// link and the raw published date joined by "_". When a field itself holds
// a "_" the join would be ambiguous, so each field is length-prefixed
// instead. That form always has more than two separators and cannot match
// a plain join.
func Fingerprint(title, link, publishedDate string) string {
	key := title + "_" + link + "_" + publishedDate
	if strings.Contains(title, "_") || strings.Contains(link, "_") || strings.Contains(publishedDate, "_") {
		key = fmt.Sprintf("%d_%s_%d_%s_%d_%s", len(title), title, len(link), link, len(publishedDate), publishedDate)
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
