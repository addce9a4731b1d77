package domain

import (
	"regexp"
	"strings"
)

var defaultIndexSuffix = regexp.MustCompile(`/index\.(html|htm|php|jsp|asp|aspx)$`)

// IdentityKey normalizes a page locator so that trivially different URLs of
// the same page compare equal. Grammar, applied in order:
//
//	lowercase -> strip http:// or https:// -> strip trailing "/" ->
//	strip one default index file -> strip trailing "/"
//
// Query strings and subdomain aliases are kept as-is. An empty URL yields a
// key derived from the document id so such records never collapse.
func IdentityKey(docID DocumentID, url string) string {
	u := strings.ToLower(strings.TrimSpace(url))
	if u == "" {
		return "id:" + string(docID)
	}
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimRight(u, "/")
	u = defaultIndexSuffix.ReplaceAllString(u, "")
	u = strings.TrimRight(u, "/")
	if u == "" {
		return "id:" + string(docID)
	}
	return "url:" + u
}
