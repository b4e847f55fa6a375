package shopify

import (
	"net/url"
	"strings"
)

// cursorParam is the query parameter carrying the opaque page cursor in the
// upstream's rel="next" Link URL
const cursorParam = "page_info"

// NextPageCursor extracts the opaque next-page cursor from an RFC 5988 Link
// header value. Returns "" when no rel="next" segment is present or its URL
// carries no cursor parameter
func NextPageCursor(link string) string {
	if link == "" {
		return ""
	}
	for _, seg := range strings.Split(link, ",") {
		parts := strings.Split(seg, ";")
		if len(parts) < 2 {
			continue
		}
		raw := strings.Trim(strings.TrimSpace(parts[0]), "<>")
		rel := ""
		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)
			if v, ok := strings.CutPrefix(p, "rel="); ok {
				rel = strings.Trim(v, `"`)
			}
		}
		if rel != "next" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Query().Get(cursorParam)
	}
	return ""
}
