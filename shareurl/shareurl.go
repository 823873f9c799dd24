// Package shareurl validates claude.ai share URLs and extracts share IDs.
package shareurl

import (
	"net/url"
	"regexp"
	"strings"
)

// Share IDs are lowercase hex with dashes (UUID-shaped, but we don't
// require a strict UUID).
var idPattern = regexp.MustCompile(`^[a-f0-9-]+$`)

// ExtractID returns the share ID from a claude.ai share URL,
// or "" if the URL is not a valid share URL.
func ExtractID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	if host != "claude.ai" && host != "www.claude.ai" {
		return ""
	}
	rest, ok := strings.CutPrefix(u.Path, "/share/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	if id == "" || !idPattern.MatchString(id) {
		return ""
	}
	return id
}

// IsValid reports whether rawURL is a claude.ai share URL.
func IsValid(rawURL string) bool {
	return ExtractID(rawURL) != ""
}

// ShortID returns the first 8 characters of a share ID, for display
// and directory naming.
func ShortID(shareID string) string {
	if len(shareID) > 8 {
		return shareID[:8]
	}
	if shareID == "" {
		return "unknown"
	}
	return shareID
}
