// Package privacy removes credentials from values before they reach logs
// and error contexts.
package privacy

import (
	"net/url"
	"regexp"
)

// urlPattern finds URLs embedded in free text.
var urlPattern = regexp.MustCompile(`\b(?:https?|tcp|ssl|tls|mqtts?|wss?)://\S+`)

// SanitizeURL strips user info and query from rawURL. Values that do not
// parse as URLs are returned unchanged.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	if u.User == nil && u.RawQuery == "" {
		return rawURL
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}

// ScrubMessage sanitizes every URL found in message.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, SanitizeURL)
}
