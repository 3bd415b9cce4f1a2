// Package feed provides feed fetching and parsing.
package feed

import (
	"net/url"
	"regexp"
	"strings"
)

// Routes are either local identifiers like /platform/path or absolute
// http(s) URLs; anything else is rejected at registration.
var routeRe = regexp.MustCompile(`^(?i)/[a-z0-9_-]+(?:/[a-z0-9_:-]+)*$`)

// ValidRoute reports whether the value matches the local route shape.
func ValidRoute(value string) bool {
	return routeRe.MatchString(value)
}

// LooksLikeURL reports whether the value is an absolute http(s) URL.
func LooksLikeURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DefaultDisplayName derives a display name when the caller gave none:
// the hostname without a leading "www." for URLs, the path segments
// joined with " / " for local routes.
func DefaultDisplayName(route string) string {
	if LooksLikeURL(route) {
		u, err := url.Parse(route)
		if err != nil {
			return route
		}
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	var parts []string
	for _, seg := range strings.Split(strings.TrimPrefix(route, "/"), "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, " / ")
}
