package common

import (
	"net/url"
	"strings"
)

// IsSupportedPostingURL reports whether rawURL is an http(s) URL whose host is
// supportedHost or one of its subdomains.
func IsSupportedPostingURL(rawURL, supportedHost string) bool {
	if supportedHost == "" {
		return false
	}

	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}

	host := strings.ToLower(parsedURL.Hostname())
	supportedHost = strings.ToLower(strings.TrimPrefix(supportedHost, "."))
	return host == supportedHost || strings.HasSuffix(host, "."+supportedHost)
}

// CanonicalPostingURL strips the query string and fragment from a posting URL.
// Tracking parameters on job links change per search and would defeat
// navigation caching on the site. Unparsable input is returned trimmed.
func CanonicalPostingURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	parsedURL, err := url.Parse(trimmed)
	if err != nil || parsedURL.Host == "" {
		return trimmed
	}

	parsedURL.RawQuery = ""
	parsedURL.Fragment = ""
	return parsedURL.String()
}

// HasAnyPathFragment reports whether the path of rawURL contains any of fragments.
func HasAnyPathFragment(rawURL string, fragments ...string) bool {
	path := rawURL
	if parsedURL, err := url.Parse(rawURL); err == nil {
		path = parsedURL.Path
	}
	for _, fragment := range fragments {
		if fragment != "" && strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}
