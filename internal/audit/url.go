package audit

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var (
	schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	hostnameRe   = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
)

// NormalizeSeed turns user input into an absolute http(s) URL. A missing
// scheme defaults to https. The host must be localhost, an IP literal or a
// dotted hostname. The fragment is dropped; path and query are kept.
//
//	NormalizeSeed("example.com") == "https://example.com"
func NormalizeSeed(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("%w: contains whitespace", ErrInvalidURL)
	}
	if !schemePrefix.MatchString(s) {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: credentials not allowed", ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	if !validHost(host) {
		return "", fmt.Errorf("%w: invalid host %q", ErrInvalidURL, u.Host)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if host == "localhost" || net.ParseIP(host) != nil {
		return true
	}
	return hostnameRe.MatchString(host)
}

// origin is the scheme and host (with any non-default port) that links must
// share with the seed to be crawled.
func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + hostKey(u)
}

func hostKey(u *url.URL) string {
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// frontierKey is the dedup identity of a URL: origin plus path, with the
// query and fragment ignored and an empty path treated as "/".
func frontierKey(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return origin(u) + p
}

func keyOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return frontierKey(u)
}

// resolveLink resolves href against the page URL and returns the crawlable
// form when it stays on the seed origin. Query and fragment are stripped.
func resolveLink(page *url.URL, seedOrigin string, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := page.ResolveReference(ref)
	abs.Scheme = strings.ToLower(abs.Scheme)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" || origin(abs) != seedOrigin {
		return "", false
	}
	abs.Host = strings.ToLower(abs.Host)
	abs.RawQuery = ""
	abs.ForceQuery = false
	abs.Fragment = ""
	abs.RawFragment = ""
	abs.User = nil
	return abs.String(), true
}
