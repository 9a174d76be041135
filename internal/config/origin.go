package config

import (
	"errors"
	"net/url"
	"strings"
)

var (
	errEmptyOrigin    = errors.New("origin cannot be empty")
	errOriginSpace    = errors.New("origin cannot contain whitespace")
	errOriginWildcard = errors.New("wildcards are not allowed in trusted origins")
	errOriginShape    = errors.New("origin must be host[:port] without path, query, or fragment")
)

// SanitizeTrustedDomain normalizes a trusted origin entry to a lowercase
// host[:port], stripping an optional http(s) scheme and trailing slash.
func SanitizeTrustedDomain(raw string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", errEmptyOrigin
	}

	cleaned = strings.TrimPrefix(cleaned, "http://")
	cleaned = strings.TrimPrefix(cleaned, "https://")
	cleaned = strings.TrimSuffix(cleaned, "/")

	if strings.ContainsAny(cleaned, " \t\r\n") {
		return "", errOriginSpace
	}
	if strings.Contains(cleaned, "*") {
		return "", errOriginWildcard
	}

	u, err := url.Parse("http://" + cleaned)
	if err != nil || u.Host == "" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", errOriginShape
	}
	return u.Host, nil
}

// CORSOrigins expands trusted hosts into the scheme-qualified origins the CORS
// middleware matches against.
func (c *Config) CORSOrigins() []string {
	out := make([]string, 0, len(c.TrustedOrigins)*2)
	for _, host := range c.TrustedOrigins {
		out = append(out, "http://"+host, "https://"+host)
	}
	return out
}
