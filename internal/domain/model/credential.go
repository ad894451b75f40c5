package model

import (
	"fmt"
	"strings"
)

// ParsedCredential is the structured form of the raw cookie blob the user
// pastes from their browser. The wizard borrows one per operation; the
// stored blob is never mutated.
type ParsedCredential struct {
	Cookies map[string]string
}

// CookieHeader renders the credential back into a Cookie header value with
// deterministic ordering of the required names first.
func (c ParsedCredential) CookieHeader(order []string) string {
	var parts []string
	seen := make(map[string]bool, len(c.Cookies))
	for _, name := range order {
		if v, ok := c.Cookies[name]; ok {
			parts = append(parts, name+"="+v)
			seen[name] = true
		}
	}
	for name, v := range c.Cookies {
		if !seen[name] {
			parts = append(parts, name+"="+v)
		}
	}
	return strings.Join(parts, "; ")
}

// ParseCredential parses a raw "name=value; name2=value2" cookie blob and
// verifies every required cookie name is present. A blob that fails to parse
// is indistinguishable from a missing credential to callers.
func ParseCredential(raw string, required []string) (ParsedCredential, error) {
	cookies := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return ParsedCredential{}, fmt.Errorf("malformed cookie pair %q", truncate(pair, 24))
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return ParsedCredential{}, fmt.Errorf("cookie pair with empty name")
		}
		cookies[name] = strings.TrimSpace(value)
	}

	for _, name := range required {
		if cookies[name] == "" {
			return ParsedCredential{}, fmt.Errorf("required cookie %q missing", name)
		}
	}

	return ParsedCredential{Cookies: cookies}, nil
}

// truncate shortens s for inclusion in error messages so credential material
// never leaks whole into logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
