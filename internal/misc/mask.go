// Package misc holds small helpers shared across packages.
package misc

import (
	"net/url"
	"strings"
)

// MaskSecret hides all but the first and last four characters of a secret.
func MaskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// MaskQueryParam returns rawURL with the named query parameter masked.
func MaskQueryParam(rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if v := q.Get(name); v != "" {
		q.Set(name, MaskSecret(v))
		u.RawQuery = q.Encode()
	}
	return u.String()
}
