package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var symbolExpr = regexp.MustCompile(`^[A-Z0-9.\-]{1,6}$`)

// trackingParams are dropped from URLs before hashing so that the same article
// shared through different campaigns maps to one identity.
var trackingParams = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"cmpid":  {},
	"ref":    {},
}

// CanonicalID derives a stable identity for an item. The normalized URL is
// preferred; guid and then source+title are used when the URL is missing.
func CanonicalID(rawURL, guid, source, title string) string {
	key := NormalizeURL(rawURL)
	if key == "" {
		key = strings.TrimSpace(guid)
	}
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(source)) + "|" + strings.ToLower(strings.Join(strings.Fields(title), " "))
	}
	if key == "|" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// NormalizeURL lower-cases scheme and host, drops fragments, tracking
// parameters and trailing slashes, and sorts the remaining query.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingParams[lower]; ok {
			q.Del(key)
		}
	}
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var parts []string
	for _, key := range keys {
		for _, v := range q[key] {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// ValidSymbol reports whether s looks like a ticker: 1-6 characters made of
// uppercase letters, digits, dots and dashes.
func ValidSymbol(s string) bool {
	return symbolExpr.MatchString(s)
}

// FilterSymbols keeps the entries that pass ValidSymbol, preserving order.
func FilterSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if ValidSymbol(s) {
			out = append(out, s)
		}
	}
	return out
}
