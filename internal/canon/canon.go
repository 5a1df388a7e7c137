// Package canon derives the stable identity key used for watch-state lookups.
package canon

import (
	"net/url"
	"sort"
	"strings"
)

type pair struct {
	key   string
	value string
}

// Canonicalize drops the fragment of raw and orders its query parameters by
// name. Values sharing a name keep their relative order and blank values are
// kept. Input that does not parse as a URL is returned unchanged.
func Canonicalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false
	if u.RawQuery != "" {
		pairs := splitQuery(u.RawQuery)
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
		u.RawQuery = encodeQuery(pairs)
	}
	return u.String()
}

func splitQuery(raw string) []pair {
	var pairs []pair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		pairs = append(pairs, pair{key: unescape(k), value: unescape(v)})
	}
	return pairs
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func encodeQuery(pairs []pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
