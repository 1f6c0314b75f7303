package util

import (
	"net/url"
	"strings"
)

// OriginSet matches browser Origin headers against configured entries.
// An entry is either an exact origin or a scheme plus "*." host suffix,
// e.g. "https://*.docsign.app".
type OriginSet struct {
	exact    map[string]struct{}
	wildcard []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string
	suffix string
}

func NewOriginSet(entries []string) OriginSet {
	set := OriginSet{exact: make(map[string]struct{})}
	for _, e := range entries {
		e = strings.TrimRight(strings.TrimSpace(e), "/")
		if e == "" {
			continue
		}
		if scheme, host, ok := strings.Cut(e, "://*."); ok {
			set.wildcard = append(set.wildcard, wildcardOrigin{scheme: scheme, suffix: "." + strings.ToLower(host)})
			continue
		}
		set.exact[strings.ToLower(e)] = struct{}{}
	}
	return set
}

func (s OriginSet) Allows(origin string) bool {
	origin = strings.ToLower(strings.TrimSpace(origin))
	if origin == "" {
		return false
	}
	if _, ok := s.exact[origin]; ok {
		return true
	}
	if len(s.wildcard) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, w := range s.wildcard {
		if u.Scheme == w.scheme && strings.HasSuffix(u.Host, w.suffix) {
			return true
		}
	}
	return false
}
