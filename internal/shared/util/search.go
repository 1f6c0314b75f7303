package util

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// ContainsFold reports whether needle appears in any of the haystacks using
// Unicode case folding. An empty needle matches everything.
func ContainsFold(needle string, haystacks ...string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	n := folder.String(needle)
	for _, h := range haystacks {
		if strings.Contains(folder.String(h), n) {
			return true
		}
	}
	return false
}

// Page clamps limit and offset for list endpoints.
func Page(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Window returns the [offset, offset+limit) slice bounds within n items.
func Window(n, limit, offset int) (int, int) {
	if offset > n {
		offset = n
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}
