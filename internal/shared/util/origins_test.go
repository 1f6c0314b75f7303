package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginSet(t *testing.T) {
	set := NewOriginSet([]string{" http://localhost:5173/ ", "https://*.docsign.app", ""})

	for _, ok := range []string{"http://localhost:5173", "HTTP://LOCALHOST:5173", "https://eu.docsign.app", "https://a.b.docsign.app"} {
		assert.True(t, set.Allows(ok), ok)
	}
	for _, bad := range []string{"", "http://localhost:3000", "https://docsign.app", "http://eu.docsign.app", "https://evildocsign.app", "https://docsign.app.evil.com"} {
		assert.False(t, set.Allows(bad), bad)
	}
}
