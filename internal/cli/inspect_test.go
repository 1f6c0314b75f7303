package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign-backend/internal/pdfmeta/pdftest"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestInspectReportsPagesAndExcerpt(t *testing.T) {
	path := writeTemp(t, "contract.pdf", pdftest.Build("Hello signer", "Page two"))

	out, err := run(t, "inspect", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Pages)
	assert.Contains(t, resp.Data.Excerpt, "Hello signer")
}

func TestInspectRejectsNonPDF(t *testing.T) {
	path := writeTemp(t, "notes.txt", []byte("plain text"))

	out, err := run(t, "inspect", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, out, "inspect pdf")
}

func TestExcerptCollapsesWhitespaceAndTruncates(t *testing.T) {
	assert.Equal(t, "a b c", excerpt("a\n b\t\tc", 10))
	assert.Equal(t, "abc…", excerpt("abcdef", 3))
}
