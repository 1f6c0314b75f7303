package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"docsign-backend/internal/pdfmeta"
)

const defaultExcerpt = 200

// InspectResult is the JSON payload for the inspect command.
type InspectResult struct {
	File    string `json:"file"`
	Pages   int    `json:"pages"`
	Excerpt string `json:"excerpt,omitempty"`
}

// NewInspectCommand creates the inspect command. It runs the same checks the
// API applies to uploads.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Validate a PDF and print its page count and a text excerpt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			data, err := os.ReadFile(args[0])
			if err != nil {
				return f.Fail(ExitCommandError, "read pdf", err)
			}
			info, err := pdfmeta.Inspect(data)
			if err != nil {
				return f.Fail(ExitFailure, "inspect pdf", err)
			}
			res := InspectResult{File: args[0], Pages: info.Pages}
			if limit > 0 {
				text, err := pdfmeta.ExtractText(data)
				if err != nil {
					return f.Fail(ExitFailure, "extract text", err)
				}
				res.Excerpt = excerpt(text, limit)
			}
			return f.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "file: %s\n", res.File)
				fmt.Fprintf(w, "pages: %d\n", res.Pages)
				if res.Excerpt != "" {
					fmt.Fprintf(w, "text: %s\n", res.Excerpt)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "excerpt", defaultExcerpt, "characters of text to print (0 disables)")
	return cmd
}

// excerpt collapses whitespace and cuts text to at most limit runes.
func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "…"
}
