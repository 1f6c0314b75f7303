package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"docsign-backend/internal/signing"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode extracts the exit code from err. Errors that are not ExitError
// map to ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope written in json mode.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OutputFormatter renders results as JSON envelopes or plain text.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success writes data; text mode delegates to render.
func (f *OutputFormatter) Success(data any, render func(io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	render(f.Writer)
	return nil
}

// Fail writes err in the configured format and returns it as an ExitError.
func (f *OutputFormatter) Fail(code int, message string, err error) error {
	exitErr := &ExitError{Code: code, Message: message, Err: err}
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: exitErr.Error()})
	} else {
		fmt.Fprintf(f.Writer, "error: %s\n", exitErr.Error())
	}
	return exitErr
}

// writeSteps prints one line per signer step followed by the viewers.
func writeSteps(w io.Writer, list []signing.Assignment) {
	for _, g := range signing.Groups(list) {
		names := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			name := label(m)
			if m.HasSigned {
				name += " (signed)"
			}
			names = append(names, name)
		}
		line := fmt.Sprintf("step %d: %s", g.Step, strings.Join(names, ", "))
		if g.Parallel {
			line += " (parallel)"
		}
		fmt.Fprintln(w, line)
	}
	var viewers []string
	for _, a := range list {
		if !a.Signs() {
			viewers = append(viewers, label(a))
		}
	}
	if len(viewers) > 0 {
		fmt.Fprintf(w, "viewers: %s\n", strings.Join(viewers, ", "))
	}
}

func writeTurn(w io.Writer, user string, turn signing.Turn) {
	fmt.Fprintf(w, "user: %s\n", user)
	if turn.ActiveStep > 0 {
		fmt.Fprintf(w, "active step: %d\n", turn.ActiveStep)
	} else {
		fmt.Fprintln(w, "active step: none")
	}
	fmt.Fprintf(w, "progress: %d/%d\n", turn.Signed, turn.Total)
	fmt.Fprintf(w, "turn: %s\n", yesNo(turn.IsUsersTurn))
	if turn.Done {
		fmt.Fprintln(w, "done: yes")
	}
	if len(turn.Blocking) > 0 {
		names := make([]string, 0, len(turn.Blocking))
		for _, a := range turn.Blocking {
			names = append(names, label(a))
		}
		fmt.Fprintf(w, "waiting on: %s\n", strings.Join(names, ", "))
	}
}

func label(a signing.Assignment) string {
	if a.Username != "" {
		return a.Username
	}
	return a.UserID
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
