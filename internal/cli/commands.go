package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"docsign-backend/internal/signing"
)

// ListResult is the JSON payload for commands that print a list.
type ListResult struct {
	Assignments []signing.Assignment `json:"assignments"`
	Steps       int                  `json:"steps"`
}

// TurnResult is the JSON payload for the turn command.
type TurnResult struct {
	User string       `json:"user"`
	Turn signing.Turn `json:"turn"`
}

// NewRenumberCommand creates the renumber command.
func NewRenumberCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "renumber",
		Short: "Print the plan with steps renumbered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := formatter(rootOpts, cmd)
			list, err := LoadPlan(rootOpts.File)
			if err != nil {
				return f.Fail(ExitCommandError, "load plan", err)
			}
			return emitList(f, signing.Renumber(list))
		},
	}
}

type applyOptions struct {
	Op    string
	Index int
	To    int
	User  string
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply one ordering operation and print the result",
		Long: `Apply one ordering operation to the plan:

  moveUp    --index N          swap entry N with the one before it
  moveDown  --index N          swap entry N with the one after it
  reorder   --index N --to M   move entry N to position M
  toggle    --user U           flip U's parallel flag (or --index N)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := formatter(rootOpts, cmd)
			list, err := LoadPlan(rootOpts.File)
			if err != nil {
				return f.Fail(ExitCommandError, "load plan", err)
			}
			out, err := applyOp(list, opts, cmd)
			if err != nil {
				return f.Fail(ExitCommandError, "apply", err)
			}
			return emitList(f, out)
		},
	}
	cmd.Flags().StringVar(&opts.Op, "op", "", "operation (moveUp|moveDown|reorder|toggle)")
	cmd.Flags().IntVar(&opts.Index, "index", -1, "zero-based entry index")
	cmd.Flags().IntVar(&opts.To, "to", -1, "target index for reorder")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id for toggle")
	_ = cmd.MarkFlagRequired("op")
	return cmd
}

func applyOp(list []signing.Assignment, opts *applyOptions, cmd *cobra.Command) ([]signing.Assignment, error) {
	needIndex := func() error {
		if !cmd.Flags().Changed("index") {
			return fmt.Errorf("--index is required for %s", opts.Op)
		}
		return nil
	}
	switch strings.ToLower(opts.Op) {
	case "moveup":
		if err := needIndex(); err != nil {
			return nil, err
		}
		return signing.MoveUp(list, opts.Index), nil
	case "movedown":
		if err := needIndex(); err != nil {
			return nil, err
		}
		return signing.MoveDown(list, opts.Index), nil
	case "reorder":
		if err := needIndex(); err != nil {
			return nil, err
		}
		if !cmd.Flags().Changed("to") {
			return nil, fmt.Errorf("--to is required for reorder")
		}
		return signing.Reorder(list, opts.Index, opts.To), nil
	case "toggle":
		user := strings.TrimSpace(opts.User)
		if user == "" && cmd.Flags().Changed("index") && opts.Index >= 0 && opts.Index < len(list) {
			user = list[opts.Index].UserID
		}
		if user == "" {
			return nil, fmt.Errorf("--user or a valid --index is required for toggle")
		}
		return signing.ToggleParallel(list, user), nil
	default:
		return nil, fmt.Errorf("unknown op %q", opts.Op)
	}
}

// NewTurnCommand creates the turn command.
func NewTurnCommand(rootOpts *RootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Show the active step and whether it is a user's turn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := formatter(rootOpts, cmd)
			list, err := LoadPlan(rootOpts.File)
			if err != nil {
				return f.Fail(ExitCommandError, "load plan", err)
			}
			turn := signing.Derive(list, user)
			return f.Success(TurnResult{User: user, Turn: turn}, func(w io.Writer) {
				writeTurn(w, user, turn)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to check")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func emitList(f *OutputFormatter, list []signing.Assignment) error {
	renumbered := signing.Renumber(list)
	result := ListResult{Assignments: renumbered, Steps: signing.StepCount(renumbered)}
	return f.Success(result, func(w io.Writer) {
		writeSteps(w, renumbered)
	})
}

func formatter(rootOpts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
}
