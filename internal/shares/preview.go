package shares

import (
	"fmt"
	"strings"

	"docsign-backend/internal/signing"
)

// Operation names accepted by Preview.
const (
	OpMoveUp         = "moveUp"
	OpMoveDown       = "moveDown"
	OpReorder        = "reorder"
	OpToggleParallel = "toggleParallel"
	OpSetAssignments = "setAssignments"
	OpRenumber       = "renumber"
	OpRemove         = "remove"
	OpSetParallel    = "setParallel"
)

// Operation is one edit made in the share dialog. Index and To address the
// signer list; stale values leave the list unchanged.
type Operation struct {
	Op         string              `json:"op"`
	Index      int                 `json:"index"`
	To         int                 `json:"to"`
	UserID     string              `json:"userId,omitempty"`
	Users      []signing.Candidate `json:"users,omitempty"`
	Permission string              `json:"permission,omitempty"`
	Parallel   bool                `json:"parallel,omitempty"`
}

type PreviewRequest struct {
	Assignments []signing.Assignment
	Operations  []Operation
	// UserID selects whose turn is derived in the result.
	UserID string
}

type PreviewResult struct {
	Signers []signing.Assignment `json:"signers"`
	Viewers []signing.Assignment `json:"viewers"`
	Turn    signing.Turn         `json:"turn"`
}

// Preview applies dialog edits to an unsaved list. Only an unknown operation
// name is an error.
func Preview(req PreviewRequest) (PreviewResult, error) {
	roster := signing.NewRoster(req.Assignments)
	for i, op := range req.Operations {
		switch strings.TrimSpace(op.Op) {
		case OpMoveUp:
			roster.Signers = signing.MoveUp(roster.Signers, op.Index)
		case OpMoveDown:
			roster.Signers = signing.MoveDown(roster.Signers, op.Index)
		case OpReorder:
			roster.Signers = signing.Reorder(roster.Signers, op.Index, op.To)
		case OpToggleParallel:
			roster.Signers = signing.ToggleParallel(roster.Signers, op.UserID)
		case OpSetAssignments:
			perm := signing.PermissionViewAndSign
			if op.Permission != "" {
				parsed, ok := signing.ParsePermission(op.Permission)
				if !ok {
					return PreviewResult{}, fmt.Errorf("%w: operation %d: unknown permission %q", ErrInvalidInput, i, op.Permission)
				}
				perm = parsed
			}
			roster = roster.SetAssignments(op.Users, perm)
		case OpSetParallel:
			roster.Signers = signing.SetParallel(roster.Signers, op.UserID, op.Parallel)
		case OpRemove:
			roster.Signers = signing.Remove(roster.Signers, op.UserID)
			roster.Viewers = signing.Remove(roster.Viewers, op.UserID)
		case OpRenumber:
			roster.Signers = signing.Renumber(roster.Signers)
		default:
			return PreviewResult{}, fmt.Errorf("%w: operation %d: unknown op %q", ErrInvalidInput, i, op.Op)
		}
	}

	res := PreviewResult{
		Signers: roster.Signers,
		Viewers: roster.Viewers,
		Turn:    signing.Derive(roster.Signers, req.UserID),
	}
	if res.Signers == nil {
		res.Signers = []signing.Assignment{}
	}
	if res.Viewers == nil {
		res.Viewers = []signing.Assignment{}
	}
	return res, nil
}
