package signing

// ActiveStep returns the lowest step that still has an unsigned signer.
// The list is expected to be renumbered. ok is false when every signer has
// signed or there are no signers.
func ActiveStep(list []Assignment) (step int, ok bool) {
	for _, a := range list {
		if !a.Signs() || a.HasSigned || a.Step <= 0 {
			continue
		}
		if !ok || a.Step < step {
			step = a.Step
			ok = true
		}
	}
	return step, ok
}

// IsUsersTurn reports whether userID is an unsigned member of the active step.
// Members of later steps wait for every lower step to finish.
func IsUsersTurn(list []Assignment, userID string) bool {
	active, ok := ActiveStep(list)
	if !ok {
		return false
	}
	for _, a := range list {
		if a.UserID == userID && a.Signs() && !a.HasSigned && a.Step == active {
			return true
		}
	}
	return false
}

// Progress counts signed and total signers.
func Progress(list []Assignment) (signed, total int) {
	for _, a := range list {
		if !a.Signs() {
			continue
		}
		total++
		if a.HasSigned {
			signed++
		}
	}
	return signed, total
}

// Completed reports whether there is at least one signer and all have signed.
func Completed(list []Assignment) bool {
	signed, total := Progress(list)
	return total > 0 && signed == total
}

// BlockingUsers returns the unsigned members of step, in list order.
func BlockingUsers(list []Assignment, step int) []Assignment {
	var out []Assignment
	for _, a := range list {
		if a.Signs() && a.Step == step && !a.HasSigned {
			out = append(out, copyAssignment(a))
		}
	}
	return out
}

// Turn is the derived view of a renumbered list for one user.
type Turn struct {
	ActiveStep  int          `json:"activeStep,omitempty"`
	Done        bool         `json:"done"`
	Signed      int          `json:"signed"`
	Total       int          `json:"total"`
	IsUsersTurn bool         `json:"isUsersTurn"`
	Blocking    []Assignment `json:"blocking,omitempty"`
}

// Derive renumbers list and computes the turn view for userID.
func Derive(list []Assignment, userID string) Turn {
	renumbered := Renumber(list)
	var t Turn
	t.Signed, t.Total = Progress(renumbered)
	step, ok := ActiveStep(renumbered)
	if !ok {
		t.Done = t.Total > 0
		return t
	}
	t.ActiveStep = step
	t.IsUsersTurn = IsUsersTurn(renumbered, userID)
	t.Blocking = BlockingUsers(renumbered, step)
	return t
}
