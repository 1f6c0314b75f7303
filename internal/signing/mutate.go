package signing

import "time"

// MoveUp swaps the entry at index with the one before it. Out of range
// indices, including 0, leave the order unchanged.
func MoveUp(list []Assignment, index int) []Assignment {
	out := clone(list)
	if index <= 0 || index >= len(out) {
		return Renumber(out)
	}
	out[index-1], out[index] = out[index], out[index-1]
	return Renumber(out)
}

// MoveDown swaps the entry at index with the one after it. Out of range
// indices, including the last one, leave the order unchanged.
func MoveDown(list []Assignment, index int) []Assignment {
	out := clone(list)
	if index < 0 || index >= len(out)-1 {
		return Renumber(out)
	}
	out[index], out[index+1] = out[index+1], out[index]
	return Renumber(out)
}

// Reorder removes the entry at from and reinserts it at to, shifting the
// entries in between. A stale from is ignored; to is clamped into range.
func Reorder(list []Assignment, from, to int) []Assignment {
	out := clone(list)
	if from < 0 || from >= len(out) {
		return Renumber(out)
	}
	if to < 0 {
		to = 0
	}
	if to > len(out)-1 {
		to = len(out) - 1
	}
	if from == to {
		return Renumber(out)
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Assignment{moved}, out[to:]...)...)
	return Renumber(out)
}

// ToggleParallel flips the parallel flag of userID's entry in place.
// Unknown users leave the list unchanged.
func ToggleParallel(list []Assignment, userID string) []Assignment {
	out := clone(list)
	if i := Index(out, userID); i >= 0 {
		out[i].Parallel = !out[i].Parallel
	}
	return Renumber(out)
}

// SetParallel forces the parallel flag of userID's entry.
func SetParallel(list []Assignment, userID string, parallel bool) []Assignment {
	out := clone(list)
	if i := Index(out, userID); i >= 0 {
		out[i].Parallel = parallel
	}
	return Renumber(out)
}

// SetAssignments reconciles the perm tier of list against selected. Entries of
// that tier whose user is no longer selected are removed, surviving entries
// keep their position and data, and newly selected users are appended in
// selection order as sequential, unsigned entries. Entries of other tiers are
// left where they are. Duplicate selections are ignored.
func SetAssignments(list []Assignment, selected []Candidate, perm Permission) []Assignment {
	want := make(map[string]struct{}, len(selected))
	for _, c := range selected {
		if c.UserID == "" {
			continue
		}
		want[c.UserID] = struct{}{}
	}

	out := make([]Assignment, 0, len(list)+len(selected))
	present := make(map[string]struct{}, len(list))
	for _, a := range list {
		if a.Permission == perm {
			if _, ok := want[a.UserID]; !ok {
				continue
			}
		}
		if _, dup := present[a.UserID]; dup {
			continue
		}
		present[a.UserID] = struct{}{}
		out = append(out, copyAssignment(a))
	}

	for _, c := range selected {
		if c.UserID == "" {
			continue
		}
		if _, ok := present[c.UserID]; ok {
			continue
		}
		present[c.UserID] = struct{}{}
		out = append(out, Assignment{
			UserID:     c.UserID,
			Username:   c.Username,
			Email:      c.Email,
			Permission: perm,
		})
	}
	return Renumber(out)
}

// Remove drops userID's entry.
func Remove(list []Assignment, userID string) []Assignment {
	out := make([]Assignment, 0, len(list))
	for _, a := range list {
		if a.UserID == userID {
			continue
		}
		out = append(out, copyAssignment(a))
	}
	return Renumber(out)
}

// MarkSigned records a signing completion for userID. It reports false when
// the user has no signer entry or had already signed; an existing SignedAt is
// never overwritten.
func MarkSigned(list []Assignment, userID string, at time.Time) ([]Assignment, bool) {
	out := clone(list)
	i := Index(out, userID)
	if i < 0 || !out[i].Signs() || out[i].HasSigned {
		return Renumber(out), false
	}
	signedAt := at.UTC()
	out[i].HasSigned = true
	out[i].SignedAt = &signedAt
	return Renumber(out), true
}
