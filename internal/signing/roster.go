package signing

// Roster holds a document's participants split by tier. Signers are ordered
// and numbered; viewers are tracked separately and never get a step.
type Roster struct {
	Signers []Assignment `json:"signers"`
	Viewers []Assignment `json:"viewers"`
}

// NewRoster splits a mixed list into tiers, keeping relative order and
// dropping duplicate users.
func NewRoster(list []Assignment) Roster {
	var r Roster
	for _, a := range Dedupe(list) {
		switch a.Permission {
		case PermissionViewAndSign:
			r.Signers = append(r.Signers, a)
		case PermissionView:
			a.Step = 0
			a.Parallel = false
			r.Viewers = append(r.Viewers, a)
		}
	}
	r.Signers = Renumber(r.Signers)
	return r
}

// All returns signers followed by viewers.
func (r Roster) All() []Assignment {
	out := make([]Assignment, 0, len(r.Signers)+len(r.Viewers))
	out = append(out, clone(r.Signers)...)
	out = append(out, clone(r.Viewers)...)
	return out
}

// Find returns userID's entry from either tier.
func (r Roster) Find(userID string) (Assignment, bool) {
	if i := Index(r.Signers, userID); i >= 0 {
		return copyAssignment(r.Signers[i]), true
	}
	if i := Index(r.Viewers, userID); i >= 0 {
		return copyAssignment(r.Viewers[i]), true
	}
	return Assignment{}, false
}

// SetAssignments reconciles one tier against selected. A user lives in one
// tier only, so selecting a user here removes them from the other tier.
func (r Roster) SetAssignments(selected []Candidate, perm Permission) Roster {
	claimed := make(map[string]struct{}, len(selected))
	for _, c := range selected {
		claimed[c.UserID] = struct{}{}
	}
	without := func(list []Assignment) []Assignment {
		out := make([]Assignment, 0, len(list))
		for _, a := range list {
			if _, ok := claimed[a.UserID]; ok {
				continue
			}
			out = append(out, copyAssignment(a))
		}
		return out
	}

	switch perm {
	case PermissionViewAndSign:
		return Roster{
			Signers: SetAssignments(r.Signers, selected, perm),
			Viewers: without(r.Viewers),
		}
	case PermissionView:
		return Roster{
			Signers: Renumber(without(r.Signers)),
			Viewers: SetAssignments(r.Viewers, selected, perm),
		}
	default:
		return Roster{Signers: Renumber(r.Signers), Viewers: clone(r.Viewers)}
	}
}
