package signing

// Renumber returns a copy of list with steps reassigned in a single left to
// right scan. Each maximal run of adjacent parallel signers receives one step;
// a non-parallel signer always starts a step of its own. Steps start at 1 and
// have no gaps. View-only entries get step 0 and are transparent to runs.
// Nothing but Step is modified.
func Renumber(list []Assignment) []Assignment {
	out := clone(list)
	step := 1
	i := 0
	for i < len(out) {
		if !out[i].Signs() {
			out[i].Step = 0
			i++
			continue
		}
		if !out[i].Parallel {
			out[i].Step = step
			step++
			i++
			continue
		}
		j := i
		for j < len(out) && (!out[j].Signs() || out[j].Parallel) {
			if out[j].Signs() {
				out[j].Step = step
			} else {
				out[j].Step = 0
			}
			j++
		}
		i = j
		step++
	}
	return out
}

// Group is one signer step and its members in list order.
type Group struct {
	Step     int          `json:"step"`
	Parallel bool         `json:"parallel"`
	Members  []Assignment `json:"members"`
}

// Groups renumbers list and collects signers by step.
func Groups(list []Assignment) []Group {
	var groups []Group
	for _, a := range Renumber(list) {
		if !a.Signs() {
			continue
		}
		if n := len(groups); n > 0 && groups[n-1].Step == a.Step {
			groups[n-1].Members = append(groups[n-1].Members, a)
			groups[n-1].Parallel = true
			continue
		}
		groups = append(groups, Group{Step: a.Step, Parallel: a.Parallel, Members: []Assignment{a}})
	}
	return groups
}

// StepCount returns the number of distinct steps after renumbering.
func StepCount(list []Assignment) int {
	max := 0
	for _, a := range Renumber(list) {
		if a.Step > max {
			max = a.Step
		}
	}
	return max
}
