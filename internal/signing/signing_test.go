package signing

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signer(id string, parallel bool) Assignment {
	return Assignment{UserID: id, Parallel: parallel, Permission: PermissionViewAndSign}
}

func viewer(id string) Assignment {
	return Assignment{UserID: id, Permission: PermissionView}
}

func steps(list []Assignment) []int {
	out := make([]int, len(list))
	for i, a := range list {
		out[i] = a.Step
	}
	return out
}

func ids(list []Assignment) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.UserID
	}
	return out
}

func randomList(r *rand.Rand) []Assignment {
	n := r.Intn(9)
	list := make([]Assignment, n)
	for i := range list {
		perm := PermissionViewAndSign
		if r.Intn(5) == 0 {
			perm = PermissionView
		}
		list[i] = Assignment{
			UserID:     string(rune('a' + i)),
			Step:       r.Intn(7) - 2,
			Parallel:   r.Intn(2) == 0,
			HasSigned:  r.Intn(3) == 0,
			Permission: perm,
		}
	}
	return list
}

func signersOf(list []Assignment) []Assignment {
	var out []Assignment
	for _, a := range list {
		if a.Signs() {
			out = append(out, a)
		}
	}
	return out
}

func TestRenumberMixedRun(t *testing.T) {
	got := Renumber([]Assignment{signer("A", false), signer("B", true), signer("C", true)})
	assert.Equal(t, []int{1, 2, 2}, steps(got))
}

func TestRenumberIsolatedParallelKeepsOwnStep(t *testing.T) {
	list := []Assignment{signer("A", false), signer("B", false), signer("C", false)}
	before := Renumber(list)
	require.Equal(t, []int{1, 2, 3}, steps(before))

	after := ToggleParallel(before, "B")
	assert.True(t, after[1].Parallel)
	assert.Equal(t, []int{1, 2, 3}, steps(after))
}

func TestRenumberDoesNotMergeAcrossSequentialEntry(t *testing.T) {
	got := Renumber([]Assignment{signer("A", true), signer("B", false), signer("C", true), signer("D", true)})
	assert.Equal(t, []int{1, 2, 3, 3}, steps(got))
}

func TestRenumberSkipsViewers(t *testing.T) {
	got := Renumber([]Assignment{signer("A", true), viewer("V"), signer("B", true), signer("C", false)})
	assert.Equal(t, []int{1, 0, 1, 2}, steps(got))
}

func TestRenumberLeavesOtherFieldsAlone(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := []Assignment{{UserID: "A", Username: "alice", Email: "a@x", Step: 9, HasSigned: true, SignedAt: &at, Permission: PermissionViewAndSign}}
	got := Renumber(in)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Step)
	assert.Equal(t, "alice", got[0].Username)
	assert.True(t, got[0].HasSigned)
	require.NotNil(t, got[0].SignedAt)
	assert.True(t, at.Equal(*got[0].SignedAt))
	assert.Equal(t, 9, in[0].Step, "input must not be mutated")
}

func TestRenumberProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		in := randomList(r)
		out := Renumber(in)
		require.Equal(t, ids(in), ids(out))

		// contiguity
		seen := map[int]struct{}{}
		for _, a := range signersOf(out) {
			seen[a.Step] = struct{}{}
		}
		var distinct []int
		for s := range seen {
			distinct = append(distinct, s)
		}
		sort.Ints(distinct)
		for i, s := range distinct {
			require.Equal(t, i+1, s, "steps must be contiguous from 1: %v", steps(out))
		}

		// adjacent signers share a step iff both are parallel
		sig := signersOf(out)
		for i := 1; i < len(sig); i++ {
			same := sig[i-1].Step == sig[i].Step
			require.Equal(t, sig[i-1].Parallel && sig[i].Parallel, same)
		}

		// idempotence
		require.Equal(t, out, Renumber(out))

		// turn exclusivity
		active, ok := ActiveStep(out)
		for _, a := range out {
			if IsUsersTurn(out, a.UserID) {
				require.True(t, ok)
				require.Equal(t, active, a.Step)
				require.False(t, a.HasSigned)
			}
		}
	}
}

func TestMutationsNeverUnsign(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 300; iter++ {
		in := randomList(r)
		signed := map[string]bool{}
		for _, a := range in {
			if a.HasSigned {
				signed[a.UserID] = true
			}
		}
		check := func(out []Assignment) {
			for _, a := range out {
				if signed[a.UserID] {
					require.True(t, a.HasSigned, "user %s lost signature", a.UserID)
				}
			}
		}
		idx := r.Intn(len(in)+2) - 1
		check(MoveUp(in, idx))
		check(MoveDown(in, idx))
		check(Reorder(in, idx, r.Intn(len(in)+2)-1))
		if len(in) > 0 {
			check(ToggleParallel(in, in[r.Intn(len(in))].UserID))
		}
		check(SetAssignments(in, []Candidate{{UserID: "a"}, {UserID: "z"}}, PermissionViewAndSign))
	}
}

func TestMoveDownOnLastIndexIsNoop(t *testing.T) {
	list := Renumber([]Assignment{signer("A", false), signer("B", true), signer("C", true)})
	got := MoveDown(list, len(list)-1)
	assert.Equal(t, list, got)
}

func TestMoveUpOnFirstIndexIsNoop(t *testing.T) {
	list := Renumber([]Assignment{signer("A", false), signer("B", false)})
	assert.Equal(t, list, MoveUp(list, 0))
	assert.Equal(t, list, MoveUp(list, 17))
	assert.Equal(t, list, MoveDown(list, -3))
}

func TestMoveUpSwapsAndRenumbers(t *testing.T) {
	list := Renumber([]Assignment{signer("A", false), signer("B", true), signer("C", false), signer("D", true)})
	got := MoveUp(list, 2)
	assert.Equal(t, []string{"A", "C", "B", "D"}, ids(got))
	assert.Equal(t, []int{1, 2, 3, 3}, steps(got))
}

func TestReorderIsAMoveNotASwap(t *testing.T) {
	list := Renumber([]Assignment{signer("A", false), signer("B", false), signer("C", false), signer("D", false)})

	got := Reorder(list, 0, 2)
	assert.Equal(t, []string{"B", "C", "A", "D"}, ids(got))
	assert.Equal(t, []int{1, 2, 3, 4}, steps(got))

	got = Reorder(list, 3, 1)
	assert.Equal(t, []string{"A", "D", "B", "C"}, ids(got))
}

func TestReorderStaleIndices(t *testing.T) {
	list := Renumber([]Assignment{signer("A", false), signer("B", false), signer("C", false)})
	assert.Equal(t, list, Reorder(list, 5, 0))
	assert.Equal(t, list, Reorder(list, -1, 0))
	assert.Equal(t, []string{"B", "C", "A"}, ids(Reorder(list, 0, 99)))
	assert.Equal(t, []string{"C", "A", "B"}, ids(Reorder(list, 2, -4)))
}

func TestToggleParallelMergesNeighbours(t *testing.T) {
	list := Renumber([]Assignment{signer("A", true), signer("B", false), signer("C", true)})
	require.Equal(t, []int{1, 2, 3}, steps(list))

	merged := ToggleParallel(list, "B")
	assert.Equal(t, []int{1, 1, 1}, steps(merged))

	split := ToggleParallel(merged, "B")
	assert.Equal(t, []int{1, 2, 3}, steps(split))

	assert.Equal(t, list, ToggleParallel(list, "nobody"))
}

func TestSetAssignmentsRemovesAndCompresses(t *testing.T) {
	list := Renumber([]Assignment{signer("A", false), signer("B", false), signer("C", false)})
	got := SetAssignments(list, []Candidate{{UserID: "A"}, {UserID: "C"}}, PermissionViewAndSign)
	assert.Equal(t, []string{"A", "C"}, ids(got))
	assert.Equal(t, []int{1, 2}, steps(got))
}

func TestSetAssignmentsAppendsAndKeepsState(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	list := Renumber([]Assignment{
		{UserID: "A", Username: "alice", Parallel: true, HasSigned: true, SignedAt: &at, Permission: PermissionViewAndSign},
		signer("B", true),
	})
	got := SetAssignments(list, []Candidate{
		{UserID: "B"},
		{UserID: "D", Username: "dora", Email: "d@x"},
		{UserID: "A", Username: "renamed"},
		{UserID: "D"},
	}, PermissionViewAndSign)

	require.Equal(t, []string{"A", "B", "D"}, ids(got))
	assert.Equal(t, []int{1, 1, 2}, steps(got))
	assert.Equal(t, "alice", got[0].Username)
	assert.True(t, got[0].HasSigned)
	assert.True(t, got[0].Parallel)
	assert.False(t, got[2].Parallel)
	assert.False(t, got[2].HasSigned)
	assert.Equal(t, "dora", got[2].Username)
}

func TestRosterTiersAreExclusive(t *testing.T) {
	r := NewRoster([]Assignment{signer("A", false), viewer("V"), signer("B", false), signer("A", true)})
	require.Equal(t, []string{"A", "B"}, ids(r.Signers))
	require.Equal(t, []string{"V"}, ids(r.Viewers))

	r = r.SetAssignments([]Candidate{{UserID: "V"}, {UserID: "B"}}, PermissionView)
	assert.Equal(t, []string{"A"}, ids(r.Signers))
	assert.Equal(t, []int{1}, steps(r.Signers))
	assert.Equal(t, []string{"V", "B"}, ids(r.Viewers))
	assert.Equal(t, []int{0, 0}, steps(r.Viewers))

	r = r.SetAssignments([]Candidate{{UserID: "A"}, {UserID: "V"}}, PermissionViewAndSign)
	assert.Equal(t, []string{"A", "V"}, ids(r.Signers))
	assert.Equal(t, []int{1, 2}, steps(r.Signers))
	assert.Equal(t, []string{"B"}, ids(r.Viewers))

	_, ok := r.Find("B")
	assert.True(t, ok)
	_, ok = r.Find("Z")
	assert.False(t, ok)
}

func TestTurnDerivation(t *testing.T) {
	now := time.Now()
	list := Renumber([]Assignment{signer("A", false), signer("B", true), signer("C", true), signer("D", false)})

	step, ok := ActiveStep(list)
	require.True(t, ok)
	assert.Equal(t, 1, step)
	assert.True(t, IsUsersTurn(list, "A"))
	assert.False(t, IsUsersTurn(list, "B"))

	list, changed := MarkSigned(list, "A", now)
	require.True(t, changed)
	step, _ = ActiveStep(list)
	assert.Equal(t, 2, step)
	assert.False(t, IsUsersTurn(list, "A"), "earlier completed steps are not current")
	assert.True(t, IsUsersTurn(list, "B"))
	assert.True(t, IsUsersTurn(list, "C"))
	assert.False(t, IsUsersTurn(list, "D"))

	list, _ = MarkSigned(list, "C", now)
	assert.Equal(t, []string{"B"}, ids(BlockingUsers(list, 2)))
	assert.False(t, IsUsersTurn(list, "D"))

	signed, total := Progress(list)
	assert.Equal(t, 2, signed)
	assert.Equal(t, 4, total)

	list, _ = MarkSigned(list, "B", now)
	list, _ = MarkSigned(list, "D", now)
	_, ok = ActiveStep(list)
	assert.False(t, ok)
	assert.True(t, Completed(list))
	assert.False(t, IsUsersTurn(list, "D"))
}

func TestMarkSignedIsMonotonic(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	list := Renumber([]Assignment{signer("A", false), viewer("V")})

	list, changed := MarkSigned(list, "A", first)
	require.True(t, changed)
	list, changed = MarkSigned(list, "A", first.Add(time.Hour))
	assert.False(t, changed)
	assert.True(t, first.Equal(*list[0].SignedAt))

	_, changed = MarkSigned(list, "V", first)
	assert.False(t, changed)
	_, changed = MarkSigned(list, "nobody", first)
	assert.False(t, changed)
}

func TestDeriveTurn(t *testing.T) {
	list := []Assignment{signer("A", true), signer("B", true), signer("C", false)}
	turn := Derive(list, "B")
	assert.Equal(t, 1, turn.ActiveStep)
	assert.True(t, turn.IsUsersTurn)
	assert.Equal(t, 0, turn.Signed)
	assert.Equal(t, 3, turn.Total)
	assert.Equal(t, []string{"A", "B"}, ids(turn.Blocking))
	assert.False(t, turn.Done)

	assert.False(t, Derive(nil, "A").Done)
}

func TestGroups(t *testing.T) {
	groups := Groups([]Assignment{signer("A", false), signer("B", true), signer("C", true), viewer("V"), signer("D", true)})
	require.Len(t, groups, 2)
	assert.Equal(t, 1, groups[0].Step)
	assert.False(t, groups[0].Parallel)
	assert.Equal(t, []string{"B", "C", "D"}, ids(groups[1].Members))
	assert.True(t, groups[1].Parallel)
	assert.Equal(t, 2, StepCount([]Assignment{signer("A", false), signer("B", false)}))
}
