package game

import "sort"

// Tally collects one voting phase's votes. A voter's second cast
// overwrites the first.
type Tally struct {
	votes map[string]string
	// controls maps a controlled voter to the player whose vote replaces
	// theirs at the close (the vote_control card).
	controls map[string]string
}

func newTally() *Tally {
	return &Tally{
		votes:    make(map[string]string),
		controls: make(map[string]string),
	}
}

func (t *Tally) Cast(voter, target string) {
	t.votes[voter] = target
}

func (t *Tally) Control(voter, controller string) {
	t.controls[voter] = controller
}

func (t *Tally) Len() int {
	return len(t.votes)
}

// Counts returns votes per target, before control resolution.
func (t *Tally) Counts() map[string]int {
	out := make(map[string]int)
	for _, target := range t.votes {
		out[target]++
	}
	return out
}

// ByTarget inverts the ballot into target -> sorted voter ids, the shape
// snapshots carry.
func (t *Tally) ByTarget() map[string][]string {
	out := make(map[string][]string)
	for voter, target := range t.votes {
		out[target] = append(out[target], voter)
	}
	for _, voters := range out {
		sort.Strings(voters)
	}
	return out
}

// VoteOutcome is the result of closing a voting phase.
type VoteOutcome struct {
	Eliminated string
	Counts     map[string]int
	Tied       bool
}

// Close resolves the ballot. Controlled voters take on their controller's
// final vote first (a controller who never voted releases the control).
// The target with strictly the most votes is eliminated; a tie or an
// empty ballot eliminates nobody. Only votes from and for players the
// alive predicate accepts are counted.
func (t *Tally) Close(alive func(id string) bool) VoteOutcome {
	resolved := make(map[string]string, len(t.votes))
	for voter, target := range t.votes {
		resolved[voter] = target
	}
	for voter, controller := range t.controls {
		if !alive(voter) {
			continue
		}
		if target, ok := t.votes[controller]; ok {
			resolved[voter] = target
		}
	}

	counts := make(map[string]int)
	for voter, target := range resolved {
		if alive(voter) && alive(target) {
			counts[target]++
		}
	}

	out := VoteOutcome{Counts: counts}
	if len(counts) == 0 {
		return out
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	var leaders []string
	for target, n := range counts {
		if n == max {
			leaders = append(leaders, target)
		}
	}
	if len(leaders) == 1 {
		out.Eliminated = leaders[0]
		return out
	}
	out.Tied = true
	return out
}
