package family

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/dukerupert/lineage/internal/model"
)

// DefaultDecoyCount is the number of wrong answers mixed into a challenge.
const DefaultDecoyCount = 3

// DefaultRootRoles are the roles that mark a family's founding member.
var DefaultRootRoles = []string{"Patriarca", "Matriarca"}

// Rand is the randomness a challenge draws from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) IntN(n int) int                     { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// ChallengeOptions tunes BuildChallenge.
type ChallengeOptions struct {
	// DecoyCount is the number of wrong answers. Zero or a negative value
	// means DefaultDecoyCount; configuration rejects values below 1.
	DecoyCount int
	// RootFallback makes the family root the expected answer for a member
	// with no parent.
	RootFallback bool
	// RootRoles identify the family root when RootFallback is set and
	// FallbackRootID is nil. Nil means DefaultRootRoles.
	RootRoles []string
	// FallbackRootID, when set, is used as the family root directly.
	FallbackRootID *int64
	// Rand defaults to the math/rand/v2 global source.
	Rand Rand
}

// Challenge asks a member to pick their parent out of Options.
type Challenge struct {
	Options    []int64 `json:"options"`
	CorrectIDs IDSet   `json:"-"`
}

// Check reports whether selected is a correct answer.
func (c Challenge) Check(selected int64) bool {
	return c.CorrectIDs.Has(selected)
}

// BuildChallenge builds an identity challenge for currentID: the correct
// parent mixed with decoys drawn uniformly from the rest of the family, in a
// uniformly random order.
func (s *Snapshot) BuildChallenge(currentID int64, opts ChallengeOptions) (Challenge, error) {
	cur, ok := s.Member(currentID)
	if !ok {
		return Challenge{}, fmt.Errorf("member %d: %w", currentID, ErrNotFound)
	}

	decoys := opts.DecoyCount
	if decoys <= 0 {
		decoys = DefaultDecoyCount
	}
	rng := opts.Rand
	if rng == nil {
		rng = globalRand{}
	}

	correct := IDSet{}
	if p, ok := s.parentOf(cur); ok {
		correct[p.ID] = struct{}{}
	} else if opts.RootFallback {
		if root, ok := s.familyRoot(cur, opts); ok {
			correct[root] = struct{}{}
		}
	}

	var pool []int64
	for _, m := range s.FamilyMembers(cur.FamilyID) {
		if m.ID == currentID || correct.Has(m.ID) {
			continue
		}
		pool = append(pool, m.ID)
	}

	if len(pool) == 0 && len(correct) == 0 {
		return Challenge{}, fmt.Errorf("member %d: %w", currentID, ErrChallengeExhausted)
	}

	n := min(decoys, len(pool))
	// Partial Fisher-Yates: the first n slots become a uniform sample.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	options := make([]int64, 0, len(correct)+n)
	options = append(options, correct.Sorted()...)
	options = append(options, pool[:n]...)
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Challenge{Options: options, CorrectIDs: correct}, nil
}

// FamilyRoot picks the founding member of familyID: the first member holding
// one of roles, else the first member without a parent.
func (s *Snapshot) FamilyRoot(familyID int64, roles []string) (model.Member, bool) {
	if roles == nil {
		roles = DefaultRootRoles
	}
	members := s.FamilyMembers(familyID)
	for _, m := range members {
		if slices.Contains(roles, m.Role) {
			return m, true
		}
	}
	for _, m := range members {
		if m.ParentID == nil {
			return m, true
		}
	}
	return model.Member{}, false
}

func (s *Snapshot) familyRoot(cur model.Member, opts ChallengeOptions) (int64, bool) {
	if opts.FallbackRootID != nil {
		root, ok := s.Member(*opts.FallbackRootID)
		if !ok || root.FamilyID != cur.FamilyID || root.ID == cur.ID {
			return 0, false
		}
		return root.ID, true
	}
	root, ok := s.FamilyRoot(cur.FamilyID, opts.RootRoles)
	if !ok || root.ID == cur.ID {
		return 0, false
	}
	return root.ID, true
}
