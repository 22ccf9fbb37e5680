package family

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/lineage/internal/model"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// challengeFamily: P(1) is X(2)'s parent; D1..D4 (3..6) are unrelated roots.
func challengeFamily() []model.Member {
	return []model.Member{
		member(1, "P", nil),
		member(2, "X", ptr(1)),
		member(3, "D1", nil),
		member(4, "D2", nil),
		member(5, "D3", nil),
		member(6, "D4", nil),
	}
}

func countOf(ids []int64, id int64) int {
	n := 0
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return n
}

func TestBuildChallengeScenario(t *testing.T) {
	s := snap(t, challengeFamily())
	c, err := s.BuildChallenge(2, ChallengeOptions{DecoyCount: 3, Rand: seeded(1)})
	require.NoError(t, err)

	assert.Len(t, c.Options, 4)
	assert.Equal(t, 1, countOf(c.Options, 1))
	assert.Equal(t, []int64{1}, c.CorrectIDs.Sorted())
	assert.True(t, c.Check(1))
	assert.False(t, c.Check(3))
}

func TestBuildChallengeDecoyCountDefault(t *testing.T) {
	s := snap(t, challengeFamily())
	for _, n := range []int{0, -1, -50} {
		c, err := s.BuildChallenge(2, ChallengeOptions{DecoyCount: n, Rand: seeded(2)})
		require.NoError(t, err)
		assert.Len(t, c.Options, DefaultDecoyCount+1, "decoy count %d", n)
	}
}

func TestBuildChallengeInvariants(t *testing.T) {
	s := snap(t, challengeFamily())
	rng := seeded(7)
	for i := 0; i < 500; i++ {
		c, err := s.BuildChallenge(2, ChallengeOptions{Rand: rng})
		require.NoError(t, err)

		seen := map[int64]bool{}
		for _, id := range c.Options {
			assert.False(t, seen[id], "duplicate option %d", id)
			seen[id] = true
		}
		assert.False(t, seen[2], "options never include the current member")
		for id := range c.CorrectIDs {
			assert.Equal(t, 1, countOf(c.Options, id))
		}
	}
}

func TestBuildChallengeIsUniform(t *testing.T) {
	s := snap(t, challengeFamily())
	rng := seeded(42)

	const trials = 4000
	decoyHits := map[int64]int{}
	correctPos := make([]int, 4)
	for i := 0; i < trials; i++ {
		c, err := s.BuildChallenge(2, ChallengeOptions{Rand: rng})
		require.NoError(t, err)
		for pos, id := range c.Options {
			if id == 1 {
				correctPos[pos]++
			} else {
				decoyHits[id]++
			}
		}
	}

	// Each of the 4 decoys is drawn with probability 3/4.
	for id := int64(3); id <= 6; id++ {
		assert.InDelta(t, trials*3/4, decoyHits[id], 200, "decoy %d", id)
	}
	// The correct answer lands in each slot with probability 1/4.
	for pos, n := range correctPos {
		assert.InDelta(t, trials/4, n, 150, "position %d", pos)
	}
}

func TestBuildChallengeSmallPool(t *testing.T) {
	s := snap(t, []model.Member{member(1, "P", nil), member(2, "X", ptr(1)), member(3, "D", nil)})
	c, err := s.BuildChallenge(2, ChallengeOptions{DecoyCount: 3, Rand: seeded(3)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3}, c.Options)
}

func TestBuildChallengeRootFallbackByRole(t *testing.T) {
	founder := member(1, "Vovô", nil)
	founder.Role = "Patriarca"
	s := snap(t, []model.Member{
		member(5, "Early", nil),
		founder,
		member(2, "X", nil),
		member(3, "D", nil),
	})

	c, err := s.BuildChallenge(2, ChallengeOptions{RootFallback: true, Rand: seeded(1)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, c.CorrectIDs.Sorted())
	assert.Equal(t, 1, countOf(c.Options, 1))
}

func TestBuildChallengeRootFallbackFirstRoot(t *testing.T) {
	s := snap(t, []model.Member{member(5, "Early", nil), member(2, "X", nil), member(3, "D", nil)})
	c, err := s.BuildChallenge(2, ChallengeOptions{RootFallback: true, Rand: seeded(1)})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, c.CorrectIDs.Sorted())
}

func TestBuildChallengeRootFallbackExplicitID(t *testing.T) {
	s := snap(t, []model.Member{member(5, "Early", nil), member(2, "X", nil), member(3, "D", nil)})
	c, err := s.BuildChallenge(2, ChallengeOptions{RootFallback: true, FallbackRootID: ptr(3), Rand: seeded(1)})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, c.CorrectIDs.Sorted())
}

func TestBuildChallengeRootFallbackDisabled(t *testing.T) {
	s := snap(t, []model.Member{member(5, "Early", nil), member(2, "X", nil), member(3, "D", nil)})
	c, err := s.BuildChallenge(2, ChallengeOptions{Rand: seeded(1)})
	require.NoError(t, err)
	assert.Empty(t, c.CorrectIDs)
	assert.ElementsMatch(t, []int64{5, 3}, c.Options)
}

func TestBuildChallengeRootIsCurrentMember(t *testing.T) {
	founder := member(1, "Vovô", nil)
	founder.Role = "Patriarca"
	s := snap(t, []model.Member{founder, member(2, "Kid", ptr(1))})

	c, err := s.BuildChallenge(1, ChallengeOptions{RootFallback: true, Rand: seeded(1)})
	require.NoError(t, err)
	assert.Empty(t, c.CorrectIDs)
	assert.Equal(t, []int64{2}, c.Options)
}

func TestBuildChallengeExhausted(t *testing.T) {
	s := snap(t, []model.Member{member(1, "Alone", nil)})
	_, err := s.BuildChallenge(1, ChallengeOptions{RootFallback: true})
	require.ErrorIs(t, err, ErrChallengeExhausted)
	assert.Equal(t, KindChallengeExhausted, KindOf(err))
}

func TestBuildChallengeNotFound(t *testing.T) {
	_, err := snap(t, chain()).BuildChallenge(99, ChallengeOptions{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuildChallengeIgnoresOtherFamilies(t *testing.T) {
	outsider := member(9, "Out", nil)
	outsider.FamilyID = 2
	s := snap(t, append(challengeFamily(), outsider))
	for i := 0; i < 50; i++ {
		c, err := s.BuildChallenge(2, ChallengeOptions{DecoyCount: 10})
		require.NoError(t, err)
		assert.NotContains(t, c.Options, int64(9))
	}
}

func TestFamilyRoot(t *testing.T) {
	s := snap(t, tree())
	root, ok := s.FamilyRoot(1, nil)
	require.True(t, ok)
	assert.Equal(t, int64(1), root.ID)

	_, ok = s.FamilyRoot(2, nil)
	assert.False(t, ok)
}
