package family

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/lineage/internal/model"
)

func TestDirectParent(t *testing.T) {
	s := snap(t, chain())

	p, ok := s.DirectParent(3)
	require.True(t, ok)
	assert.Equal(t, int64(2), p.ID)

	_, ok = s.DirectParent(1)
	assert.False(t, ok, "root has no parent")

	_, ok = s.DirectParent(99)
	assert.False(t, ok, "unknown id")
}

func TestDirectParentDangling(t *testing.T) {
	s := snap(t, []model.Member{member(1, "Orphan", ptr(42))})
	_, ok := s.DirectParent(1)
	assert.False(t, ok)
}

func TestDirectParentOtherFamilyIsDangling(t *testing.T) {
	other := member(1, "Stranger", nil)
	other.FamilyID = 2
	s := snap(t, []model.Member{other, member(2, "Kid", ptr(1))})

	_, ok := s.DirectParent(2)
	assert.False(t, ok)
	assert.Empty(t, s.Descendants(1))
}

func TestAncestorChain(t *testing.T) {
	s := snap(t, tree())
	assert.Equal(t, []int64{5, 2, 1}, ids(s.AncestorChain(7)))
	assert.Empty(t, s.AncestorChain(1))
	assert.Empty(t, s.AncestorChain(99))
}

func TestAncestorChainStopsOnCycle(t *testing.T) {
	// 1 -> 2 -> 3 -> 1
	s := snap(t, []model.Member{
		member(1, "A", ptr(3)),
		member(2, "B", ptr(1)),
		member(3, "C", ptr(2)),
	})
	assert.Equal(t, []int64{2, 1}, ids(s.AncestorChain(3)))
}

func TestAncestorChainSelfLoop(t *testing.T) {
	s := snap(t, []model.Member{member(1, "A", ptr(1))})
	assert.Empty(t, s.AncestorChain(1))
}

func TestDescendants(t *testing.T) {
	s := snap(t, tree())
	assert.Equal(t, []int64{2, 3, 4, 5, 6, 7}, s.Descendants(1).Sorted())
	assert.Equal(t, []int64{4, 5, 7}, s.Descendants(2).Sorted())
	assert.Empty(t, s.Descendants(7))
	assert.Empty(t, s.Descendants(99))
}

func TestDescendantsTerminatesOnCycle(t *testing.T) {
	s := snap(t, []model.Member{
		member(1, "A", ptr(3)),
		member(2, "B", ptr(1)),
		member(3, "C", ptr(2)),
	})
	got := s.Descendants(1)
	assert.Equal(t, []int64{2, 3}, got.Sorted())
	assert.False(t, got.Has(1), "a member is never its own descendant")
}

func TestIsDescendantOf(t *testing.T) {
	s := snap(t, tree())
	assert.True(t, s.IsDescendantOf(7, 1))
	assert.True(t, s.IsDescendantOf(6, 3))
	assert.False(t, s.IsDescendantOf(6, 2))
	assert.False(t, s.IsDescendantOf(1, 7))
}

func TestNoMemberIsItsOwnDescendant(t *testing.T) {
	for _, members := range [][]model.Member{
		chain(),
		tree(),
		{member(1, "A", ptr(2)), member(2, "B", ptr(1))},
	} {
		s := snap(t, members)
		for _, m := range members {
			assert.False(t, s.IsDescendantOf(m.ID, m.ID), "member %d", m.ID)
		}
	}
}
