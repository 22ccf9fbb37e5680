package family

import (
	"fmt"
	"slices"
)

// DeletionPlan is the ordered set of members removed by a cascade delete.
type DeletionPlan struct {
	// Order lists every member to delete, each descendant strictly before
	// its own ancestor. The root of the cascade is last.
	Order []int64 `json:"order"`
	Count int     `json:"count"`
	// AccountMemberIDs are the member ids whose login accounts must be
	// removed along with the members.
	AccountMemberIDs []int64 `json:"account_member_ids"`
}

// PlanDeletion computes the deletion order for memberID and its whole
// subtree. Reversing a breadth-first walk places every node after all of its
// descendants.
func (s *Snapshot) PlanDeletion(memberID int64) (DeletionPlan, error) {
	if _, ok := s.Member(memberID); !ok {
		return DeletionPlan{}, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}

	walk := append([]int64{memberID}, s.descendantOrder(memberID)...)
	slices.Reverse(walk)

	return DeletionPlan{
		Order:            walk,
		Count:            len(walk),
		AccountMemberIDs: slices.Clone(walk),
	}, nil
}

// Contains reports whether id is part of the plan.
func (p DeletionPlan) Contains(id int64) bool {
	return slices.Contains(p.Order, id)
}
