package family

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dukerupert/lineage/internal/model"
)

// Generation is one level of the family tree. Roots are level 1.
type Generation struct {
	Level   int            `json:"level"`
	Members []model.Member `json:"members"`
}

// Levels assigns a generation level to every member in the snapshot.
//
// A member whose parent is missing or dangling is a root. When a walk up the
// parent links revisits a member already on the current path, the member
// whose parent would close the loop is treated as a root, so a corrupted
// snapshot still yields finite levels. Results are memoized across walks, so
// for a fixed input the assignment is always the same.
func (s *Snapshot) Levels() map[int64]int {
	levels := make(map[int64]int, len(s.members))

	for _, m := range s.members {
		if _, done := levels[m.ID]; done {
			continue
		}

		path := []int64{m.ID}
		onPath := IDSet{m.ID: {}}
		base := 0
		cur := m
		for {
			p, ok := s.parentOf(cur)
			if !ok || onPath.Has(p.ID) {
				break
			}
			if lvl, done := levels[p.ID]; done {
				base = lvl
				break
			}
			path = append(path, p.ID)
			onPath[p.ID] = struct{}{}
			cur = p
		}

		// path runs child -> ancestor; the last entry sits on base.
		for i := len(path) - 1; i >= 0; i-- {
			base++
			levels[path[i]] = base
		}
	}
	return levels
}

// Hierarchy groups members by generation level, ascending. Within a level
// members are ordered by birth date when both have one, otherwise by name.
func (s *Snapshot) Hierarchy() []Generation {
	levels := s.Levels()

	byLevel := make(map[int][]model.Member)
	for _, m := range s.members {
		lvl := levels[m.ID]
		byLevel[lvl] = append(byLevel[lvl], m)
	}

	keys := make([]int, 0, len(byLevel))
	for lvl := range byLevel {
		keys = append(keys, lvl)
	}
	slices.Sort(keys)

	gens := make([]Generation, 0, len(keys))
	for _, lvl := range keys {
		members := byLevel[lvl]
		slices.SortStableFunc(members, compareSiblings)
		gens = append(gens, Generation{Level: lvl, Members: members})
	}
	return gens
}

// compareSiblings is not a total order once dated and undated siblings mix.
// The stable sort keeps the outcome fixed for a given input order.
func compareSiblings(a, b model.Member) int {
	if a.BirthDate != nil && b.BirthDate != nil {
		ta, tb := a.BirthDate.Time(), b.BirthDate.Time()
		if c := ta.Compare(tb); c != 0 {
			return c
		}
	}
	if c := strings.Compare(a.FirstName, b.FirstName); c != 0 {
		return c
	}
	if c := strings.Compare(a.LastName, b.LastName); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
