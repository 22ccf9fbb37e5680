package family

import "github.com/dukerupert/lineage/internal/model"

// DirectParent returns the parent of id. It reports false when id is unknown,
// has no parent, or its parent reference is dangling.
func (s *Snapshot) DirectParent(id int64) (model.Member, bool) {
	m, ok := s.Member(id)
	if !ok {
		return model.Member{}, false
	}
	return s.parentOf(m)
}

// AncestorChain returns the ancestors of id, nearest first. If the parent
// links loop back on themselves the chain collected so far is returned.
func (s *Snapshot) AncestorChain(id int64) []model.Member {
	var chain []model.Member
	visited := IDSet{id: {}}

	cur := id
	for {
		p, ok := s.DirectParent(cur)
		if !ok || visited.Has(p.ID) {
			return chain
		}
		visited[p.ID] = struct{}{}
		chain = append(chain, p)
		cur = p.ID
	}
}

// Descendants returns the ids of every member whose ancestor chain contains
// id. The result never contains id itself.
func (s *Snapshot) Descendants(id int64) IDSet {
	out := IDSet{}
	for _, d := range s.descendantOrder(id) {
		out[d] = struct{}{}
	}
	return out
}

// IsDescendantOf reports whether candidateID is a descendant of ofID.
func (s *Snapshot) IsDescendantOf(candidateID, ofID int64) bool {
	if candidateID == ofID {
		return false
	}
	return s.Descendants(ofID).Has(candidateID)
}

// descendantOrder walks the subtree under id breadth first and returns the
// descendants in visit order, excluding id.
func (s *Snapshot) descendantOrder(id int64) []int64 {
	if _, ok := s.index[id]; !ok {
		return nil
	}

	visited := IDSet{id: {}}
	queue := []int64{id}
	var order []int64
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range s.children[cur] {
			if visited.Has(child) {
				continue
			}
			visited[child] = struct{}{}
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order
}
