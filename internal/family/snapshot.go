// Package family holds the pure computations over a family tree: ancestry
// queries, generational layout, reparent validation, cascade deletion
// planning, identity challenges and birthday scans.
//
// Every operation reads an immutable Snapshot handed in by the caller and
// keeps no state between calls. Members are addressed by id through an index
// rather than by following pointers, and every walk carries a visited set, so
// a corrupted snapshot with a parent cycle still terminates.
package family

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/lineage/internal/model"
)

var memberValidate = validator.New(validator.WithRequiredStructEnabled())

// IDSet is a set of member ids.
type IDSet map[int64]struct{}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot is an id-indexed view over a flat member list.
type Snapshot struct {
	members  []model.Member
	index    map[int64]int
	children map[int64][]int64
}

// NewSnapshot validates members and indexes them. A malformed record or a
// duplicate id returns a *ValidationError.
func NewSnapshot(members []model.Member) (*Snapshot, error) {
	s := &Snapshot{
		members:  slices.Clone(members),
		index:    make(map[int64]int, len(members)),
		children: make(map[int64][]int64),
	}

	for i, m := range s.members {
		if err := validateMember(i, m); err != nil {
			return nil, err
		}
		if _, dup := s.index[m.ID]; dup {
			return nil, &ValidationError{Index: i, MemberID: m.ID, Field: "id", Message: "duplicate id"}
		}
		s.index[m.ID] = i
	}

	for _, m := range s.members {
		if p, ok := s.parentOf(m); ok {
			s.children[p.ID] = append(s.children[p.ID], m.ID)
		}
	}
	return s, nil
}

func validateMember(i int, m model.Member) error {
	err := memberValidate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Index:    i,
			MemberID: m.ID,
			Field:    fe.Field(),
			Message:  fmt.Sprintf("failed %q check", fe.Tag()),
		}
	}
	return &ValidationError{Index: i, MemberID: m.ID, Field: "record", Message: err.Error()}
}

// Len returns the number of members in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.members)
}

// Members returns a copy of the members in input order.
func (s *Snapshot) Members() []model.Member {
	return slices.Clone(s.members)
}

// Member looks up a member by id.
func (s *Snapshot) Member(id int64) (model.Member, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Member{}, false
	}
	return s.members[i], true
}

// FamilyMembers returns the members of familyID in input order.
func (s *Snapshot) FamilyMembers(familyID int64) []model.Member {
	var out []model.Member
	for _, m := range s.members {
		if m.FamilyID == familyID {
			out = append(out, m)
		}
	}
	return out
}

// parentOf resolves m's parent. A parent that is missing from the snapshot
// or belongs to another family is treated as absent.
func (s *Snapshot) parentOf(m model.Member) (model.Member, bool) {
	if m.ParentID == nil {
		return model.Member{}, false
	}
	p, ok := s.Member(*m.ParentID)
	if !ok || p.FamilyID != m.FamilyID {
		return model.Member{}, false
	}
	return p, true
}
