package family

import (
	"fmt"

	"github.com/dukerupert/lineage/internal/model"
)

// ValidateReparent checks whether memberID may take newParentID as its
// parent. A nil newParentID makes the member a root. It performs no mutation;
// the result is only as fresh as the snapshot.
func (s *Snapshot) ValidateReparent(memberID int64, newParentID *int64) error {
	m, ok := s.Member(memberID)
	if !ok {
		return fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}
	if newParentID == nil {
		return nil
	}

	p, ok := s.Member(*newParentID)
	if !ok || p.FamilyID != m.FamilyID {
		return fmt.Errorf("parent %d: %w", *newParentID, ErrNotFound)
	}
	if p.ID == m.ID {
		return fmt.Errorf("member %d: %w", memberID, ErrSelfReference)
	}
	if s.IsDescendantOf(p.ID, m.ID) {
		return fmt.Errorf("parent %d under member %d: %w", p.ID, memberID, ErrCycleDetected)
	}
	return nil
}

// PotentialParents lists the members memberID could be moved under: everyone
// in its family except itself and its descendants.
func (s *Snapshot) PotentialParents(memberID int64) ([]model.Member, error) {
	m, ok := s.Member(memberID)
	if !ok {
		return nil, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}

	descendants := s.Descendants(memberID)
	var out []model.Member
	for _, c := range s.FamilyMembers(m.FamilyID) {
		if c.ID == memberID || descendants.Has(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
