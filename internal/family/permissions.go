package family

import (
	"slices"

	"github.com/dukerupert/lineage/internal/model"
)

// DefaultParentRoles are the roles allowed to add children under themselves.
var DefaultParentRoles = []string{"Pai", "Mãe", "Patriarca", "Matriarca", "Filho", "Filha"}

// CanAddChildren reports whether a member holding role may add children.
func CanAddChildren(role string, parentRoles []string) bool {
	if parentRoles == nil {
		parentRoles = DefaultParentRoles
	}
	return slices.Contains(parentRoles, role)
}

// CanEditMember reports whether actor may edit target's profile: members
// manage their own direct children.
func CanEditMember(actor, target model.Member) bool {
	return target.ParentID != nil && *target.ParentID == actor.ID && target.FamilyID == actor.FamilyID
}
