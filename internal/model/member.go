package model

import "time"

// Member is a person in a family tree. A member with no ParentID is a root.
type Member struct {
	ID        int64     `json:"id" validate:"gt=0"`
	FamilyID  int64     `json:"family_id" validate:"gt=0"`
	FirstName string    `json:"first_name" validate:"required"`
	LastName  string    `json:"last_name"`
	BirthDate *Date     `json:"birth_date,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	Role      string    `json:"role" validate:"required"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Email     string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Member) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// DefaultRole is assigned to members created without an explicit role.
const DefaultRole = "Membro da família"
