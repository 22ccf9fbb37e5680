package model

import "time"

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedBy *int64    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FamilySummary is a family together with its current member count.
type FamilySummary struct {
	Family
	Members int `json:"members"`
}

type Statistics struct {
	TotalFamilies int `json:"total_families"`
	TotalMembers  int `json:"total_members"`
}
