package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/dukerupert/lineage/internal/model"
)

func TestFamilyCreateListStats(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, admin, "POST", "/api/families", map[string]string{"name": "Família Souza"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	fam := decode[model.Family](t, rec)
	if fam.Slug != "souza" {
		t.Errorf("slug = %q, want souza", fam.Slug)
	}
	if fam.CreatedBy == nil || *fam.CreatedBy != admin.AccountID {
		t.Errorf("created_by = %v", fam.CreatedBy)
	}
	f.member(t, fam.ID, "Ana", "", nil)

	if rec := f.do(t, admin, "POST", "/api/families", map[string]string{"name": "   "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", rec.Code)
	}

	list := decode[[]model.FamilySummary](t, f.do(t, admin, "GET", "/api/families", nil))
	if len(list) != 1 || list[0].Members != 1 {
		t.Errorf("list = %+v", list)
	}

	stats := decode[model.Statistics](t, f.do(t, admin, "GET", "/api/stats", nil))
	if stats.TotalFamilies != 1 || stats.TotalMembers != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFamilyDelete(t *testing.T) {
	f := newFixture(t)
	fid, ms := f.chain(t)
	f.memberAccount(t, ms[2], "carla")

	url := fmt.Sprintf("/api/families/%d", fid)
	if rec := f.do(t, admin, "DELETE", url, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := f.do(t, admin, "DELETE", url, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	if n, _ := f.members.Count(fid); n != 0 {
		t.Errorf("%d members left", n)
	}
	if a, _ := f.accounts.GetByUsername("carla"); a != nil {
		t.Error("account survived family deletion")
	}
}

func TestAccountCreate(t *testing.T) {
	f := newFixture(t)
	fid, ms := f.chain(t)

	rec := f.do(t, admin, "POST", "/api/accounts", map[string]any{
		"username":  "bruno",
		"password":  "long enough",
		"member_id": ms[1].ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	acct := decode[model.Account](t, rec)
	if acct.FamilyID == nil || *acct.FamilyID != fid || acct.UserType != model.UserTypeMember {
		t.Errorf("account = %+v", acct)
	}

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"duplicate", map[string]any{"username": "bruno", "password": "long enough", "member_id": ms[2].ID}, http.StatusConflict},
		{"no member", map[string]any{"username": "x-user", "password": "long enough"}, http.StatusBadRequest},
		{"unknown member", map[string]any{"username": "x-user", "password": "long enough", "member_id": 9999}, http.StatusNotFound},
		{"short password", map[string]any{"username": "x-user", "password": "short", "member_id": ms[2].ID}, http.StatusBadRequest},
		{"bad type", map[string]any{"username": "x-user", "password": "long enough", "user_type": "owner"}, http.StatusBadRequest},
		{"admin", map[string]any{"username": "boss", "password": "long enough", "user_type": "admin"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(t, admin, "POST", "/api/accounts", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestAccountUnblockUnknown(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, admin, "POST", "/api/accounts/999/unblock", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
