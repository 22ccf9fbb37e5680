package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/lineage/internal/auth"
	"github.com/dukerupert/lineage/internal/database"
	"github.com/dukerupert/lineage/internal/family"
	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
	ws "github.com/dukerupert/lineage/internal/websocket"
)

func TestMain(m *testing.M) {
	store.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type fixture struct {
	families   *store.FamilyStore
	members    *store.MemberStore
	accounts   *store.AccountStore
	sessions   *store.SessionStore
	challenges *store.ChallengeStore
	push       *store.PushStore

	memberH    *MemberHandler
	familyH    *FamilyHandler
	accountH   *AccountHandler
	authH      *AuthHandler
	challengeH *ChallengeHandler
	mux        *http.ServeMux
	tokens     map[int64]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(logger)

	f := &fixture{
		families:   store.NewFamilyStore(db),
		members:    store.NewMemberStore(db),
		accounts:   store.NewAccountStore(db),
		sessions:   store.NewSessionStore(db),
		challenges: store.NewChallengeStore(db),
		push:       store.NewPushStore(db),
		mux:        http.NewServeMux(),
		tokens:     make(map[int64]string),
	}
	f.memberH = NewMemberHandler(f.members, f.families, hub, TreeConfig{}, logger)
	f.familyH = NewFamilyHandler(f.families, hub, logger)
	f.accountH = NewAccountHandler(f.accounts, f.members, logger)
	f.authH = NewAuthHandler(f.accounts, f.sessions, AuthConfig{MaxAttempts: 3}, logger)
	f.challengeH = NewChallengeHandler(f.challenges, f.members, f.accounts, f.sessions, ChallengeConfig{MaxAttempts: 3}, logger)

	mux := f.mux
	mux.HandleFunc("POST /login", f.authH.Login)
	mux.HandleFunc("GET /api/me", f.authH.Me)
	mux.HandleFunc("PUT /api/me/password", f.authH.ChangePassword)
	mux.HandleFunc("GET /api/challenge", f.challengeH.Issue)
	mux.HandleFunc("POST /api/challenge/{token}", f.challengeH.Answer)
	mux.HandleFunc("GET /api/families", f.familyH.List)
	mux.HandleFunc("POST /api/families", f.familyH.Create)
	mux.HandleFunc("DELETE /api/families/{family_id}", f.familyH.Delete)
	mux.HandleFunc("GET /api/stats", f.familyH.Stats)
	mux.HandleFunc("POST /api/accounts", f.accountH.Create)
	mux.HandleFunc("POST /api/accounts/{id}/unblock", f.accountH.Unblock)
	mux.HandleFunc("GET /api/families/{family_id}/members", f.memberH.List)
	mux.HandleFunc("POST /api/families/{family_id}/members", f.memberH.Create)
	mux.HandleFunc("GET /api/families/{family_id}/members/{id}", f.memberH.Get)
	mux.HandleFunc("PUT /api/families/{family_id}/members/{id}", f.memberH.Update)
	mux.HandleFunc("GET /api/families/{family_id}/hierarchy", f.memberH.Hierarchy)
	mux.HandleFunc("GET /api/families/{family_id}/members/{id}/ancestors", f.memberH.Ancestors)
	mux.HandleFunc("GET /api/families/{family_id}/members/{id}/descendants", f.memberH.Descendants)
	mux.HandleFunc("GET /api/families/{family_id}/members/{id}/potential-parents", f.memberH.PotentialParents)
	mux.HandleFunc("GET /api/families/{family_id}/members/{id}/deletion-plan", f.memberH.DeletionPlan)
	mux.HandleFunc("PUT /api/families/{family_id}/members/{id}/parent", f.memberH.Reparent)
	mux.HandleFunc("DELETE /api/families/{family_id}/members/{id}", f.memberH.Delete)
	mux.HandleFunc("GET /api/families/{family_id}/birthdays", f.memberH.Birthdays)
	return f
}

var admin = &auth.AuthContext{AccountID: 1, UserType: model.UserTypeAdmin}

func (f *fixture) do(t *testing.T, ac *auth.AuthContext, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if ac != nil {
		req = req.WithContext(auth.WithAuth(req.Context(), *ac))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (f *fixture) family(t *testing.T, name string) int64 {
	t.Helper()
	fam, err := f.families.Create(name, nil)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	return fam.ID
}

func (f *fixture) member(t *testing.T, familyID int64, name, role string, parentID *int64) *model.Member {
	t.Helper()
	m, err := f.members.Create(model.Member{FamilyID: familyID, FirstName: name, Role: role, ParentID: parentID})
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return m
}

// memberAccount creates a login for m with a live session and returns the
// matching auth context.
func (f *fixture) memberAccount(t *testing.T, m *model.Member, username string) *auth.AuthContext {
	t.Helper()
	acct, err := f.accounts.Create(store.NewAccount{
		Username: username,
		Password: "correct horse",
		FamilyID: &m.FamilyID,
		MemberID: &m.ID,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	sess, err := f.sessions.Create(acct.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	f.tokens[sess.ID] = sess.Token
	return &auth.AuthContext{
		AccountID: acct.ID,
		FamilyID:  m.FamilyID,
		MemberID:  m.ID,
		UserType:  acct.UserType,
		SessionID: sess.ID,
		Confirmed: true,
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestWriteErrorMapsKinds(t *testing.T) {
	tests := []struct {
		kind string
		want int
	}{
		{"not_found", http.StatusNotFound},
		{"self_reference", http.StatusConflict},
		{"cycle_detected", http.StatusConflict},
		{"challenge_exhausted", http.StatusUnprocessableEntity},
		{"validation_error", http.StatusBadRequest},
		{"internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(family.Kind(tt.kind)); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"name": ""}`))
	var body createFamilyRequest
	err := decodeAndValidate(req, &body)
	if err == nil || err.Error() != "invalid fields: name (required)" {
		t.Errorf("err = %v, want invalid fields: name (required)", err)
	}

	req = httptest.NewRequest("POST", "/", bytes.NewBufferString(`{`))
	if err := decodeAndValidate(req, &body); err == nil || err.Error() != "invalid JSON" {
		t.Errorf("err = %v, want invalid JSON", err)
	}
}
