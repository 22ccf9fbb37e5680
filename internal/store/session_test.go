package store

import (
	"testing"
	"time"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, int64) {
	t.Helper()
	db := setupTestDB(t)
	a, err := NewAccountStore(db).Create(NewAccount{Username: "ana", Password: "x"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return NewSessionStore(db), a.ID
}

func TestSessionCreate(t *testing.T) {
	ss, accountID := setupSessionTestDB(t)

	sess, err := ss.Create(accountID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.AccountID != accountID {
		t.Errorf("account_id = %d, want %d", sess.AccountID, accountID)
	}
	if sess.Confirmed {
		t.Error("new session should be unconfirmed")
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Errorf("expires_at = %v, want future", sess.ExpiresAt)
	}
}

func TestSessionGetByTokenNotFound(t *testing.T) {
	ss, _ := setupSessionTestDB(t)

	sess, err := ss.GetByToken("nonexistent")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for nonexistent token")
	}
}

func TestSessionConfirm(t *testing.T) {
	ss, accountID := setupSessionTestDB(t)
	created, _ := ss.Create(accountID, time.Hour)

	if err := ss.Confirm(created.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	sess, _ := ss.GetByToken(created.Token)
	if !sess.Confirmed {
		t.Error("expected confirmed session")
	}
}

func TestSessionDelete(t *testing.T) {
	ss, accountID := setupSessionTestDB(t)
	created, _ := ss.Create(accountID, time.Hour)

	if err := ss.Delete(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if sess != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	ss, accountID := setupSessionTestDB(t)
	stale, _ := ss.Create(accountID, -time.Hour)
	fresh, _ := ss.Create(accountID, time.Hour)

	n, err := ss.DeleteExpired(time.Now())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if got, _ := ss.GetByToken(stale.Token); got != nil {
		t.Error("expired session survived")
	}
	if got, _ := ss.GetByToken(fresh.Token); got == nil {
		t.Error("live session was removed")
	}
}

func TestSessionDeleteByAccount(t *testing.T) {
	ss, accountID := setupSessionTestDB(t)
	ss.Create(accountID, time.Hour)
	ss.Create(accountID, time.Hour)

	if err := ss.DeleteByAccount(accountID); err != nil {
		t.Fatalf("delete by account: %v", err)
	}
	var count int
	ss.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE account_id = ?`, accountID).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 sessions, got %d", count)
	}
}
