package handler

import (
	"net/http"
	"testing"
	"time"
)

func TestChallengePass(t *testing.T) {
	f := newFixture(t)
	_, ms := f.chain(t)
	ac := f.memberAccount(t, ms[2], "carla")
	ac.Confirmed = false

	rec := f.do(t, ac, "GET", "/api/challenge", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body %s", rec.Code, rec.Body)
	}
	c := decode[challengeResponse](t, rec)
	if len(c.Token) != 36 || len(c.Options) != 3 {
		t.Fatalf("challenge = %+v", c)
	}
	for _, o := range c.Options {
		if o.ID == ms[2].ID {
			t.Error("options include the member being challenged")
		}
	}

	rec = f.do(t, ac, "POST", "/api/challenge/"+c.Token, map[string]int64{"member_id": ms[1].ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[answerResponse](t, rec); !got.Confirmed {
		t.Errorf("answer = %+v", got)
	}

	sess, _ := f.sessions.GetByToken(f.tokens[ac.SessionID])
	if sess == nil || !sess.Confirmed {
		t.Error("session not confirmed")
	}

	rec = f.do(t, ac, "POST", "/api/challenge/"+c.Token, map[string]int64{"member_id": ms[1].ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("reused token status = %d, want 404", rec.Code)
	}
}

func TestChallengeLockout(t *testing.T) {
	f := newFixture(t)
	_, ms := f.chain(t)
	ac := f.memberAccount(t, ms[2], "carla")
	ac.Confirmed = false

	answer := func() *answerResponse {
		c := decode[challengeResponse](t, f.do(t, ac, "GET", "/api/challenge", nil))
		rec := f.do(t, ac, "POST", "/api/challenge/"+c.Token, map[string]int64{"member_id": ms[3].ID})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("wrong answer status = %d, want 403", rec.Code)
		}
		got := decode[answerResponse](t, rec)
		return &got
	}

	if got := answer(); got.AttemptsRemaining != 2 {
		t.Errorf("after 1 miss remaining = %d, want 2", got.AttemptsRemaining)
	}
	if got := answer(); got.AttemptsRemaining != 1 {
		t.Errorf("after 2 misses remaining = %d, want 1", got.AttemptsRemaining)
	}
	if got := answer(); got.Error != "account blocked, contact an administrator" {
		t.Errorf("third miss = %+v", got)
	}

	acct, _ := f.accounts.GetByID(ac.AccountID)
	if !acct.IsBlocked {
		t.Error("account should be blocked")
	}
	if sess, _ := f.sessions.GetByToken(f.tokens[ac.SessionID]); sess != nil {
		t.Error("sessions of a blocked account should be removed")
	}
}

func TestChallengeRejectsForeignAndExpiredTokens(t *testing.T) {
	f := newFixture(t)
	_, ms := f.chain(t)
	carla := f.memberAccount(t, ms[2], "carla")
	bruno := f.memberAccount(t, ms[1], "bruno")

	c := decode[challengeResponse](t, f.do(t, carla, "GET", "/api/challenge", nil))
	rec := f.do(t, bruno, "POST", "/api/challenge/"+c.Token, map[string]int64{"member_id": ms[1].ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign token status = %d, want 404", rec.Code)
	}

	f.challengeH.now = func() time.Time { return time.Now().Add(time.Hour) }
	rec = f.do(t, carla, "POST", "/api/challenge/"+c.Token, map[string]int64{"member_id": ms[1].ID})
	if rec.Code != http.StatusGone {
		t.Errorf("expired status = %d, want 410", rec.Code)
	}
}

func TestChallengeUnavailable(t *testing.T) {
	f := newFixture(t)
	fid := f.family(t, "Solo")
	alone := f.member(t, fid, "Alone", "", nil)
	ac := f.memberAccount(t, alone, "alone")

	rec := f.do(t, ac, "GET", "/api/challenge", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("exhausted status = %d, want 422", rec.Code)
	}

	rec = f.do(t, admin, "GET", "/api/challenge", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("admin status = %d, want 400", rec.Code)
	}
}
