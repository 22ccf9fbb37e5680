package store

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/lineage/internal/family"
)

func TestChallengeCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChallengeStore(db)
	a, _ := NewAccountStore(db).Create(NewAccount{Username: "ana", Password: "x"})

	c := family.Challenge{Options: []int64{4, 1, 9}, CorrectIDs: family.IDSet{1: {}}}
	issued, err := cs.Create(a.ID, 5, c, time.Minute)
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if len(issued.Token) != 36 {
		t.Errorf("token = %q, want a uuid", issued.Token)
	}
	if !slices.Equal(issued.Options, []int64{4, 1, 9}) {
		t.Errorf("options = %v", issued.Options)
	}
	if !slices.Equal(issued.CorrectIDs, []int64{1}) {
		t.Errorf("correct = %v", issued.CorrectIDs)
	}
	if issued.MemberID != 5 || issued.AccountID != a.ID {
		t.Errorf("member/account = %d/%d", issued.MemberID, issued.AccountID)
	}
}

func TestChallengeCreateReplacesOpenChallenge(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChallengeStore(db)
	a, _ := NewAccountStore(db).Create(NewAccount{Username: "ana", Password: "x"})

	first, _ := cs.Create(a.ID, 5, family.Challenge{Options: []int64{1}}, time.Minute)
	second, _ := cs.Create(a.ID, 5, family.Challenge{Options: []int64{2}}, time.Minute)

	if got, _ := cs.Get(first.Token); got != nil {
		t.Error("old challenge should be discarded")
	}
	if got, _ := cs.Get(second.Token); got == nil {
		t.Error("new challenge missing")
	}
}

func TestChallengeConsume(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChallengeStore(db)
	accounts := NewAccountStore(db)
	a, _ := accounts.Create(NewAccount{Username: "ana", Password: "x"})
	b, _ := accounts.Create(NewAccount{Username: "beto", Password: "x"})
	issued, _ := cs.Create(a.ID, 5, family.Challenge{Options: []int64{1, 2}, CorrectIDs: family.IDSet{2: {}}}, time.Minute)

	got, err := cs.Consume(issued.Token, b.ID)
	if err != nil {
		t.Fatalf("consume as other account: %v", err)
	}
	if got != nil {
		t.Error("another account must not consume the challenge")
	}

	got, err = cs.Consume(issued.Token, a.ID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got == nil || got.Token != issued.Token || !slices.Equal(got.CorrectIDs, []int64{2}) {
		t.Fatalf("consumed = %+v", got)
	}

	got, err = cs.Consume(issued.Token, a.ID)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if got != nil {
		t.Error("a challenge must be consumed only once")
	}
	if left, _ := cs.Get(issued.Token); left != nil {
		t.Error("consumed challenge still stored")
	}
}

func TestChallengeConsumeConcurrent(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChallengeStore(db)
	a, _ := NewAccountStore(db).Create(NewAccount{Username: "ana", Password: "x"})
	issued, _ := cs.Create(a.ID, 5, family.Challenge{Options: []int64{1}}, time.Minute)

	const racers = 8
	var wg sync.WaitGroup
	var won atomic.Int32
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cs.Consume(issued.Token, a.ID)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if got != nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := won.Load(); n != 1 {
		t.Errorf("challenge consumed %d times, want 1", n)
	}
}
