package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		AccountID: 1,
		FamilyID:  2,
		MemberID:  5,
		UserType:  "member",
		SessionID: 3,
		Confirmed: true,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got != ac {
		t.Errorf("got %+v, want %+v", got, ac)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestFamilyID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{FamilyID: 42})
	if FamilyID(ctx) != 42 {
		t.Errorf("FamilyID = %d, want 42", FamilyID(ctx))
	}
	if FamilyID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestAccountID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{AccountID: 7})
	if AccountID(ctx) != 7 {
		t.Errorf("AccountID = %d, want 7", AccountID(ctx))
	}
	if AccountID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(WithAuth(context.Background(), AuthContext{UserType: "admin"})) {
		t.Error("expected IsAdmin = true for admin")
	}
	if IsAdmin(WithAuth(context.Background(), AuthContext{UserType: "member"})) {
		t.Error("expected IsAdmin = false for member")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}

func TestIsConfirmed(t *testing.T) {
	tests := []struct {
		name string
		ac   AuthContext
		want bool
	}{
		{"admin", AuthContext{UserType: "admin"}, true},
		{"confirmed member", AuthContext{UserType: "member", Confirmed: true}, true},
		{"unconfirmed member", AuthContext{UserType: "member"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfirmed(WithAuth(context.Background(), tt.ac)); got != tt.want {
				t.Errorf("IsConfirmed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessFamily(t *testing.T) {
	member := WithAuth(context.Background(), AuthContext{UserType: "member", FamilyID: 3})
	if !CanAccessFamily(member, 3) {
		t.Error("member should access own family")
	}
	if CanAccessFamily(member, 4) {
		t.Error("member should not access another family")
	}

	orphan := WithAuth(context.Background(), AuthContext{UserType: "member"})
	if CanAccessFamily(orphan, 0) {
		t.Error("account without family should not match family 0")
	}

	admin := WithAuth(context.Background(), AuthContext{UserType: "admin"})
	if !CanAccessFamily(admin, 99) {
		t.Error("admin should access any family")
	}
}
