package auth

import "context"

type contextKey struct{}

type AuthContext struct {
	AccountID int64
	FamilyID  int64
	MemberID  int64
	UserType  string
	SessionID int64
	// Confirmed is set once the session has passed the identity challenge.
	Confirmed bool
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func FamilyID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.FamilyID
}

func AccountID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.AccountID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.UserType == "admin"
}

// IsConfirmed reports whether the caller may see family data: admins always,
// members once their session passed the identity challenge.
func IsConfirmed(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.UserType == "admin" || ac.Confirmed
}

// CanAccessFamily reports whether the caller may act on familyID.
func CanAccessFamily(ctx context.Context, familyID int64) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.UserType == "admin" || (ac.FamilyID != 0 && ac.FamilyID == familyID)
}
