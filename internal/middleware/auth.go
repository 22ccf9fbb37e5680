package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/lineage/internal/auth"
	"github.com/dukerupert/lineage/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "lineage_session"

// RequireAuth validates the session cookie and populates AuthContext.
// Expired sessions, unknown tokens and blocked or inactive accounts get a
// JSON 401.
func RequireAuth(sessions *store.SessionStore, accounts *store.AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil || sess.ExpiresAt.Before(time.Now()) {
				writeError(w, http.StatusUnauthorized, "session expired, please log in again")
				return
			}

			acct, err := accounts.GetByID(sess.AccountID)
			if err != nil || acct == nil || !acct.IsActive || acct.IsBlocked {
				writeError(w, http.StatusUnauthorized, "account unavailable")
				return
			}

			ac := auth.AuthContext{
				AccountID: acct.ID,
				UserType:  acct.UserType,
				SessionID: sess.ID,
				Confirmed: sess.Confirmed,
			}
			if acct.FamilyID != nil {
				ac.FamilyID = *acct.FamilyID
			}
			if acct.MemberID != nil {
				ac.MemberID = *acct.MemberID
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated account is an administrator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireConfirmed blocks members whose session has not passed the identity
// challenge yet.
func RequireConfirmed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsConfirmed(r.Context()) {
			writeError(w, http.StatusForbidden, "identity challenge required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireFamily checks the {family_id} path value against the caller's
// family. Admins may reach any family.
func RequireFamily(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		familyID, err := strconv.ParseInt(r.PathValue("family_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid family id")
			return
		}
		if !auth.CanAccessFamily(r.Context(), familyID) {
			writeError(w, http.StatusForbidden, "no access to this family")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
