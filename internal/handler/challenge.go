package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dukerupert/lineage/internal/auth"
	"github.com/dukerupert/lineage/internal/family"
	"github.com/dukerupert/lineage/internal/metrics"
	"github.com/dukerupert/lineage/internal/store"
)

// ChallengeConfig tunes the identity challenge.
type ChallengeConfig struct {
	Decoys       int
	RootFallback bool
	RootRoles    []string
	TTL          time.Duration
	MaxAttempts  int
}

// ChallengeHandler asks a logged-in member to pick their parent before the
// session may see family data.
type ChallengeHandler struct {
	challenges *store.ChallengeStore
	members    *store.MemberStore
	accounts   *store.AccountStore
	sessions   *store.SessionStore
	cfg        ChallengeConfig
	rand       family.Rand
	now        func() time.Time
	logger     *slog.Logger
}

func NewChallengeHandler(cs *store.ChallengeStore, ms *store.MemberStore, as *store.AccountStore, ss *store.SessionStore, cfg ChallengeConfig, logger *slog.Logger) *ChallengeHandler {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &ChallengeHandler{
		challenges: cs,
		members:    ms,
		accounts:   as,
		sessions:   ss,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

type challengeOption struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

type challengeResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Options   []challengeOption `json:"options"`
}

// Issue handles GET /api/challenge
func (h *ChallengeHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if ac.MemberID == 0 || ac.FamilyID == 0 {
		writeMessage(w, http.StatusBadRequest, "account is not linked to a family member")
		return
	}

	snap, err := h.members.Snapshot(ac.FamilyID)
	if err != nil {
		writeError(w, h.logger, "load family", err)
		return
	}

	opts := family.ChallengeOptions{
		DecoyCount:   h.cfg.Decoys,
		RootFallback: h.cfg.RootFallback,
		RootRoles:    h.cfg.RootRoles,
		Rand:         h.rand,
	}
	if opts.RootFallback {
		root, err := h.members.FetchFamilyRoot(ac.FamilyID, h.cfg.RootRoles)
		if err != nil {
			writeError(w, h.logger, "load family root", err)
			return
		}
		if root != nil {
			opts.FallbackRootID = &root.ID
		}
	}

	c, err := snap.BuildChallenge(ac.MemberID, opts)
	if err != nil {
		if family.KindOf(err) == family.KindChallengeExhausted {
			metrics.ChallengeOutcomes.WithLabelValues("exhausted").Inc()
		}
		writeError(w, h.logger, "build challenge", err)
		return
	}

	issued, err := h.challenges.Create(ac.AccountID, ac.MemberID, c, h.cfg.TTL)
	if err != nil {
		writeError(w, h.logger, "store challenge", err)
		return
	}
	metrics.ChallengeOutcomes.WithLabelValues("issued").Inc()

	resp := challengeResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt, Options: []challengeOption{}}
	for _, id := range issued.Options {
		m, _ := snap.Member(id)
		resp.Options = append(resp.Options, challengeOption{ID: m.ID, Name: m.FullName(), PhotoURL: m.PhotoURL})
	}
	writeJSON(w, http.StatusOK, resp)
}

type answerRequest struct {
	MemberID int64 `json:"member_id" validate:"required,gt=0"`
}

type answerResponse struct {
	Confirmed         bool   `json:"confirmed"`
	AttemptsRemaining int    `json:"attempts_remaining"`
	Error             string `json:"error,omitempty"`
}

// Answer handles POST /api/challenge/{token}. A challenge can be answered
// once; every wrong answer counts toward the account lockout.
func (h *ChallengeHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req answerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	issued, err := h.challenges.Consume(r.PathValue("token"), ac.AccountID)
	if err != nil {
		writeError(w, h.logger, "consume challenge", err)
		return
	}
	if issued == nil {
		writeMessage(w, http.StatusNotFound, "challenge not found")
		return
	}
	if h.now().After(issued.ExpiresAt) {
		writeMessage(w, http.StatusGone, "challenge expired, request a new one")
		return
	}

	if slices.Contains(issued.CorrectIDs, req.MemberID) {
		if err := h.sessions.Confirm(ac.SessionID); err != nil {
			writeError(w, h.logger, "confirm session", err)
			return
		}
		if err := h.accounts.RecordSuccessfulLogin(ac.AccountID); err != nil {
			h.logger.Error("record login", "error", err)
		}
		metrics.ChallengeOutcomes.WithLabelValues("passed").Inc()
		writeJSON(w, http.StatusOK, answerResponse{Confirmed: true, AttemptsRemaining: h.cfg.MaxAttempts})
		return
	}

	metrics.ChallengeOutcomes.WithLabelValues("failed").Inc()
	if h.lockout(ac.AccountID) {
		writeJSON(w, http.StatusForbidden, answerResponse{Error: "account blocked, contact an administrator"})
		return
	}

	remaining := 0
	if acct, err := h.accounts.GetByID(ac.AccountID); err == nil && acct != nil {
		remaining = max(h.cfg.MaxAttempts-acct.FailedAttempts, 0)
	}
	writeJSON(w, http.StatusForbidden, answerResponse{Error: "wrong answer", AttemptsRemaining: remaining})
}

// lockout records a failed identity check and ends every session of the
// account once it is blocked. It reports whether the account is blocked.
func (h *ChallengeHandler) lockout(accountID int64) bool {
	blocked, err := h.accounts.RecordFailedAttempt(accountID, h.cfg.MaxAttempts)
	if err != nil {
		h.logger.Error("record failed attempt", "error", err)
		return false
	}
	if !blocked {
		return false
	}
	metrics.ChallengeOutcomes.WithLabelValues("blocked").Inc()
	if err := h.sessions.DeleteByAccount(accountID); err != nil {
		h.logger.Error("delete sessions", "error", err)
	}
	h.logger.Warn("account blocked after failed challenges", "account_id", accountID)
	return true
}
