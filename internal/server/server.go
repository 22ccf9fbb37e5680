package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/lineage/internal/config"
	"github.com/dukerupert/lineage/internal/handler"
	"github.com/dukerupert/lineage/internal/middleware"
	"github.com/dukerupert/lineage/internal/push"
	"github.com/dukerupert/lineage/internal/store"
	ws "github.com/dukerupert/lineage/internal/websocket"
)

// sentLogRetention is how long the push dedup log keeps its entries.
const sentLogRetention = 30 * 24 * time.Hour

type Server struct {
	db             *sql.DB
	cfg            *config.Config
	hub            *ws.Hub
	memberH        *handler.MemberHandler
	familyH        *handler.FamilyHandler
	accountH       *handler.AccountHandler
	authH          *handler.AuthHandler
	challengeH     *handler.ChallengeHandler
	pushH          *handler.PushHandler
	sessionStore   *store.SessionStore
	accountStore   *store.AccountStore
	pushStore      *store.PushStore
	rateLimiter    *middleware.RateLimiter
	pushScheduler  *push.Scheduler
	originPatterns []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	memberStore := store.NewMemberStore(db)
	accountStore := store.NewAccountStore(db)
	sessionStore := store.NewSessionStore(db)
	challengeStore := store.NewChallengeStore(db)
	pushSt := store.NewPushStore(db)

	// Push notification service + scheduler
	pushCfg := push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
	}
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if pushCfg.Enabled() {
		pushLogger := logger.With("component", "push")
		pushSvc := push.NewService(pushCfg)
		pushSched = push.NewScheduler(pushSvc, pushSt, memberStore, cfg.Birthdays.WindowDays, pushLogger)
		pushH = handler.NewPushHandler(pushSt, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:  db,
		cfg: cfg,
		hub: hub,
		memberH: handler.NewMemberHandler(memberStore, familyStore, hub, handler.TreeConfig{
			ParentRoles:    cfg.Permissions.ParentRoles,
			BirthdayWindow: cfg.Birthdays.WindowDays,
		}, logger.With("component", "member")),
		familyH:  handler.NewFamilyHandler(familyStore, hub, logger.With("component", "family")),
		accountH: handler.NewAccountHandler(accountStore, memberStore, logger.With("component", "account")),
		authH: handler.NewAuthHandler(accountStore, sessionStore, handler.AuthConfig{
			SessionTTL:   cfg.Session.TTL,
			MaxAttempts:  cfg.Challenge.MaxAttempts,
			SecureCookie: cfg.SecureCookies(),
		}, logger.With("component", "auth")),
		challengeH: handler.NewChallengeHandler(challengeStore, memberStore, accountStore, sessionStore, handler.ChallengeConfig{
			Decoys:       cfg.Challenge.Decoys,
			RootFallback: cfg.Challenge.RootFallback,
			RootRoles:    cfg.Challenge.RootRoles,
			TTL:          cfg.Challenge.TTL,
			MaxAttempts:  cfg.Challenge.MaxAttempts,
		}, logger.With("component", "challenge")),
		pushH:          pushH,
		sessionStore:   sessionStore,
		accountStore:   accountStore,
		pushStore:      pushSt,
		rateLimiter:    middleware.NewRateLimiter(),
		pushScheduler:  pushSched,
		originPatterns: originPatterns(cfg),
		logger:         logger,
	}
}

// originPatterns lists the hosts allowed to open a websocket: the configured
// origins plus the host of base_url.
func originPatterns(cfg *config.Config) []string {
	patterns := append([]string(nil), cfg.AllowedOrigins...)
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// PushScheduler returns the birthday push scheduler, or nil when push is
// not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Cleanup drops expired sessions, stale rate limiter entries and old push
// dedup records.
func (s *Server) Cleanup(now time.Time) {
	if n, err := s.sessionStore.DeleteExpired(now); err != nil {
		s.logger.Error("cleanup expired sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}
	s.rateLimiter.Cleanup()
	if err := s.pushStore.CleanupSent(now.Add(-sentLogRetention)); err != nil {
		s.logger.Error("cleanup sent notifications", "error", err)
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *Server) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.RequireAuth(s.sessionStore, s.accountStore)
	limited := middleware.RateLimit(s.rateLimiter, middleware.ByIP, s.cfg.RateLimit.Attempts, s.cfg.RateLimit.Window)

	authed := func(h http.HandlerFunc) http.Handler {
		return chain(h, requireAuth)
	}
	// family routes need a confirmed session with access to {family_id}
	family := func(h http.HandlerFunc) http.Handler {
		return chain(h, requireAuth, middleware.RequireConfirmed, middleware.RequireFamily)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return chain(h, requireAuth, middleware.RequireAdmin)
	}

	// Public routes
	mux.Handle("POST /login", limited(http.HandlerFunc(s.authH.Login)))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Session routes
	mux.Handle("POST /logout", authed(s.authH.Logout))
	mux.Handle("GET /api/me", authed(s.authH.Me))
	mux.Handle("PUT /api/me/password", authed(s.authH.ChangePassword))
	mux.Handle("GET /api/challenge", authed(s.challengeH.Issue))
	mux.Handle("POST /api/challenge/{token}", limited(authed(s.challengeH.Answer)))
	mux.Handle("GET /ws", authed(ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket"))))

	// Family tree
	mux.Handle("GET /api/families/{family_id}/members", family(s.memberH.List))
	mux.Handle("POST /api/families/{family_id}/members", family(s.memberH.Create))
	mux.Handle("GET /api/families/{family_id}/members/{id}", family(s.memberH.Get))
	mux.Handle("PUT /api/families/{family_id}/members/{id}", family(s.memberH.Update))
	mux.Handle("GET /api/families/{family_id}/hierarchy", family(s.memberH.Hierarchy))
	mux.Handle("GET /api/families/{family_id}/members/{id}/ancestors", family(s.memberH.Ancestors))
	mux.Handle("GET /api/families/{family_id}/members/{id}/descendants", family(s.memberH.Descendants))
	mux.Handle("GET /api/families/{family_id}/members/{id}/potential-parents", family(s.memberH.PotentialParents))
	mux.Handle("GET /api/families/{family_id}/members/{id}/deletion-plan", family(s.memberH.DeletionPlan))
	mux.Handle("GET /api/families/{family_id}/birthdays", family(s.memberH.Birthdays))
	mux.Handle("PUT /api/families/{family_id}/members/{id}/parent", admin(s.memberH.Reparent))
	mux.Handle("DELETE /api/families/{family_id}/members/{id}", admin(s.memberH.Delete))

	// Administration
	mux.Handle("GET /api/families", admin(s.familyH.List))
	mux.Handle("POST /api/families", admin(s.familyH.Create))
	mux.Handle("DELETE /api/families/{family_id}", admin(s.familyH.Delete))
	mux.Handle("GET /api/families/{family_id}/accounts", admin(s.accountH.ListByFamily))
	mux.Handle("GET /api/stats", admin(s.familyH.Stats))
	mux.Handle("POST /api/accounts", admin(s.accountH.Create))
	mux.Handle("POST /api/accounts/{id}/unblock", admin(s.accountH.Unblock))

	// Push notification API routes
	if s.pushH != nil {
		mux.Handle("POST /api/push/subscribe", authed(s.pushH.Subscribe))
		mux.Handle("DELETE /api/push/subscriptions/{id}", authed(s.pushH.Unsubscribe))
		mux.Handle("GET /api/push/subscriptions", authed(s.pushH.ListSubscriptions))
		mux.Handle("GET /api/push/vapid-key", authed(s.pushH.GetVAPIDKey))
		mux.Handle("POST /api/push/test", authed(s.pushH.TestNotification))
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
