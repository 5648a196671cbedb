package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/pointkeeper/internal/export"
	"github.com/dukerupert/pointkeeper/internal/handler"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/middleware"
	"github.com/dukerupert/pointkeeper/internal/store"
	ws "github.com/dukerupert/pointkeeper/internal/websocket"
)

const loginRateLimit = 10

// Options carries the server's dependencies.
type Options struct {
	Ledger          *ledger.Ledger
	Sessions        *store.SessionStore
	Exports         *export.Manager
	Hub             *ws.Hub
	SessionTTL      time.Duration
	PublicRateLimit int
	// TrustedProxies are the networks allowed to name the client through
	// forwarding headers. Empty means every peer is the client itself.
	TrustedProxies []netip.Prefix
	// OriginPatterns lists extra origins allowed to open /ws.
	OriginPatterns []string
	Logger         *slog.Logger
}

type Server struct {
	ledger         *ledger.Ledger
	hub            *ws.Hub
	sessionStore   *store.SessionStore
	rateLimiter    *middleware.RateLimiter
	proxies        *middleware.TrustedProxies
	publicLimit    int
	originPatterns []string

	authH        *handler.AuthHandler
	memberH      *handler.MemberHandler
	ruleH        *handler.RuleHandler
	transactionH *handler.TransactionHandler
	appealH      *handler.AppealHandler
	archiveH     *handler.ArchiveHandler
	userH        *handler.UserHandler
	dataH        *handler.DataHandler
	publicH      *handler.PublicHandler
	logger       *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if opts.PublicRateLimit <= 0 {
		opts.PublicRateLimit = 30
	}
	return &Server{
		ledger:         opts.Ledger,
		hub:            opts.Hub,
		sessionStore:   opts.Sessions,
		rateLimiter:    middleware.NewRateLimiter(),
		proxies:        middleware.NewTrustedProxies(opts.TrustedProxies),
		publicLimit:    opts.PublicRateLimit,
		originPatterns: opts.OriginPatterns,
		authH:          handler.NewAuthHandler(opts.Ledger, opts.Sessions, opts.SessionTTL, logger.With("component", "auth")),
		memberH:        handler.NewMemberHandler(opts.Ledger, logger.With("component", "member")),
		ruleH:          handler.NewRuleHandler(opts.Ledger, logger.With("component", "rule")),
		transactionH:   handler.NewTransactionHandler(opts.Ledger, logger.With("component", "transaction")),
		appealH:        handler.NewAppealHandler(opts.Ledger, logger.With("component", "appeal")),
		archiveH:       handler.NewArchiveHandler(opts.Ledger, opts.Exports, logger.With("component", "archive")),
		userH:          handler.NewUserHandler(opts.Ledger, opts.Sessions, logger.With("component", "user")),
		dataH:          handler.NewDataHandler(opts.Ledger, logger.With("component", "data")),
		publicH:        handler.NewPublicHandler(opts.Ledger, logger.With("component", "public")),
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", promhttp.Handler())
	outerMux.Handle("POST /login", s.limit("login", loginRateLimit, s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.Handle("POST /api/public/lookup", s.limit("public_lookup", s.publicLimit, s.publicH.Lookup))
	outerMux.Handle("POST /api/public/appeals", s.limit("public_appeal", s.publicLimit, s.publicH.FileAppeal))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.ledger)
	outerMux.Handle("/", authMiddleware(protectedMux))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return s.proxies.Middleware(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// limit allows n requests per client per minute on route.
func (s *Server) limit(route string, n int, h http.HandlerFunc) http.Handler {
	return s.rateLimiter.Limit(route, n, time.Minute)(h)
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Members
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.HandleFunc("GET /api/members/{id}/transactions", s.memberH.Transactions)
	mux.HandleFunc("GET /api/leaderboard", s.memberH.Leaderboard)
	mux.Handle("POST /api/members", admin(s.memberH.Create))
	mux.Handle("POST /api/members/bulk", admin(s.memberH.BulkCreate))
	mux.Handle("PATCH /api/members", admin(s.memberH.BulkUpdate))
	mux.Handle("POST /api/members/bulk-delete", admin(s.memberH.BulkDelete))
	mux.Handle("PUT /api/members/{id}", admin(s.memberH.Update))
	mux.Handle("DELETE /api/members/{id}", admin(s.memberH.Delete))

	// Rules and warnings
	mux.HandleFunc("GET /api/rules", s.ruleH.List)
	mux.Handle("POST /api/rules", admin(s.ruleH.Create))
	mux.Handle("POST /api/rules/bulk", admin(s.ruleH.BulkCreate))
	mux.Handle("POST /api/rules/bulk-delete", admin(s.ruleH.BulkDelete))
	mux.Handle("DELETE /api/rules/{id}", admin(s.ruleH.Delete))
	mux.HandleFunc("GET /api/warning-rules", s.ruleH.ListWarningRules)
	mux.Handle("POST /api/warning-rules", admin(s.ruleH.CreateWarningRule))
	mux.Handle("DELETE /api/warning-rules/{id}", admin(s.ruleH.DeleteWarningRule))
	mux.HandleFunc("GET /api/warnings", s.ruleH.Warnings)
	mux.HandleFunc("POST /api/warnings/confirm", s.ruleH.ConfirmWarning)

	// Transactions
	mux.HandleFunc("GET /api/transactions", s.transactionH.List)
	mux.HandleFunc("POST /api/transactions", s.transactionH.Record)
	mux.Handle("DELETE /api/transactions/{id}", admin(s.transactionH.Revert))
	mux.HandleFunc("GET /api/audit-logs", s.transactionH.AuditLogs)

	// Appeals
	mux.HandleFunc("GET /api/appeals", s.appealH.List)
	mux.Handle("POST /api/appeals/{id}/resolve", admin(s.appealH.Resolve))

	// Archives and exports
	mux.HandleFunc("GET /api/archives", s.archiveH.List)
	mux.HandleFunc("GET /api/archives/{id}", s.archiveH.Get)
	mux.Handle("POST /api/archives", admin(s.archiveH.Create))
	mux.Handle("DELETE /api/archives/{id}", admin(s.archiveH.Delete))
	mux.Handle("POST /api/archives/{id}/export", admin(s.archiveH.Export))
	mux.Handle("GET /api/exports", admin(s.archiveH.ListExports))
	mux.Handle("GET /api/exports/{id}/download", admin(s.archiveH.Download))

	// Users
	mux.Handle("GET /api/users", admin(s.userH.List))
	mux.Handle("POST /api/users", admin(s.userH.Create))
	mux.Handle("PUT /api/users/{id}", admin(s.userH.Update))
	mux.Handle("DELETE /api/users/{id}", admin(s.userH.Delete))

	// Data sync
	mux.Handle("GET /api/data", admin(s.dataH.Get))
	mux.Handle("POST /api/data", admin(s.dataH.Import))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket")))
}
