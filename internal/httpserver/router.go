package httpserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chatserver/internal/config"
	"chatserver/internal/metrics"
	"chatserver/internal/security"
	"chatserver/internal/service"
	"chatserver/internal/store/sqlite"
	"chatserver/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services,
// and middleware. The returned ws.Router is shared with the socket
// endpoint so REST-driven group changes reach live connections.
func NewRouter(
	cfg *config.Config,
	db *sql.DB,
	hub *ws.Hub,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	log *zap.Logger,
	m *metrics.Metrics,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOriginList(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Repositories
	userRepo := sqlite.NewUserRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	groupRepo := sqlite.NewGroupRepo(db)
	partRepo := sqlite.NewParticipantRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	// Services
	authSvc := service.NewAuthService(userRepo, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(userRepo)
	convSvc := service.NewConversationService(convRepo, groupRepo, partRepo)
	groupSvc := service.NewGroupService(groupRepo, partRepo, userRepo)
	msgSvc := service.NewMessageService(convRepo, partRepo, msgRepo)

	wsRouter := ws.NewRouter(hub, userSvc, convSvc, groupSvc, msgSvc, cfg.EventTimeout, log, m)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName + " API",
			"version": "1.0.0",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, userSvc, log))

			r.Post("/auth/logout", handleLogout(authSvc))
			r.Get("/auth/me", handleMe())

			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(userSvc))
				r.Get("/online", handleListOnlineUsers(userSvc))
				r.Get("/{userID}", handleGetUser(userSvc))
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", handleListConversations(convSvc))
				r.Get("/{conversationID}", handleGetConversation(convSvc))
				r.Get("/{conversationID}/messages", handleListMessages(msgSvc, cfg.MessageHistoryLimit))
			})

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", handleCreateGroup(groupSvc, wsRouter))
				r.Get("/", handleListMyGroups(groupSvc))
				r.Get("/my", handleListCreatedGroups(groupSvc))
				r.Get("/{groupID}", handleGroupDetail(groupSvc))
				r.Post("/{groupID}/members", handleAddGroupMember(groupSvc, wsRouter))
				r.Delete("/{groupID}/members/{userID}", handleRemoveGroupMember(groupSvc, wsRouter))
			})
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(wsRouter, tokenSvc, userSvc, cfg.CORSOriginList(), log, m))

	return r
}

// requestLogger logs one line per request with status and latency.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
