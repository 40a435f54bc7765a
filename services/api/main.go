package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sponsorhub/internal/config"
	"github.com/sponsorhub/internal/email"
	"github.com/sponsorhub/internal/handler"
	"github.com/sponsorhub/internal/logger"
	"github.com/sponsorhub/internal/middleware"
	"github.com/sponsorhub/internal/model"
	"github.com/sponsorhub/internal/push"
	"github.com/sponsorhub/internal/repository"
	"github.com/sponsorhub/internal/startup"
	"github.com/sponsorhub/internal/ws"
	"github.com/sponsorhub/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := pool.Exec(resetCtx, "UPDATE users SET is_online = false"); err != nil {
		logger.Errorf("reset online status: %v", err)
	}
	resetCancel()
	logger.Info("database connected, migrations applied")

	userRepo := repository.NewUserRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	campaignRepo := repository.NewCampaignRepository(pool)
	appRepo := repository.NewApplicationRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	typingRepo := repository.NewTypingRepository(pool)
	favRepo := repository.NewFavoriteRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	sender := email.NewSender(&cfg.SMTP)

	pushClient := push.NewClient(cfg.PushServiceURL)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(convRepo, msgRepo, userRepo, typingRepo, cfg.MaxWSConnections, pushClient)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	userH := handler.NewUserHandler(userRepo)
	profileH := handler.NewProfileHandler(profileRepo, userRepo)
	campaignH := handler.NewCampaignHandler(campaignRepo, historyRepo, favRepo, userRepo, profileRepo)
	appH := handler.NewApplicationHandler(appRepo, campaignRepo, convRepo, msgRepo, profileRepo, hub)
	convH := handler.NewConversationHandler(convRepo, userRepo, campaignRepo, profileRepo, hub)
	msgH := handler.NewMessageHandler(msgRepo, convRepo, userRepo, typingRepo, hub)
	favH := handler.NewFavoriteHandler(favRepo, campaignRepo)
	historyH := handler.NewHistoryHandler(historyRepo)
	adminH := handler.NewAdminHandler(userRepo, sender)
	fileH := handler.NewFileHandler(cfg)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)
	configH := handler.NewConfigHandler(cfg)
	pushH := handler.NewPushHandler(pushClient)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Never compress WebSocket responses: the wrapped ResponseWriter loses
	// http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id", "X-Timestamp", "X-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/cache", configH.GetCacheConfig)
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/files/{filename}", fileH.Serve)

	if cfg.AuthServiceURL != "" {
		authProxy := authProxyHandler(cfg.AuthServiceURL)
		r.Post("/api/auth/request-code", authProxy)
		r.Post("/api/auth/verify-code", authProxy)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthServiceValidate(cfg.AuthServiceURL, nil))

		// Account and profile stay reachable while approval is pending, so a
		// new user can see their status and finish their profile.
		r.Get("/api/users/me", userH.GetMe)
		r.Put("/api/users/me", userH.UpdateMe)
		r.Get("/api/profiles/me", profileH.GetMine)
		r.Put("/api/profiles/me", profileH.UpdateMine)
		r.Post("/api/files/upload", fileH.Upload)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireApproved(userRepo))

			r.Get("/api/users/{userId}", userH.GetUser)
			r.Get("/api/profiles/{userId}", profileH.GetPublic)

			r.Get("/api/campaigns", campaignH.List)
			r.Get("/api/campaigns/{campaignId}", campaignH.Get)
			r.Get("/api/history", historyH.Recent)
			r.Delete("/api/history", historyH.Clear)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdvertiser))
				r.Post("/api/campaigns", campaignH.Create)
				r.Get("/api/campaigns/mine", campaignH.ListMine)
				r.Put("/api/campaigns/{campaignId}", campaignH.Update)
				r.Put("/api/campaigns/{campaignId}/status", campaignH.UpdateStatus)
				r.Delete("/api/campaigns/{campaignId}", campaignH.Delete)
				r.Get("/api/campaigns/{campaignId}/applications", appH.ListForCampaign)
				r.Put("/api/applications/{applicationId}/decision", appH.Decide)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleInfluencer))
				r.Post("/api/campaigns/{campaignId}/apply", appH.Apply)
				r.Get("/api/applications/mine", appH.ListMine)
				r.Delete("/api/applications/{applicationId}", appH.Withdraw)
				r.Get("/api/favorites", favH.List)
				r.Post("/api/favorites/{campaignId}", favH.Add)
				r.Delete("/api/favorites/{campaignId}", favH.Remove)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))
				r.Get("/api/admin/pending", adminH.ListPending)
				r.Post("/api/admin/users/{userId}/approve", adminH.Approve)
				r.Post("/api/admin/users/{userId}/reject", adminH.Reject)
				r.Put("/api/admin/users/{userId}/disable", adminH.SetDisabled)
			})

			r.Get("/api/conversations", convH.List)
			r.Post("/api/conversations", convH.Create)
			r.Get("/api/conversations/{conversationId}", convH.Get)
			r.Put("/api/conversations/{conversationId}/status", convH.UpdateStatus)
			r.Put("/api/conversations/{conversationId}/archive", convH.Archive)
			r.Put("/api/conversations/{conversationId}/block", convH.Block)
			r.Get("/api/conversations/{conversationId}/messages", msgH.GetMessages)
			r.Post("/api/conversations/{conversationId}/messages", msgH.SendMessage)
			r.Post("/api/conversations/{conversationId}/read", msgH.MarkAsRead)
			r.Put("/api/conversations/{conversationId}/typing", msgH.SetTyping)
			r.Get("/api/conversations/{conversationId}/typing", msgH.GetTyping)
			r.Delete("/api/messages/{messageId}", msgH.DeleteMessage)
			r.Get("/api/messages/unread-count", msgH.GetUnreadCount)

			r.Post("/api/push/subscribe", pushH.Subscribe)
			r.Delete("/api/push/subscribe", pushH.Unsubscribe)
			r.Get("/ws", wsH.ServeWS)
		})
	})

	webDist := "./web/dist"
	if info, err := os.Stat(webDist); err == nil && info.IsDir() {
		r.Get("/*", spaHandler(webDist))
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func authProxyHandler(authBaseURL string) http.HandlerFunc {
	client := &http.Client{Timeout: 15 * time.Second}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		targetURL := strings.TrimSuffix(authBaseURL, "/") + r.URL.Path
		proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, targetURL, bytes.NewReader(body))
		if err != nil {
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		proxyReq.Header.Set("Content-Type", r.Header.Get("Content-Type"))
		if proxyReq.Header.Get("Content-Type") == "" {
			proxyReq.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(proxyReq)
		if err != nil {
			logger.Errorf("auth proxy: %v", err)
			http.Error(w, `{"error":"auth service unavailable"}`, http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}
}

func spaHandler(dir string) http.HandlerFunc {
	fs := http.Dir(dir)
	fileServer := http.FileServer(fs)
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
		if path == "" {
			path = "index.html"
		}
		if f, err := fs.Open(path); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
		} else {
			f.Close()
			fileServer.ServeHTTP(w, r)
		}
	}
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	// ReadDir returns names sorted, so 001, 002, ... run in order.
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := migrations.Files.ReadFile(e.Name())
		if err != nil {
			logger.Errorf("read migration %s: %v", e.Name(), err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", e.Name(), err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "sponsorhub"
		password = "sponsorhub_secret"
		database = "sponsorhub"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
