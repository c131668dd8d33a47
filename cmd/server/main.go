package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/sonyflake"
	"go.uber.org/zap"

	"chatwire/internal/assets"
	"chatwire/internal/chat"
	"chatwire/internal/config"
	"chatwire/internal/metrics"
	mw "chatwire/internal/middleware"
	"chatwire/internal/presence"
	"chatwire/internal/store"
	"chatwire/internal/user"
)

// Version is injected via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	var cfgPaths string
	flag.StringVar(&cfgPaths, "c", "", "config file path (supports: a.yml,b.yml)")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(cfgPaths)
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	if cfg.Env == "development" {
		if dev, err := zap.NewDevelopment(); err == nil {
			log = dev
		}
	}
	log.Info("chatwire starting",
		zap.String("version", Version),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("db_driver", cfg.DB.Driver))

	metrics.Register()

	ctx := context.Background()

	// Durable store.
	sf := sonyflake.NewSonyflake(sonyflake.Settings{})
	if sf == nil {
		log.Fatal("sonyflake init failed")
	}
	var st store.Store
	switch cfg.DB.Driver {
	case "sqlite":
		st, err = store.NewSQLiteStore(ctx, cfg.DB.DSN, sf)
	default:
		st, err = store.NewPostgresStore(ctx, cfg.DB.DSN, sf)
	}
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}
	defer st.Close()

	// Redis backs the asset host.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()
	assetStore := assets.New(rdb, cfg.Assets.BaseURL)

	// Presence core.
	registry := presence.NewRegistry()
	hub := chat.NewHub(registry, log.Named("hub"))

	// Features.
	userService := user.NewService(st, cfg.Auth.Secret, cfg.Auth.TokenTTL)
	userHandler := user.NewHandler(userService, assetStore, log.Named("user"), cfg.Env != "development")
	chatHandler := chat.NewHandler(hub, st, assetStore, log.Named("chat"))
	authMiddleware := mw.NewAuthMiddleware(userService)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(log.Named("http")))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	// Websocket entry point. The handshake's userId parameter binds the
	// session; the parameter is issued to clients by the authenticated
	// REST path, the transport itself stays open.
	r.Get("/ws", chatHandler.ServeWs)

	r.Get("/assets/{id}", assetStore.Serve)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", userHandler.Signup)
		r.Post("/login", userHandler.Login)
		r.Post("/logout", userHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handle)
			r.Get("/check", userHandler.Check)
			r.Put("/update-profile", userHandler.UpdateProfile)
		})
	})

	r.Route("/api/messages", func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/users", userHandler.Contacts)
		r.Get("/{id}", chatHandler.GetMessages)
		r.Post("/send/{id}", chatHandler.SendMessage)
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
	}
	log.Info("chatwire listening", zap.String("addr", cfg.HTTP.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
