package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "staysense/internal/adapters/http_server"
	"staysense/internal/adapters/mapbox"
	"staysense/internal/adapters/objectstore"
	"staysense/internal/adapters/observability"
	"staysense/internal/adapters/payment"
	redisad "staysense/internal/adapters/redis"
	"staysense/internal/adapters/session"
	"staysense/internal/app"
	"staysense/internal/domain"
	"staysense/internal/shared"
	mysqlrepo "staysense/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	repo := mysqlrepo.New(db)

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; cache and logout revocation degraded")
	}

	// external collaborators; a missing one disables its feature only
	var geo domain.Geocoder
	if gc, err := mapbox.New(cfg.MapboxBaseURL, cfg.MapboxToken, cfg.GeocoderRPS); err != nil {
		log.Warn().Err(err).Msg("geocoding disabled")
	} else {
		geo = gc
	}

	var images domain.ImageStore
	if st, err := objectstore.New(ctx, objectstore.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
		PublicURL: cfg.S3PublicURL,
	}); err != nil {
		log.Warn().Err(err).Msg("image uploads disabled")
	} else {
		images = st
	}

	var gateway domain.PaymentGateway
	if gw, err := payment.NewStripe(cfg.StripeSecretKey); err != nil {
		log.Warn().Err(err).Msg("checkout disabled")
	} else {
		gateway = gw
	}

	hotels := app.NewHotelService(repo, cache, images, geo, cfg.CacheTTL(), cfg.UploadWorkers)
	users := app.NewUserService(repo, repo)
	checkout := app.NewCheckoutService(repo, gateway, cfg.BaseURL, cfg.CheckoutCurrency)

	view, err := server.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("templates failed to parse")
	}

	// http
	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure, cache)
	srv := server.New(sessions)
	reg := observability.InitRegistry()
	metrics := observability.MetricsHandler(reg)
	srv.Mount("/metrics", metrics)
	srv.MountHandlers(&server.Handlers{Hotels: hotels, Users: users, Checkout: checkout, View: view})
	observability.Serve(cfg.MetricsAddr, metrics)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("web app listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
