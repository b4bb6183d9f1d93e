package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kortstore/internal/adapter/repo"
	"kortstore/internal/events"
	"kortstore/internal/http/handlers"
	"kortstore/internal/http/httpapi"
	"kortstore/internal/infra"
	"kortstore/internal/infra/geoip"
	"kortstore/internal/realtime"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Accounts live in MongoDB, orders in PostgreSQL.
	mongoDB, err := infra.NewMongoDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mongodb")
	}
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	accounts := repo.NewAccountRepository(mongoDB)
	orders := repo.NewOrderRepository(dbpool)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaTopic, logger, cfg.KafkaBrokers...)
		defer func() { _ = kp.Close() }()
		publisher = kp
	}

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	app := &handlers.App{
		Logger:               logger,
		JWTSecret:            cfg.JWTSecret,
		AllowLegacyPlaintext: cfg.AllowLegacyPlaintext,
		Accounts:             accounts,
		Orders:               orders,
		Events:               publisher,
	}
	if geo != nil {
		app.Geo = geo
		defer func() { _ = geo.Close() }()
	}

	// Realtime: change stream -> hub -> websocket clients.
	hub := realtime.NewHub(logger)
	watcher := realtime.NewWatcher(accounts, hub, logger)
	go watcher.Run(ctx)

	router := httpapi.NewRouter(httpapi.Options{
		App:            app,
		WS:             realtime.NewWSHandler(hub, cfg.JWTSecret, logger),
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		LoginPerMinute: cfg.LoginRatePerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	hub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
