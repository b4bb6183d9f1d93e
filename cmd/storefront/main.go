package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"kortstore/internal/apiclient"
	"kortstore/internal/cart"
	"kortstore/internal/catalog"
	"kortstore/internal/checkout"
	"kortstore/internal/currency"
	"kortstore/internal/domain"
	"kortstore/internal/infra"
	"kortstore/internal/payment"
	"kortstore/internal/realtime"
	"kortstore/internal/session"
	"kortstore/internal/store"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadClientConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, err := openProfileStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("storefront: open profile store failed")
	}

	sessions := session.NewManager(profile, logger)
	api := apiclient.New(apiclient.Options{BaseURL: cfg.APIBaseURL, Logger: logger})

	engine := cart.NewEngine(profile, sessions, logger)
	go func() {
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("storefront: cart watcher stopped")
		}
	}()

	source := catalog.NewSource(catalog.SourceOptions{
		Owner:  cfg.CatalogOwner,
		Repo:   cfg.CatalogRepo,
		Branch: cfg.CatalogBranch,
		Path:   cfg.CatalogPath,
		Token:  cfg.CatalogToken,
		Logger: logger,
		Store:  profile,
	})
	catalogMgr := catalog.NewManager(source, logger)

	gateway := payment.NewMercadoPago(payment.MercadoPagoOptions{
		PublicKey: cfg.PaymentPublicKey,
		BaseURL:   cfg.PaymentBaseURL,
		Logger:    logger,
	})
	orchestrator := checkout.NewOrchestrator(engine, sessions, api, gateway, profile, logger)

	// Every catalog update re-syncs cart lines with current prices.
	catalogMgr.Subscribe(func(snap *domain.CatalogSnapshot) {
		if orchestrator.Reconcile(snap) {
			logger.Info().Msg("storefront: cart reconciled with catalog update")
		}
	})
	if _, err := catalogMgr.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("storefront: initial catalog fetch failed")
	}
	catalogMgr.StartPolling(ctx, cfg.CatalogPollInterval)
	defer catalogMgr.StopPolling()

	// Account pushes: refetch the profile and refresh the stored session.
	listener := realtime.NewListener(cfg.WSURL, sessions, func(ctx context.Context) {
		token := sessions.Token()
		if token == "" {
			return
		}
		account, err := api.Me(ctx, token)
		if err != nil {
			logger.Warn().Err(err).Msg("storefront: profile refresh failed")
			return
		}
		err = sessions.Set(domain.Session{
			Username: account.Username,
			Email:    account.Email,
			Role:     account.Role,
			Token:    token,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("storefront: session refresh failed")
			return
		}
		logger.Info().Str("username", account.Username).Msg("storefront: profile updated")
	}, logger)
	go listener.Run(ctx)

	showPendingToast(profile, logger)
	logger.Info().Float64("cart_total", engine.Total()).
		Msgf("storefront ready, cart holds %s", currency.BRL(engine.Total()))

	<-ctx.Done()
	logger.Info().Msg("storefront stopped")
}

// openProfileStore picks the profile backend: Redis when configured, a
// directory of JSON files otherwise.
func openProfileStore(cfg *infra.ClientConfig) (store.Store, error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedisStore(client, cfg.ProfileName)
	}
	return store.NewFileStore(filepath.Join(cfg.ProfileDir, cfg.ProfileName))
}

// showPendingToast surfaces and consumes the message a previous run left
// behind, e.g. "log in to finish checkout".
func showPendingToast(profile store.Store, logger infra.Logger) {
	msg, ok, err := profile.Get(store.KeyPendingToast)
	if err != nil || !ok || len(msg) == 0 {
		return
	}
	logger.Info().Msgf("notice: %s", string(msg))
	if err := profile.Delete(store.KeyPendingToast); err != nil {
		logger.Warn().Err(err).Msg("storefront: clear pending toast failed")
	}
}
