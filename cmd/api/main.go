// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"eternalflame/internal/admin"
	"eternalflame/internal/calculation"
	"eternalflame/internal/clients"
	"eternalflame/internal/config"
	"eternalflame/internal/membership"
	"eternalflame/internal/server"
	"eternalflame/internal/telemetry"
	"eternalflame/pkg/sqlgateway"
	"eternalflame/pkg/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	logger := config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Version:     config.Version,
		Environment: cfg.AppEnv,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("flush traces")
		}
	}()

	dbCfg := cfg.Database()
	if err := sqlgateway.Migrate(dbCfg, logger); err != nil {
		return err
	}
	gw, err := sqlgateway.Open(dbCfg)
	if err != nil {
		return err
	}
	defer gw.Close()

	codec := token.NewCodec(cfg.JWTSecret, cfg.JWTTTL)
	accounts := membership.NewService(gw, codec, membership.NewLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst), logger)
	if cfg.AdminUsername != "" {
		if _, err := accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, membership.RoleSuper); err != nil {
			return err
		}
	}

	var translator clients.Translator = clients.NoopTranslator{}
	if cfg.TranslateURL != "" {
		translator = clients.NewTranslatorClient(clients.TranslatorConfig{
			BaseURL:   cfg.TranslateURL,
			APIKey:    cfg.TranslateAPIKey,
			Timeout:   cfg.TranslateTimeout,
			CacheSize: cfg.TranslateCacheSize,
		}, logger)
	}

	calc := calculation.NewService(translator, codec, calculation.NewAuditStore(gw), logger, calculation.Options{
		ScheduleCount: cfg.ScheduleCount,
		Location:      cfg.Location,
	})

	srv := server.New(server.Config{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.HTTPReadTimeout,
		WriteTimeout:    cfg.HTTPWriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger, codec, gw,
		membership.NewHandler(accounts),
		calculation.NewHandler(calc),
		admin.NewHandler(admin.NewService(gw, cfg.Location, logger)),
	)

	logger.Info().
		Str("env", cfg.AppEnv).
		Str("backend", cfg.DBBackend).
		Bool("translation", cfg.TranslateURL != "").
		Msg("starting eternalflame api")
	return srv.Run(ctx)
}
