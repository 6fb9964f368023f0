// cmd/migrate/main.go
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"eternalflame/internal/config"
	"eternalflame/internal/membership"
	"eternalflame/pkg/sqlgateway"
	"eternalflame/pkg/token"
)

func main() {
	role := flag.String("role", membership.RoleSuper, "role for the bootstrap admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	logger := config.SetupLogger(cfg)

	dbCfg := cfg.Database()
	if err := sqlgateway.Migrate(dbCfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	if cfg.AdminUsername == "" {
		logger.Info().Msg("ADMIN_USERNAME not set, skipping admin bootstrap")
		return
	}

	gw, err := sqlgateway.Open(dbCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accounts := membership.NewService(gw, token.NewCodec(cfg.JWTSecret, cfg.JWTTTL), nil, logger)
	created, err := accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, *role)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap admin")
	}
	logger.Info().Str("username", cfg.AdminUsername).Bool("created", created).Msg("admin bootstrap done")
}
