package main

import (
	"context"
	"os"

	"github.com/go-faster/sdk/app"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appkg "github.com/xenking/laundry-billing/internal/app"
)

func main() {
	// Local development keeps secrets in .env; deployed environments set
	// real variables, which godotenv never overrides.
	if os.Getenv("LAUNDRY_ENV") != "production" {
		_ = godotenv.Load()
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		return appkg.Run(ctx, lg, m, cfg)
	})
}
