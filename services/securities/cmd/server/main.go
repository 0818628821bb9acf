package main

import (
	"context"
	"net/http"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/db"
	"github.com/RoterHund/securities-manager/services/securities/internal/engine"
	"github.com/RoterHund/securities-manager/services/securities/internal/identclient"
	"github.com/RoterHund/securities-manager/services/securities/internal/store"
)

type config struct {
	Port            string `env:"SERVICE_PORT" envDefault:"8082"`
	IdentityBaseURL string `env:"IDENTITY_BASE_URL" envDefault:"http://localhost:8081"`
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal("parse config", zap.Error(err))
	}

	ctx := context.Background()
	pool := db.MustConnect(ctx)
	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	eng := engine.New(st, engine.DefaultPolicy(), engine.NewAuthority(), log)
	ident := identclient.New(cfg.IdentityBaseURL)

	log.Info("securities service listening", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, newRouter(eng, ident, log)); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
