package main

import (
	"context"
	"log"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/makerbridge/marketplace-backend/config"
	"github.com/makerbridge/marketplace-backend/internal/auth"
	"github.com/makerbridge/marketplace-backend/internal/bootstrap"
	"github.com/makerbridge/marketplace-backend/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	db, err := bootstrap.OpenDB(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	sqlDB, err := bootstrap.OpenSQLDB(cfg.Database)
	if err != nil {
		log.Fatalf("postgres (database/sql): %v", err)
	}
	defer sqlDB.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	var authClient *fbauth.Client
	if cfg.Firebase.CredentialsPath != "" {
		authClient, err = auth.InitializeFirebase(&cfg.Firebase)
		if err != nil {
			log.Fatalf("firebase: %v", err)
		}
	} else {
		log.Println("No Firebase credentials configured, using header identity")
	}

	deps := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Cfg:        cfg,
		DB:         db,
		SQLDB:      sqlDB,
		Redis:      rdb,
		AuthClient: authClient,
	})

	deps.Broker.StartHeartbeat(ctx, cfg.Realtime.HeartbeatInterval)
	jobs.NewScheduler(deps.NotifRepo, deps.RetryQueue).Start()

	log.Printf("%s %s listening on :%s", cfg.App.ServiceName, cfg.App.Version, cfg.Server.Port)
	if err := deps.Router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
