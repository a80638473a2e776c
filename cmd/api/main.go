package main

import (
	"flag"
	"log"
	"time"

	"github.com/streamtheme-io/streamtheme/internal/api"
	"github.com/streamtheme-io/streamtheme/internal/auth"
	"github.com/streamtheme-io/streamtheme/internal/config"
	"github.com/streamtheme-io/streamtheme/internal/database"
	"github.com/streamtheme-io/streamtheme/internal/email"
	"github.com/streamtheme-io/streamtheme/internal/payment"
	"github.com/streamtheme-io/streamtheme/internal/storage"
	"github.com/streamtheme-io/streamtheme/internal/store"
)

func main() {
	configPath := flag.String("config", "app.yml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Init(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	stopKeepalive := database.StartKeepalive(db, time.Duration(cfg.Database.KeepaliveSecs)*time.Second)
	defer stopKeepalive()

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret)
	if err != nil {
		log.Fatalf("Failed to initialize token manager: %v", err)
	}

	payments := payment.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	mailer := email.NewMailer(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.ClientURL)

	var files *storage.S3Client
	if cfg.Storage.Enabled {
		files, err = storage.NewS3Client(
			cfg.Storage.Endpoint, cfg.Storage.Region, cfg.Storage.Bucket,
			cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey,
		)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
	}

	api.InitPrometheus()

	app, err := api.NewApi(cfg, store.New(db), tokens, payments, mailer, files)
	if err != nil {
		log.Fatalf("Failed to initialize API: %v", err)
	}

	app.Serve()
}
