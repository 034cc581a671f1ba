package main

import (
	"context"
	"log"

	"github.com/Jointkeeper/Soulware-web/app"
	appconfig "github.com/Jointkeeper/Soulware-web/app/config"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func main() {
	cfg, err := appconfig.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := app.OpenDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	log.Println("Connected to Postgres")

	var storage *s3.Client
	if cfg.Avatar.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatalf("failed to load AWS config: %v", err)
		}
		storage = s3.NewFromConfig(awsCfg)
	}

	server := app.NewServer(cfg, db, app.NewStripeClient(cfg), storage)

	router, err := server.NewRouter()
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}
	if err := router.Run("0.0.0.0:8080"); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
