package main

import (
	"context"
	"log"

	"github.com/Jointkeeper/Soulware-web/app"
	appconfig "github.com/Jointkeeper/Soulware-web/app/config"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := appconfig.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := app.OpenDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}

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

	// Wrap Gin router with Lambda adapter
	ginLambda = ginadapter.New(router)
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
