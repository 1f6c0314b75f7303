package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"docsign-backend/internal/bootstrap"
	"docsign-backend/internal/shared/config"
	"docsign-backend/internal/shared/telemetry"
)

type proxyFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// lazyProxy builds the router on the first invocation and reuses it for the
// lifetime of the execution environment. A failed build is not retried; the
// runtime replaces the environment after the returned error.
func lazyProxy(build func() (*gin.Engine, error)) proxyFunc {
	var (
		once  sync.Once
		proxy *ginadapter.GinLambdaV2
		err   error
	)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		once.Do(func() {
			var router *gin.Engine
			if router, err = build(); err == nil {
				proxy = ginadapter.NewV2(router)
			}
		})
		if err != nil {
			telemetry.Error("lambda.http.bootstrap_failed", telemetry.Err(nil, err))
			return events.APIGatewayV2HTTPResponse{
				StatusCode: http.StatusInternalServerError,
				Body:       `{"error":{"code":"internal","message":"bootstrap failed"}}`,
				Headers:    map[string]string{"Content-Type": "application/json"},
			}, err
		}
		return proxy.ProxyWithContext(ctx, req)
	}
}

func buildRouter() (*gin.Engine, error) {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		return nil, err
	}
	// API Gateway HTTP APIs cannot hold websocket streams, so clients on
	// Lambda poll /documents/:id/signers instead of /events.
	telemetry.Info("lambda.http.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"database":     app.DB != nil,
	})
	return app.Router, nil
}

func main() {
	lambda.Start(lazyProxy(buildRouter))
}
