package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/app"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
)

const serviceName = "riddlen-stats-lambda"

var version = "dev"

var (
	initOnce sync.Once
	instance *app.App
	initErr  error
)

// build runs once per container, detached from the invocation context since
// the app outlives it. A failed build is kept and reported by every
// invocation.
func build() (*app.App, error) {
	initOnce.Do(func() {
		cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
		if err != nil {
			initErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		instance, initErr = app.New(context.Background(), cfg, serviceName, version)
		if initErr == nil {
			fmt.Println("[INIT] Stats Lambda initialized")
		}
	})
	return instance, initErr
}

// statsSource renders the stats body; *api.Server implements it
type statsSource interface {
	StatsJSON(ctx context.Context) ([]byte, bool, error)
	StatsCacheControl() string
}

// Handler serves GET /api/stats through API Gateway
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	a, err := build()
	if err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		return errorResponse(http.StatusInternalServerError, "service unavailable"), nil
	}

	resp := serve(ctx, req, a.Server)
	if resp.StatusCode >= http.StatusInternalServerError {
		a.Logger.LogWarn(ctx, "stats request failed", "status", resp.StatusCode, "body", resp.Body)
	}
	return resp, nil
}

func serve(ctx context.Context, req events.APIGatewayProxyRequest, src statsSource) events.APIGatewayProxyResponse {
	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodGet {
		return errorResponse(http.StatusMethodNotAllowed, "method not allowed")
	}

	data, hit, err := src.StatsJSON(ctx)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err.Error())
	}

	cacheStatus := "MISS"
	if hit {
		cacheStatus = "HIT"
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":  "application/json; charset=utf-8",
			"Cache-Control": src.StatsCacheControl(),
			"X-Cache":       cacheStatus,
		},
		Body: string(data),
	}
}

func errorResponse(status int, msg string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
		Body:       fmt.Sprintf(`{"error":%q}`, msg),
	}
}

func main() {
	lambda.Start(Handler)
}
