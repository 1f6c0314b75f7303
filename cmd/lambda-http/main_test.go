package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiRequest(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		Version:  "2.0",
		RawPath:  path,
		Headers:  map[string]string{"X-Guest-Id": "g1"},
		RouteKey: "$default",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: method,
				Path:   path,
			},
		},
	}
}

func TestLazyProxyBuildsOnceAndServes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	builds := 0
	handler := lazyProxy(func() (*gin.Engine, error) {
		builds++
		r := gin.New()
		r.GET("/api/v1/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		return r, nil
	})

	for i := 0; i < 2; i++ {
		resp, err := handler(context.Background(), apiRequest(http.MethodGet, "/api/v1/health"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, resp.Body)
	}
	assert.Equal(t, 1, builds)
}

func TestLazyProxyReportsBootstrapFailure(t *testing.T) {
	boom := errors.New("DATABASE_URL is required")
	handler := lazyProxy(func() (*gin.Engine, error) { return nil, boom })

	resp, err := handler(context.Background(), apiRequest(http.MethodGet, "/api/v1/health"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body, "bootstrap failed")
}
