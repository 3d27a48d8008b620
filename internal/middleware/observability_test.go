package middleware_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/observability"
)

func TestObservabilityCountsAPIRoutesOnly(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.Observability(zerolog.Nop()))
	app.Get("/api/v1/things/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "missing" {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendString("ok")
	})
	app.Get("/metrics-probe", func(c *fiber.Ctx) error { return c.SendString("ok") })

	requests := observability.HTTPRequests()
	errorsTotal := observability.HTTPErrors()
	beforeOK := testutil.ToFloat64(requests.WithLabelValues("GET", "/api/v1/things/:id", "200"))
	beforeMissing := testutil.ToFloat64(errorsTotal.WithLabelValues("GET", "/api/v1/things/:id", "404"))

	for _, target := range []string{"/api/v1/things/1", "/api/v1/things/2", "/api/v1/things/missing", "/metrics-probe"} {
		_, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
		require.NoError(t, err)
	}

	require.Equal(t, beforeOK+2, testutil.ToFloat64(requests.WithLabelValues("GET", "/api/v1/things/:id", "200")))
	require.Equal(t, beforeMissing+1, testutil.ToFloat64(errorsTotal.WithLabelValues("GET", "/api/v1/things/:id", "404")))
	require.Zero(t, testutil.ToFloat64(requests.WithLabelValues("GET", "/metrics-probe", "200")))
}
