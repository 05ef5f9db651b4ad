package observability

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/akave-ai/logrelay/internal/config"
)

// NewApplication starts a New Relic agent. It returns nil, nil when no license
// key is configured.
func NewApplication(cfg *config.ObservabilityConfig) (*newrelic.Application, error) {
	if cfg == nil || !cfg.NewRelic.Enabled() {
		return nil, nil
	}
	name := cfg.NewRelic.AppName
	if name == "" {
		name = cfg.ServiceName + "-" + cfg.Environment
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(name),
		newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		func(c *newrelic.Config) {
			c.Labels = map[string]string{"env": cfg.Environment}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("new relic: %w", err)
	}
	return app, nil
}

// Middleware wraps every request in a New Relic web transaction and stores it
// in the request context for downstream segments.
func Middleware(app *newrelic.Application) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if app == nil {
			return next
		}
		return func(c echo.Context) error {
			r := c.Request()
			txn := app.StartTransaction(r.Method + " " + c.Path())
			defer txn.End()

			txn.SetWebRequestHTTP(r)
			c.Response().Writer = txn.SetWebResponse(c.Response().Writer)
			c.SetRequest(r.WithContext(newrelic.NewContext(r.Context(), txn)))

			err := next(c)
			if err != nil {
				txn.NoticeError(err)
			}
			return err
		}
	}
}

// Transport returns base wrapped so outbound calls become external segments
// of the transaction in the request context.
func Transport(app *newrelic.Application, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if app == nil {
		return base
	}
	return newrelic.NewRoundTripper(base)
}
