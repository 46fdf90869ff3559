package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// HeaderPolicy tunes SecurityHeaders.
type HeaderPolicy struct {
	// HSTSMaxAge is announced on https requests only. Zero disables HSTS.
	HSTSMaxAge time.Duration
	// CrossOrigin lets a dashboard on another origin read API responses.
	// Without it responses are readable by same-site pages only.
	CrossOrigin bool
}

// DefaultHeaderPolicy announces HSTS for a year and keeps responses same-site.
func DefaultHeaderPolicy() HeaderPolicy {
	return HeaderPolicy{HSTSMaxAge: 365 * 24 * time.Hour}
}

// SecurityHeaders returns middleware that sets the response headers of a
// JSON-only API. Responses under /api/ carry patient answers and are never
// cached; health endpoints may be cached but must be revalidated.
func SecurityHeaders(p HeaderPolicy) echo.MiddlewareFunc {
	var hsts string
	if p.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(int(p.HSTSMaxAge.Seconds())) + "; includeSubDomains"
	}
	resourcePolicy := "same-site"
	if p.CrossOrigin {
		resourcePolicy = "cross-origin"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			// Nothing is ever rendered from these responses.
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cross-Origin-Resource-Policy", resourcePolicy)
			h.Set("Referrer-Policy", "no-referrer")

			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
				h.Add("Vary", "Authorization")
			} else {
				h.Set("Cache-Control", "no-cache")
			}

			if hsts != "" && c.Scheme() == "https" {
				h.Set("Strict-Transport-Security", hsts)
			}
			return next(c)
		}
	}
}
