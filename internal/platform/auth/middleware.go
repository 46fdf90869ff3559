package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// DevFHIRIDHeader and DevRolesHeader let local callers pick an identity when
// DevAuthMiddleware is active.
const (
	DevFHIRIDHeader = "X-Dev-FHIR-ID"
	DevRolesHeader  = "X-Dev-Roles"
)

// Claims are the bearer token claims. FHIRResourceID is the id of the
// Practitioner or Patient resource the caller acts as.
type Claims struct {
	jwt.RegisteredClaims
	Roles          []string `json:"roles"`
	FHIRResourceID string   `json:"fhir_resource_id"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation for development and tests.
	SigningKey []byte
	Skipper    func(c echo.Context) bool
}

// Identity is the authenticated caller.
type Identity struct {
	UserID         string
	Roles          []string
	FHIRResourceID string
}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func identityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

func setIdentity(c echo.Context, id Identity) {
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	jwksURL := cfg.JWKSURL
	if jwksURL == "" && cfg.Issuer != "" && len(cfg.SigningKey) == 0 {
		if provider, err := NewOIDCProvider(cfg.Issuer); err == nil {
			jwksURL = provider.JWKSURI
		}
	}

	var keyFunc jwt.Keyfunc
	if len(cfg.SigningKey) > 0 {
		keyFunc = func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	} else {
		keyFunc = jwksKeyFunc(jwksURL)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setIdentity(c, Identity{
				UserID:         claims.Subject,
				Roles:          claims.Roles,
				FHIRResourceID: claims.FHIRResourceID,
			})
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for local development.
// Requests without an Authorization header act as admin unless X-Dev-Roles
// names other roles; X-Dev-FHIR-ID sets the acting FHIR resource. Requests
// carrying a token are handed to fallback when one is given.
func DevAuthMiddleware(fallback echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := next
		if fallback != nil {
			withToken = fallback(next)
		}
		return func(c echo.Context) error {
			req := c.Request()
			if req.Header.Get("Authorization") != "" {
				return withToken(c)
			}

			roles := []string{RoleAdmin}
			if h := req.Header.Get(DevRolesHeader); h != "" {
				roles = roles[:0]
				for _, r := range strings.Split(h, ",") {
					if r = strings.TrimSpace(r); r != "" {
						roles = append(roles, r)
					}
				}
			}
			setIdentity(c, Identity{
				UserID:         "dev-user",
				Roles:          roles,
				FHIRResourceID: req.Header.Get(DevFHIRIDHeader),
			})
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).UserID
}

func RolesFromContext(ctx context.Context) []string {
	return identityFrom(ctx).Roles
}

// FHIRResourceIDFromContext returns the FHIR id of the Practitioner or Patient
// the caller acts as.
func FHIRResourceIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).FHIRResourceID
}
