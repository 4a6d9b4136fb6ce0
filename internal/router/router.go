package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/talebm/tutoring-enrollment/internal/handler"    // import the handlers that implement business logic
	"github.com/talebm/tutoring-enrollment/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Session management does not require an existing session: register,
	// login and both refresh variants only exchange credentials or tokens.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotating refresh: invalidates the presented refresh token.
	g.POST("/refresh", a.Refresh)
	// Non-rotating refresh: returns a fresh access token only.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a refresh token in the body (single session)
	// or a bearer token (all sessions); see the handler for details.
	g.POST("/logout", a.Logout)

	// Whoami endpoint behind the JWT middleware.  Both roles may call it.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT", "ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalogue endpoints.
// The response cache middleware is applied here and only here: the
// cache key is route+query with no user component, so caching an
// authenticated route would leak responses between users.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, mws ...echo.MiddlewareFunc) {
	g := e.Group("", mws...)
	// The currently open enrollment term, if any.
	g.GET("/v1/terms/active", p.ActiveTerm)
	// All open classes of the active term with live seat counts.
	g.GET("/v1/classes", p.ListClasses)
	// One class with its seat count.
	g.GET("/v1/classes/:id", p.GetClass)
}

// RegisterPaymentWebhook registers the card provider's callback
// endpoint.  It is authenticated by shared secret inside the handler,
// not by JWT, because the caller is the provider's backend.
func RegisterPaymentWebhook(e *echo.Echo, w *handler.PaymentWebhookHandler) {
	e.POST("/v1/payments/callback", w.Handle)
}
