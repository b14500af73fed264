package router // registers HTTP routes for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/avicenna-clinic/booking-platform/internal/handler"
    "github.com/avicenna-clinic/booking-platform/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication.
// The health check is used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated booking-page
// endpoints: the professional directory and the availability grid.
// The booking-session middleware runs here so the grid can flag the
// caller's own holds, but no session is required to browse.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler) {
    g := e.Group("/v1", middleware.BookingSession())
    g.GET("/professionals", p.ListProfessionals)
    g.GET("/professionals/:id/availability", p.Availability)
}

// RegisterAuth registers authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid access
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole("PATIENT", "PROFESSIONAL"))
    auth.GET("/me", a.Me)
}
