package router

import (
    "github.com/labstack/echo/v4"

    "github.com/avicenna-clinic/booking-platform/internal/handler"
    "github.com/avicenna-clinic/booking-platform/internal/middleware"
)

// RegisterHolds registers the slot-hold protocol endpoints.  Holds
// are keyed by booking session, not by account, so these routes do
// not require a JWT: a visitor may hold a slot while still deciding
// whether to log in.  The rate limiter keeps one page from hammering
// the heartbeat.
func RegisterHolds(e *echo.Echo, h *handler.HoldHandler, limiter echo.MiddlewareFunc) {
    g := e.Group("/v1", middleware.BookingSession(), limiter)
    g.POST("/professionals/:id/hold", h.HoldSlot)
    g.DELETE("/professionals/:id/hold", h.ReleaseHold)
    g.GET("/professionals/:id/hold", h.CheckHold)
}

// RegisterBooking registers the appointment endpoints.  Creating or
// cancelling an appointment requires a logged-in patient; the
// booking session still travels along so the submit flow can gate on
// and consume the caller's hold.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
    g := e.Group(
        "/v1",
        middleware.BookingSession(),
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("PATIENT"),
        limiter,
    )
    g.POST("/professionals/:id/appointments", b.CreateAppointment)
    g.GET("/my-appointments", b.ListMyAppointments)
    g.DELETE("/appointments/:id", b.CancelAppointment)
}
