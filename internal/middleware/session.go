package middleware

import (
    "github.com/labstack/echo/v4"
)

// The booking session identifier travels either in this header or,
// for clients that cannot set headers, in a cookie of the same
// meaning.  The value is an opaque string minted by the front end;
// the server never generates or validates its format.
const (
    SessionHeader     = "X-Booking-Session"
    SessionCookie     = "booking_session"
    sessionContextKey = "booking_session_id"
)

// BookingSession extracts the caller's booking session identifier
// and stores it in the request context for handlers.  No session is
// not an error at this layer; operations that require one reject
// the request themselves.
func BookingSession() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            sid := c.Request().Header.Get(SessionHeader)
            if sid == "" {
                if ck, err := c.Cookie(SessionCookie); err == nil {
                    sid = ck.Value
                }
            }
            c.Set(sessionContextKey, sid)
            return next(c)
        }
    }
}

// SessionID returns the booking session stored by BookingSession,
// or "" when the caller supplied none.
func SessionID(c echo.Context) string {
    if v, ok := c.Get(sessionContextKey).(string); ok {
        return v
    }
    return ""
}
