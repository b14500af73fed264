package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/avicenna-clinic/booking-platform/internal/middleware"
    "github.com/avicenna-clinic/booking-platform/internal/repository"
    "github.com/avicenna-clinic/booking-platform/internal/service"
    "github.com/avicenna-clinic/booking-platform/internal/utils"
)

// HoldHandler exposes the slot-hold protocol over HTTP.  The booking
// page calls HoldSlot repeatedly as a heartbeat while the patient
// fills the form, CheckHold to paint advisory state, and ReleaseHold
// when navigating away.  The actual concurrency rules live in the
// service layer; these handlers only translate between HTTP and the
// manager's result shapes.
type HoldHandler struct {
    Professionals *repository.ProfessionalRepo
    Holds         *service.SlotHoldManager
}

// NewHoldHandler constructs a HoldHandler.  Dependencies must be non-nil.
func NewHoldHandler(professionals *repository.ProfessionalRepo, holds *service.SlotHoldManager) *HoldHandler {
    if professionals == nil || holds == nil {
        panic("nil dependency passed to NewHoldHandler")
    }
    return &HoldHandler{Professionals: professionals, Holds: holds}
}

type holdReq struct {
    Date      string `json:"date" validate:"required,datetime=2006-01-02"`
    StartTime string `json:"start_time" validate:"required"`
}

// parseSlot resolves the professional and the slot tuple shared by
// every hold endpoint.  It answers with the HTTP error itself and
// returns ok=false when the request is unusable.
func (h *HoldHandler) parseSlot(c echo.Context, date, startTime string) (professionalID uint64, slotDate, slotStart time.Time, ok bool) {
    professionalID, err := pathID(c, "id")
    if err != nil {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid professional id"})
        return 0, time.Time{}, time.Time{}, false
    }
    if _, err := h.Professionals.GetByID(c.Request().Context(), professionalID); err != nil {
        if err == repository.ErrProfessionalNotFound {
            _ = c.JSON(http.StatusNotFound, echo.Map{"error": "professional not found"})
        } else {
            _ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
        return 0, time.Time{}, time.Time{}, false
    }
    slotDate, err = utils.ParseSlotDate(date)
    if err != nil {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
        return 0, time.Time{}, time.Time{}, false
    }
    slotStart, err = utils.ParseSlotStart(slotDate, startTime)
    if err != nil {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start time"})
        return 0, time.Time{}, time.Time{}, false
    }
    return professionalID, slotDate, slotStart, true
}

// HoldSlot handles POST /v1/professionals/:id/hold.  It places or
// extends a five-minute hold on one slot for the caller's booking
// session.  Business rejections come back as 409 with the
// machine-readable kind; storage trouble is a 500 with the
// HOLD_CREATE_FAILED kind.
func (h *HoldHandler) HoldSlot(c echo.Context) error {
    sessionID := middleware.SessionID(c)
    if sessionID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking session required"})
    }
    var req holdReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "date and start_time are required"})
    }
    professionalID, slotDate, slotStart, ok := h.parseSlot(c, req.Date, req.StartTime)
    if !ok {
        return nil
    }

    res := h.Holds.CreateSlotHold(c.Request().Context(), professionalID, slotDate, slotStart, sessionID)
    if !res.Created {
        status := http.StatusConflict
        if res.Kind == service.KindHoldCreateFailed {
            status = http.StatusInternalServerError
        }
        return c.JSON(status, echo.Map{"kind": res.Kind, "error": res.Message})
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "hold_id":    res.HoldID,
        "expires_at": res.ExpiresAt.Format(time.RFC3339),
    })
}

// ReleaseHold handles DELETE /v1/professionals/:id/hold.  It drops
// the caller's hold on the slot given by the date and start_time
// query parameters.  Releasing a hold that no longer exists is fine;
// the response just reports released=false.
func (h *HoldHandler) ReleaseHold(c echo.Context) error {
    sessionID := middleware.SessionID(c)
    if sessionID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking session required"})
    }
    professionalID, slotDate, slotStart, ok := h.parseSlot(c, c.QueryParam("date"), c.QueryParam("start_time"))
    if !ok {
        return nil
    }
    released := h.Holds.ReleaseSlotHold(c.Request().Context(), professionalID, slotDate, slotStart, sessionID)
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// CheckHold handles GET /v1/professionals/:id/hold.  It reports
// advisory hold state for the slot given by the date and start_time
// query parameters.  The booking session is optional here; without
// one the answer can still say the slot is held, just never by the
// caller.
func (h *HoldHandler) CheckHold(c echo.Context) error {
    professionalID, slotDate, slotStart, ok := h.parseSlot(c, c.QueryParam("date"), c.QueryParam("start_time"))
    if !ok {
        return nil
    }
    status := h.Holds.CheckSlotHold(c.Request().Context(), professionalID, slotDate, slotStart, middleware.SessionID(c))
    return c.JSON(http.StatusOK, status)
}
