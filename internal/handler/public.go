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

// Slot statuses rendered on the availability grid.
const (
    slotFree   = "FREE"
    slotHeld   = "HELD"
    slotBooked = "BOOKED"
)

// PublicHandler serves the unauthenticated booking-page data:
// the professional directory and the per-day availability grid.
type PublicHandler struct {
    Professionals *repository.ProfessionalRepo
    Appointments  *repository.AppointmentRepo
    Holds         *service.SlotHoldManager
}

// NewPublicHandler constructs a PublicHandler.  Dependencies must be non-nil.
func NewPublicHandler(professionals *repository.ProfessionalRepo, appointments *repository.AppointmentRepo, holds *service.SlotHoldManager) *PublicHandler {
    if professionals == nil || appointments == nil || holds == nil {
        panic("nil dependency passed to NewPublicHandler")
    }
    return &PublicHandler{Professionals: professionals, Appointments: appointments, Holds: holds}
}

// ListProfessionals handles GET /v1/professionals.  It returns every
// active professional with the fields the booking page needs.
func (h *PublicHandler) ListProfessionals(c echo.Context) error {
    items, err := h.Professionals.ListActive(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load professionals"})
    }
    out := make([]echo.Map, 0, len(items))
    for _, p := range items {
        out = append(out, echo.Map{
            "id":           p.ID,
            "display_name": p.DisplayName,
            "specialty":    p.Specialty,
            "work_start":   p.WorkStart,
            "work_end":     p.WorkEnd,
            "slot_minutes": p.SlotMinutes,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Availability handles GET /v1/professionals/:id/availability?date=.
// It walks the professional's working hours in slot-sized steps and
// marks each slot FREE, HELD or BOOKED.  Booked wins over held: an
// appointment is durable state while a hold is only a grace window.
// The caller's own holds are flagged so the page can render "yours"
// differently.
func (h *PublicHandler) Availability(c echo.Context) error {
    professionalID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid professional id"})
    }
    ctx := c.Request().Context()
    prof, err := h.Professionals.GetByID(ctx, professionalID)
    if err != nil {
        if err == repository.ErrProfessionalNotFound {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "professional not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    date, err := utils.ParseSlotDate(c.QueryParam("date"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
    }

    bookedStarts, err := h.Appointments.BookedStartTimesForDate(ctx, professionalID, date)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load appointments"})
    }
    booked := make(map[string]bool, len(bookedStarts))
    for _, t := range bookedStarts {
        booked[utils.SlotTimeLabel(t)] = true
    }

    held := make(map[string]service.HeldSlot)
    for _, s := range h.Holds.GetHeldSlotsForDate(ctx, professionalID, date, middleware.SessionID(c)) {
        held[s.StartTime] = s
    }

    type slot struct {
        StartTime              string `json:"start_time"`
        Status                 string `json:"status"`
        IsHeldByCurrentSession bool   `json:"is_held_by_current_session,omitempty"`
    }
    var slots []slot
    for _, label := range workingSlots(prof.WorkStart, prof.WorkEnd, prof.SlotMinutes) {
        s := slot{StartTime: label, Status: slotFree}
        if hs, ok := held[label]; ok {
            s.Status = slotHeld
            s.IsHeldByCurrentSession = hs.IsHeldByCurrentSession
        }
        if booked[label] {
            s.Status = slotBooked
            s.IsHeldByCurrentSession = false
        }
        slots = append(slots, s)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "date":  date.Format("2006-01-02"),
        "slots": slots,
    })
}

// workingSlots expands working hours into "HH:MM" labels stepped by
// the slot length.  Malformed hours yield an empty grid rather than
// an error; the professional row is operator-managed data.
func workingSlots(workStart, workEnd string, slotMinutes int) []string {
    start, err1 := time.Parse("15:04", workStart)
    end, err2 := time.Parse("15:04", workEnd)
    if err1 != nil || err2 != nil || slotMinutes <= 0 || !end.After(start) {
        return nil
    }
    var labels []string
    step := time.Duration(slotMinutes) * time.Minute
    for t := start; t.Before(end); t = t.Add(step) {
        labels = append(labels, t.Format("15:04"))
    }
    return labels
}
