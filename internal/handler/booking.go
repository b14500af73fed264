package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/avicenna-clinic/booking-platform/internal/middleware"
    "github.com/avicenna-clinic/booking-platform/internal/model"
    "github.com/avicenna-clinic/booking-platform/internal/queue"
    "github.com/avicenna-clinic/booking-platform/internal/repository"
    "github.com/avicenna-clinic/booking-platform/internal/service"
    "github.com/avicenna-clinic/booking-platform/internal/utils"
)

// BookingHandler converts a validated slot hold into a confirmed
// appointment.  The hold gate runs first; the appointment insert
// then re-checks the slot inside its own transaction so a booking
// that slipped past the hold protocol still cannot double-book.
// Methods assume JWT authentication already ran.
type BookingHandler struct {
    Professionals *repository.ProfessionalRepo
    Appointments  *repository.AppointmentRepo
    Holds         *service.SlotHoldManager
}

// NewBookingHandler constructs a BookingHandler.  Dependencies must be non-nil.
func NewBookingHandler(professionals *repository.ProfessionalRepo, appointments *repository.AppointmentRepo, holds *service.SlotHoldManager) *BookingHandler {
    if professionals == nil || appointments == nil || holds == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{Professionals: professionals, Appointments: appointments, Holds: holds}
}

type bookingReq struct {
    Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
    StartTime string  `json:"start_time" validate:"required"`
    Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// CreateAppointment handles POST /v1/professionals/:id/appointments.
// Flow: gate on the hold (another session's live hold rejects the
// booking), insert the appointment transactionally with a conflict
// re-check, consume the hold, publish the confirmation event.  The
// last two steps are cleanup/side effects and never roll back the
// committed appointment.
func (h *BookingHandler) CreateAppointment(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    professionalID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid professional id"})
    }
    var req bookingReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "date and start_time are required"})
    }

    ctx := c.Request().Context()
    prof, err := h.Professionals.GetByID(ctx, professionalID)
    if err != nil {
        if err == repository.ErrProfessionalNotFound {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "professional not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    slotDate, err := utils.ParseSlotDate(req.Date)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
    }
    slotStart, err := utils.ParseSlotStart(slotDate, req.StartTime)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start time"})
    }

    sessionID := middleware.SessionID(c)
    if !h.Holds.ValidateHoldForBooking(ctx, professionalID, slotDate, slotStart, sessionID) {
        return c.JSON(http.StatusConflict, echo.Map{
            "kind":  service.KindSlotHeldByOther,
            "error": "this time slot is currently being reserved by someone else",
        })
    }

    tx, err := h.Appointments.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    blocked, err := h.Appointments.HasBlockingAppointmentTx(ctx, tx, professionalID, slotDate, slotStart)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check slot availability"})
    }
    if blocked {
        return c.JSON(http.StatusConflict, echo.Map{
            "kind":  service.KindSlotAlreadyBooked,
            "error": "this time slot is no longer available",
        })
    }
    appt := &model.Appointment{
        UserID:         userID,
        ProfessionalID: professionalID,
        SlotDate:       slotDate,
        StartTime:      slotStart,
        Status:         model.AppointmentConfirmed,
        Notes:          req.Notes,
    }
    if err := h.Appointments.CreateTx(ctx, tx, appt); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create appointment"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true

    // The appointment is booked; the hold served its purpose.
    h.Holds.ConsumeSlotHold(ctx, professionalID, slotDate, slotStart, sessionID)

    confirmedAt := time.Now().UTC()
    _ = service.PublishAppointmentConfirmed(ctx, queue.AppointmentConfirmedEvent{
        EventID:          uuid.NewString(),
        AppointmentID:    appt.ID,
        UserID:           userID,
        ProfessionalID:   professionalID,
        ProfessionalName: prof.DisplayName,
        SlotDate:         slotDate.Format("2006-01-02"),
        StartTime:        utils.SlotTimeLabel(slotStart),
        ConfirmedAt:      confirmedAt.Format(time.RFC3339),
    })

    return c.JSON(http.StatusCreated, echo.Map{
        "appointment_id": appt.ID,
        "status":         appt.Status,
        "date":           slotDate.Format("2006-01-02"),
        "start_time":     utils.SlotTimeLabel(slotStart),
    })
}

// ListMyAppointments handles GET /v1/my-appointments.  It returns
// every appointment booked by the current user, newest first.
func (h *BookingHandler) ListMyAppointments(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Appointments.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load appointments"})
    }
    out := make([]echo.Map, 0, len(items))
    for _, a := range items {
        out = append(out, echo.Map{
            "appointment_id":  a.ID,
            "professional_id": a.ProfessionalID,
            "date":            a.SlotDate.Format("2006-01-02"),
            "start_time":      utils.SlotTimeLabel(a.StartTime),
            "status":          a.Status,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// CancelAppointment handles DELETE /v1/appointments/:id.  It sets
// the appointment status to CANCELLED, which immediately frees the
// slot for new holds and bookings.  Returns 204 on success, 404 when
// absent, 403 when owned by another user, 409 when already
// cancelled.
func (h *BookingHandler) CancelAppointment(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    apptID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
    }
    ctx := c.Request().Context()
    tx, err := h.Appointments.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    appt, err := h.Appointments.GetByIDForUserTx(ctx, tx, apptID, userID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "appointment not found"})
        }
        if errors.Is(err, repository.ErrForbidden) {
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load appointment"})
    }
    if appt.Status == model.AppointmentCancelled {
        return c.JSON(http.StatusConflict, echo.Map{"error": "appointment already cancelled"})
    }
    if err := h.Appointments.CancelTx(ctx, tx, apptID); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel appointment"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true
    return c.NoContent(http.StatusNoContent)
}
