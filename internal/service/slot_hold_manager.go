// Package service contains the slot-hold concurrency manager, the
// transactional protocol that keeps two concurrent clients from
// booking the same professional/date/time slot while one of them is
// still filling out the booking form.
package service

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/avicenna-clinic/booking-platform/internal/model"
    "github.com/avicenna-clinic/booking-platform/internal/repository"
)

// HoldTTL is how long a hold stays live after creation or extension.
// The booking page re-requests the same slot as a heartbeat, so an
// active client keeps pushing the expiry forward; an abandoned page
// simply lets it lapse.
const HoldTTL = 5 * time.Minute

// FailureKind is the machine-readable classification of a rejected
// hold attempt.
type FailureKind string

const (
    // KindSlotHeldByOther: a live hold owned by a different session
    // occupies the slot.
    KindSlotHeldByOther FailureKind = "SLOT_HELD_BY_OTHER"
    // KindSlotAlreadyBooked: a non-cancelled appointment occupies
    // the slot.
    KindSlotAlreadyBooked FailureKind = "SLOT_ALREADY_BOOKED"
    // KindHoldCreateFailed: the store failed; the attempt is
    // rejected so a storage error can never produce a double hold.
    KindHoldCreateFailed FailureKind = "HOLD_CREATE_FAILED"
)

// User-facing messages for each failure kind.
const (
    msgHeldByOther   = "this time slot is currently being reserved by someone else"
    msgAlreadyBooked = "this time slot is no longer available"
    msgCreateFailed  = "could not temporarily reserve the time slot"
)

// HoldResult is the outcome of CreateSlotHold.  Exactly one of the
// two shapes is populated: Created plus HoldID/ExpiresAt on success, or
// Kind/Message on rejection.
type HoldResult struct {
    Created   bool        `json:"created"`
    HoldID    string      `json:"hold_id,omitempty"`
    ExpiresAt time.Time   `json:"expires_at,omitempty"`
    Kind      FailureKind `json:"kind,omitempty"`
    Message   string      `json:"message,omitempty"`
}

// HoldStatus is the advisory answer of CheckSlotHold.  ExpiresAt is
// nil whenever the slot reads as not held.
type HoldStatus struct {
    IsHeld                 bool       `json:"is_held"`
    IsHeldByCurrentSession bool       `json:"is_held_by_current_session"`
    ExpiresAt              *time.Time `json:"expires_at,omitempty"`
}

// HeldSlot is one entry of GetHeldSlotsForDate, keyed by the
// normalized "HH:MM" start time the calendar indexes by.
type HeldSlot struct {
    StartTime              string `json:"start_time"`
    IsHeldByCurrentSession bool   `json:"is_held_by_current_session"`
}

// Sentinels used inside the transactional callback to abort the unit
// of work with a business rejection rather than a storage failure.
var (
    errSlotHeld   = errors.New("slot held by another session")
    errSlotBooked = errors.New("slot already booked")
)

// SlotHoldManager enforces that only one client can be in the
// process of booking a given slot at a time, for a bounded grace
// period, without long-lived locks.  It keeps no in-process state;
// all coordination lives in the backing store, so any number of
// server replicas can share one manager configuration.
type SlotHoldManager struct {
    holds repository.SlotHoldStore
    clock Clock
}

// NewSlotHoldManager constructs a manager over the given store.  A
// nil clock defaults to the system clock.
func NewSlotHoldManager(holds repository.SlotHoldStore, clock Clock) *SlotHoldManager {
    if holds == nil {
        panic("nil store passed to NewSlotHoldManager")
    }
    if clock == nil {
        clock = SystemClock{}
    }
    return &SlotHoldManager{holds: holds, clock: clock}
}

// CreateSlotHold claims the slot for sessionID for HoldTTL, or
// extends the claim when the same session already owns it.  The
// decision runs as one atomic unit of work: look up the (locked)
// hold row, extend / reject / reclaim, check for a blocking
// appointment, insert.  Two concurrent callers on the same slot can
// therefore never both believe they won; the unique slot key acts as
// a backstop and a duplicate-key insert is reported exactly like a
// live foreign hold.
//
// Before the transactional step the manager opportunistically sweeps
// expired holds store-wide; failures of that sweep are swallowed so
// transient cleanup errors never block a booking attempt.
func (m *SlotHoldManager) CreateSlotHold(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) HoldResult {
    if sessionID == "" {
        return HoldResult{Kind: KindHoldCreateFailed, Message: msgCreateFailed}
    }

    m.CleanupExpiredHolds(ctx)

    now := m.clock.Now()
    var res HoldResult
    err := m.holds.WithinHold(ctx, func(tx repository.HoldTx) error {
        existing, err := tx.HoldForSlot(ctx, professionalID, date, start)
        if err != nil {
            return err
        }
        if existing != nil {
            if existing.Live(now) {
                if existing.SessionID != sessionID {
                    return errSlotHeld
                }
                // Same session heartbeating: refresh in place, never
                // a second row.
                exp := now.Add(HoldTTL)
                if err := tx.ExtendHold(ctx, existing.ID, exp); err != nil {
                    return err
                }
                res = HoldResult{Created: true, HoldID: existing.ID, ExpiresAt: exp}
                return nil
            }
            // Lapsed hold, any session: reclaim the slot.
            if err := tx.DeleteHold(ctx, existing.ID); err != nil {
                return err
            }
        }
        blocked, err := tx.HasBlockingAppointment(ctx, professionalID, date, start)
        if err != nil {
            return err
        }
        if blocked {
            return errSlotBooked
        }
        hold := &model.SlotHold{
            ID:             uuid.NewString(),
            ProfessionalID: professionalID,
            SlotDate:       date,
            StartTime:      start,
            SessionID:      sessionID,
            ExpiresAt:      now.Add(HoldTTL),
            CreatedAt:      now,
        }
        if err := tx.InsertHold(ctx, hold); err != nil {
            return err
        }
        res = HoldResult{Created: true, HoldID: hold.ID, ExpiresAt: hold.ExpiresAt}
        return nil
    })
    switch {
    case err == nil:
        return res
    case errors.Is(err, errSlotHeld), errors.Is(err, repository.ErrDuplicateSlotHold):
        return HoldResult{Kind: KindSlotHeldByOther, Message: msgHeldByOther}
    case errors.Is(err, errSlotBooked):
        return HoldResult{Kind: KindSlotAlreadyBooked, Message: msgAlreadyBooked}
    default:
        log.Printf("slot-hold: create failed for professional=%d slot=%s %s: %v",
            professionalID, date.Format("2006-01-02"), start.Format("15:04"), err)
        return HoldResult{Kind: KindHoldCreateFailed, Message: msgCreateFailed}
    }
}

// ReleaseSlotHold deletes the hold matching the slot tuple and the
// owning session.  It reports whether a row was deleted; releasing
// an absent hold is not an error.  This path is best-effort cleanup
// on navigation away, so storage failures degrade to false.
func (m *SlotHoldManager) ReleaseSlotHold(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) bool {
    deleted, err := m.holds.DeleteBySession(ctx, professionalID, date, start, sessionID)
    if err != nil {
        log.Printf("slot-hold: release failed for professional=%d slot=%s %s: %v",
            professionalID, date.Format("2006-01-02"), start.Format("15:04"), err)
        return false
    }
    return deleted
}

// CheckSlotHold reports advisory hold state for the slot.  A missing
// or expired hold reads as not held.  The current-session flag is
// set only when a non-empty sessionID matches the hold's owner.
// Storage failures fail open to "not held": the answer only drives
// UI state and never gates a transition.
func (m *SlotHoldManager) CheckSlotHold(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) HoldStatus {
    h, err := m.holds.HoldForSlot(ctx, professionalID, date, start)
    if err != nil {
        log.Printf("slot-hold: check failed for professional=%d slot=%s %s: %v",
            professionalID, date.Format("2006-01-02"), start.Format("15:04"), err)
        return HoldStatus{}
    }
    if h == nil || !h.Live(m.clock.Now()) {
        return HoldStatus{}
    }
    exp := h.ExpiresAt
    return HoldStatus{
        IsHeld:                 true,
        IsHeldByCurrentSession: sessionID != "" && h.SessionID == sessionID,
        ExpiresAt:              &exp,
    }
}

// GetHeldSlotsForDate returns every live hold for the professional
// and date, with start times normalized to "HH:MM".  Order is the
// store's natural return order; callers index by time.  Storage
// failures fail open to an empty list.
func (m *SlotHoldManager) GetHeldSlotsForDate(ctx context.Context, professionalID uint64, date time.Time, sessionID string) []HeldSlot {
    holds, err := m.holds.ActiveHoldsForDate(ctx, professionalID, date, m.clock.Now())
    if err != nil {
        log.Printf("slot-hold: list failed for professional=%d date=%s: %v",
            professionalID, date.Format("2006-01-02"), err)
        return []HeldSlot{}
    }
    out := make([]HeldSlot, 0, len(holds))
    for _, h := range holds {
        out = append(out, HeldSlot{
            StartTime:              h.StartTime.UTC().Format("15:04"),
            IsHeldByCurrentSession: sessionID != "" && h.SessionID == sessionID,
        })
    }
    return out
}

// CleanupExpiredHolds deletes every hold whose expiry has passed,
// store-wide, and returns the count.  It is called by the periodic
// sweep and opportunistically before every create; lazy expiry
// checks elsewhere keep correctness even when the sweep lags.
// Failures degrade to 0 and are only logged.
func (m *SlotHoldManager) CleanupExpiredHolds(ctx context.Context) int64 {
    n, err := m.holds.DeleteExpired(ctx, m.clock.Now())
    if err != nil {
        log.Printf("slot-hold: expiry sweep failed: %v", err)
        return 0
    }
    return n
}

// ValidateHoldForBooking is the gate invoked right before a hold is
// converted into a real appointment.  Booking may proceed when the
// slot is unheld, when the hold has lapsed (which is deleted here,
// lazily), or when the live hold belongs to the booking session.
// Only a live hold owned by a different session blocks.  Storage
// failures fail closed: a read error must not allow a double
// booking.
func (m *SlotHoldManager) ValidateHoldForBooking(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) bool {
    now := m.clock.Now()
    ok := false
    err := m.holds.WithinHold(ctx, func(tx repository.HoldTx) error {
        h, err := tx.HoldForSlot(ctx, professionalID, date, start)
        if err != nil {
            return err
        }
        switch {
        case h == nil:
            ok = true
        case !h.Live(now):
            if err := tx.DeleteHold(ctx, h.ID); err != nil {
                return err
            }
            ok = true
        default:
            ok = h.SessionID == sessionID
        }
        return nil
    })
    if err != nil {
        log.Printf("slot-hold: validate failed for professional=%d slot=%s %s: %v",
            professionalID, date.Format("2006-01-02"), start.Format("15:04"), err)
        return false
    }
    return ok
}

// ConsumeSlotHold removes the session's hold as the final step of a
// successful booking.  It is cleanup, not a gate: the appointment is
// already committed by the time this runs, so failures are logged
// and swallowed rather than allowed to disturb the booking.
func (m *SlotHoldManager) ConsumeSlotHold(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) {
    if _, err := m.holds.DeleteBySession(ctx, professionalID, date, start, sessionID); err != nil {
        log.Printf("slot-hold: consume failed for professional=%d slot=%s %s: %v",
            professionalID, date.Format("2006-01-02"), start.Format("15:04"), err)
    }
}
