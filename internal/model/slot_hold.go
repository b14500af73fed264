package model

import "time"

// SlotHold represents a temporary claim on a bookable time slot
// while a patient is filling out the booking form.  Holds prevent
// two concurrent clients from booking the same professional, date
// and start time.  A hold expires automatically at its expires_at
// timestamp; expired rows are ignored by all conflict checks and
// removed lazily or by the background sweep.
//
// Fields:
//  ID             – opaque unique identifier (UUID), assigned at creation.
//  ProfessionalID – professional whose calendar is being held.
//  SlotDate       – calendar date of the slot (date-only granularity).
//  StartTime      – instant the slot starts (date+time).
//  SessionID      – opaque browser session that owns the hold; empty
//                   means no session claimed it.
//  ExpiresAt      – when the hold stops being live.
//  CreatedAt      – when the hold was created (informational only).
type SlotHold struct {
    ID             string    // slot_holds.id
    ProfessionalID uint64    // slot_holds.professional_id
    SlotDate       time.Time // slot_holds.slot_date
    StartTime      time.Time // slot_holds.start_time
    SessionID      string    // slot_holds.session_id
    ExpiresAt      time.Time // slot_holds.expires_at
    CreatedAt      time.Time // slot_holds.created_at
}

// Live reports whether the hold is still active at the given
// instant.  A hold whose expires_at has passed is treated as if it
// does not exist, even when the row is still physically present.
func (h *SlotHold) Live(now time.Time) bool {
    return h.ExpiresAt.After(now)
}
