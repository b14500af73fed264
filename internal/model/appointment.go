package model

import "time"

// Appointment statuses as stored in appointments.status.  Any
// status other than CANCELLED blocks a slot from being held or
// booked again; a cancelled appointment frees its slot.
const (
    AppointmentPending   = "PENDING"
    AppointmentConfirmed = "CONFIRMED"
    AppointmentCompleted = "COMPLETED"
    AppointmentCancelled = "CANCELLED"
    AppointmentNoShow    = "NO_SHOW"
)

// Appointment records a confirmed booking of one slot with a
// professional.  It is created only after the slot-hold gate has
// been passed; the hold itself is consumed in the same flow.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – patient who booked the appointment.
//  ProfessionalID – professional the appointment is with.
//  SlotDate       – calendar date of the appointment.
//  StartTime      – when the appointment starts.
//  Status         – current state (see constants above).
//  Notes          – free-form note supplied by the patient, if any.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Appointment struct {
    ID             uint64    // appointments.id
    UserID         uint64    // appointments.user_id
    ProfessionalID uint64    // appointments.professional_id
    SlotDate       time.Time // appointments.slot_date
    StartTime      time.Time // appointments.start_time
    Status         string    // appointments.status
    Notes          *string   // appointments.notes (nullable)
    CreatedAt      time.Time // appointments.created_at
    UpdatedAt      time.Time // appointments.updated_at
}
