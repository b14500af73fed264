package model

import "time"

// Professional represents a bookable calendar owner (doctor,
// therapist, consultant).  Working hours and the slot length are
// used to render the availability grid on the booking page.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – account the professional logs in with.
//  DisplayName – public name shown on the booking page.
//  Specialty   – free-form specialty label.
//  WorkStart   – start of the working day as "HH:MM".
//  WorkEnd     – end of the working day as "HH:MM".
//  SlotMinutes – length of one bookable slot in minutes.
//  IsActive    – whether the professional accepts bookings.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Professional struct {
    ID          uint64    // professionals.id
    UserID      uint64    // professionals.user_id
    DisplayName string    // professionals.display_name
    Specialty   string    // professionals.specialty
    WorkStart   string    // professionals.work_start
    WorkEnd     string    // professionals.work_end
    SlotMinutes int       // professionals.slot_minutes
    IsActive    bool      // professionals.is_active
    CreatedAt   time.Time // professionals.created_at
    UpdatedAt   time.Time // professionals.updated_at
}
