// Package queue defines message payloads exchanged over the message broker.
package queue

// AppointmentQueueName is the durable queue carrying confirmed
// bookings to downstream consumers (notifications, analytics).
const AppointmentQueueName = "appointment.confirmed"

// AppointmentConfirmedEvent is published once an appointment has
// been committed and its slot hold consumed.  It carries enough for
// downstream consumers to notify or log without querying the
// primary database.
type AppointmentConfirmedEvent struct {
    EventID          string `json:"event_id"`
    AppointmentID    uint64 `json:"appointment_id"`
    UserID           uint64 `json:"user_id"`
    ProfessionalID   uint64 `json:"professional_id"`
    ProfessionalName string `json:"professional_name"`
    SlotDate         string `json:"slot_date"`
    StartTime        string `json:"start_time"`
    ConfirmedAt      string `json:"confirmed_at"`
}
