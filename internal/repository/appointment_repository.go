package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/avicenna-clinic/booking-platform/internal/model"
)

// AppointmentRepo provides data access to the appointments table.
// Appointment rows are the durable outcome of a successful booking;
// the slot-hold table only guards the window while the form is being
// filled.  A cancelled appointment stops blocking its slot, so no
// uniqueness constraint is placed on (professional_id, slot_date,
// start_time) here – conflict detection is the transactional
// re-check performed at booking time.
type AppointmentRepo struct {
    db *sql.DB
}

// NewAppointmentRepo returns an AppointmentRepo bound to the provided database.
func NewAppointmentRepo(db *sql.DB) *AppointmentRepo { return &AppointmentRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *AppointmentRepo) DB() *sql.DB { return r.db }

const appointmentColumns = `id, user_id, professional_id, slot_date, start_time, status, notes, created_at, updated_at`

// HasBlockingAppointment reports whether any non-cancelled
// appointment occupies the slot.  This is the plain read used
// outside transactions; the in-transaction variant lives on HoldTx.
func (r *AppointmentRepo) HasBlockingAppointment(ctx context.Context, professionalID uint64, date, start time.Time) (bool, error) {
    var blocked bool
    err := r.db.QueryRowContext(ctx,
        `SELECT EXISTS(
            SELECT 1 FROM appointments
            WHERE professional_id = ? AND slot_date = ? AND start_time = ? AND status <> ?)`,
        professionalID, dateArg(date), timeArg(start), model.AppointmentCancelled).Scan(&blocked)
    if err != nil {
        return false, err
    }
    return blocked, nil
}

// HasBlockingAppointmentTx is HasBlockingAppointment inside an open
// transaction, used by the booking flow to re-check the slot right
// before inserting the appointment row.
func (r *AppointmentRepo) HasBlockingAppointmentTx(ctx context.Context, tx *sql.Tx, professionalID uint64, date, start time.Time) (bool, error) {
    var id uint64
    err := tx.QueryRowContext(ctx,
        `SELECT id FROM appointments
         WHERE professional_id = ? AND slot_date = ? AND start_time = ? AND status <> ?
         LIMIT 1 FOR UPDATE`,
        professionalID, dateArg(date), timeArg(start), model.AppointmentCancelled).Scan(&id)
    if err == sql.ErrNoRows {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// CreateTx inserts a new appointment within the provided transaction
// and fills in its generated ID.  The caller commits or rolls back.
func (r *AppointmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Appointment) error {
    res, err := tx.ExecContext(ctx,
        `INSERT INTO appointments (user_id, professional_id, slot_date, start_time, status, notes)
         VALUES (?, ?, ?, ?, ?, ?)`,
        a.UserID, a.ProfessionalID, dateArg(a.SlotDate), timeArg(a.StartTime), a.Status, a.Notes)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    a.ID = uint64(id)
    return nil
}

// BookedStartTimesForDate returns the start times of every
// non-cancelled appointment for the professional and date.  Used to
// mark slots as booked on the availability grid.
func (r *AppointmentRepo) BookedStartTimesForDate(ctx context.Context, professionalID uint64, date time.Time) ([]time.Time, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT start_time FROM appointments
         WHERE professional_id = ? AND slot_date = ? AND status <> ?`,
        professionalID, dateArg(date), model.AppointmentCancelled)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var starts []time.Time
    for rows.Next() {
        var t time.Time
        if err := rows.Scan(&t); err != nil {
            return nil, err
        }
        starts = append(starts, t)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return starts, nil
}

// ListByUser returns every appointment booked by the user, newest
// first.
func (r *AppointmentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Appointment, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+appointmentColumns+` FROM appointments
         WHERE user_id = ? ORDER BY slot_date DESC, start_time DESC`, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var items []model.Appointment
    for rows.Next() {
        var a model.Appointment
        if err := rows.Scan(&a.ID, &a.UserID, &a.ProfessionalID, &a.SlotDate, &a.StartTime,
            &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
            return nil, err
        }
        items = append(items, a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return items, nil
}

// GetByIDForUserTx loads an appointment by id inside a transaction,
// locking the row.  It returns sql.ErrNoRows when the appointment
// does not exist and ErrForbidden when it belongs to another user.
func (r *AppointmentRepo) GetByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (*model.Appointment, error) {
    var a model.Appointment
    err := tx.QueryRowContext(ctx,
        `SELECT `+appointmentColumns+` FROM appointments WHERE id = ? LIMIT 1 FOR UPDATE`, id).
        Scan(&a.ID, &a.UserID, &a.ProfessionalID, &a.SlotDate, &a.StartTime,
            &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if a.UserID != userID {
        return nil, ErrForbidden
    }
    return &a, nil
}

// CancelTx marks an appointment as cancelled.  A cancelled
// appointment no longer blocks its slot for new holds or bookings.
func (r *AppointmentRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE appointments SET status = ?, updated_at = NOW() WHERE id = ?`,
        model.AppointmentCancelled, id)
    return err
}
