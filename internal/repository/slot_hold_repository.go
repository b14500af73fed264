package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/avicenna-clinic/booking-platform/internal/model"
)

// HoldTx is the unit-of-work view of the slot_holds table handed to
// the callback of SlotHoldStore.WithinHold.  Every method runs on
// the same database transaction, so a caller that reads a hold,
// decides, and writes cannot interleave with a concurrent caller on
// the same slot.
type HoldTx interface {
    // HoldForSlot returns the hold row for the slot, locking it for
    // the remainder of the transaction, or nil when no row exists.
    HoldForSlot(ctx context.Context, professionalID uint64, date, start time.Time) (*model.SlotHold, error)
    // ExtendHold moves expires_at forward on an existing hold.
    ExtendHold(ctx context.Context, id string, expiresAt time.Time) error
    // DeleteHold removes a hold row by id.
    DeleteHold(ctx context.Context, id string) error
    // InsertHold creates a new hold row.  It returns
    // ErrDuplicateSlotHold when the unique slot key rejects it.
    InsertHold(ctx context.Context, hold *model.SlotHold) error
    // HasBlockingAppointment reports whether any non-cancelled
    // appointment already occupies the slot.
    HasBlockingAppointment(ctx context.Context, professionalID uint64, date, start time.Time) (bool, error)
}

// SlotHoldStore is the persistence contract the slot-hold manager
// depends on.  WithinHold executes its callback as one atomic unit
// of work; the remaining methods are single round-trips used by the
// advisory reads and the best-effort cleanup paths.
type SlotHoldStore interface {
    WithinHold(ctx context.Context, fn func(tx HoldTx) error) error
    HoldForSlot(ctx context.Context, professionalID uint64, date, start time.Time) (*model.SlotHold, error)
    ActiveHoldsForDate(ctx context.Context, professionalID uint64, date, now time.Time) ([]model.SlotHold, error)
    DeleteBySession(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) (bool, error)
    DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SlotHoldRepo provides data access to the slot_holds table.  The
// table is uniquely keyed on (professional_id, slot_date,
// start_time) and carries a secondary index on expires_at so the
// expiry sweep stays cheap.  All timestamps are stored and compared
// in UTC.
type SlotHoldRepo struct {
    db *sql.DB
}

// NewSlotHoldRepo returns a SlotHoldRepo bound to the provided database.
func NewSlotHoldRepo(db *sql.DB) *SlotHoldRepo { return &SlotHoldRepo{db: db} }

const holdColumns = `id, professional_id, slot_date, start_time, session_id, expires_at, created_at`

// WithinHold runs fn inside a serializable transaction.  Two
// concurrent callers deciding about the same slot are forced to
// serialize on the row lock taken by HoldForSlot, so both can never
// observe "no live hold" and both insert.  The unique key acts as a
// backstop: a duplicate-entry failure at exec or commit time is
// surfaced as ErrDuplicateSlotHold rather than a raw driver error.
func (r *SlotHoldRepo) WithinHold(ctx context.Context, fn func(tx HoldTx) error) error {
    tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(&holdTx{tx: tx}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        if isDuplicateEntry(err) {
            return ErrDuplicateSlotHold
        }
        return err
    }
    committed = true
    return nil
}

// HoldForSlot is the plain (non-locking) read used by advisory
// checks.  It returns nil when no row exists for the slot.
func (r *SlotHoldRepo) HoldForSlot(ctx context.Context, professionalID uint64, date, start time.Time) (*model.SlotHold, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+holdColumns+` FROM slot_holds
         WHERE professional_id = ? AND slot_date = ? AND start_time = ? LIMIT 1`,
        professionalID, dateArg(date), timeArg(start))
    return scanHold(row)
}

// ActiveHoldsForDate returns every live hold for the professional
// and date.  No ORDER BY is applied; callers index the result by
// slot time.
func (r *SlotHoldRepo) ActiveHoldsForDate(ctx context.Context, professionalID uint64, date, now time.Time) ([]model.SlotHold, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+holdColumns+` FROM slot_holds
         WHERE professional_id = ? AND slot_date = ? AND expires_at > ?`,
        professionalID, dateArg(date), timeArg(now))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var holds []model.SlotHold
    for rows.Next() {
        var h model.SlotHold
        if err := rows.Scan(&h.ID, &h.ProfessionalID, &h.SlotDate, &h.StartTime, &h.SessionID, &h.ExpiresAt, &h.CreatedAt); err != nil {
            return nil, err
        }
        holds = append(holds, h)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return holds, nil
}

// DeleteBySession removes the hold matching the full tuple plus the
// owning session.  It reports whether a row was actually deleted.
func (r *SlotHoldRepo) DeleteBySession(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM slot_holds
         WHERE professional_id = ? AND slot_date = ? AND start_time = ? AND session_id = ?`,
        professionalID, dateArg(date), timeArg(start), sessionID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// DeleteExpired removes every hold whose expires_at has passed,
// store-wide, and returns the number of rows deleted.
func (r *SlotHoldRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM slot_holds WHERE expires_at <= ?`, timeArg(now))
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// holdTx implements HoldTx on top of an open *sql.Tx.
type holdTx struct {
    tx *sql.Tx
}

func (t *holdTx) HoldForSlot(ctx context.Context, professionalID uint64, date, start time.Time) (*model.SlotHold, error) {
    row := t.tx.QueryRowContext(ctx,
        `SELECT `+holdColumns+` FROM slot_holds
         WHERE professional_id = ? AND slot_date = ? AND start_time = ? LIMIT 1 FOR UPDATE`,
        professionalID, dateArg(date), timeArg(start))
    return scanHold(row)
}

func (t *holdTx) ExtendHold(ctx context.Context, id string, expiresAt time.Time) error {
    _, err := t.tx.ExecContext(ctx,
        `UPDATE slot_holds SET expires_at = ? WHERE id = ?`, timeArg(expiresAt), id)
    return err
}

func (t *holdTx) DeleteHold(ctx context.Context, id string) error {
    _, err := t.tx.ExecContext(ctx, `DELETE FROM slot_holds WHERE id = ?`, id)
    return err
}

func (t *holdTx) InsertHold(ctx context.Context, hold *model.SlotHold) error {
    _, err := t.tx.ExecContext(ctx,
        `INSERT INTO slot_holds (id, professional_id, slot_date, start_time, session_id, expires_at, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
        hold.ID, hold.ProfessionalID, dateArg(hold.SlotDate), timeArg(hold.StartTime),
        hold.SessionID, timeArg(hold.ExpiresAt), timeArg(hold.CreatedAt))
    if err != nil && isDuplicateEntry(err) {
        return ErrDuplicateSlotHold
    }
    return err
}

func (t *holdTx) HasBlockingAppointment(ctx context.Context, professionalID uint64, date, start time.Time) (bool, error) {
    var blocked bool
    err := t.tx.QueryRowContext(ctx,
        `SELECT EXISTS(
            SELECT 1 FROM appointments
            WHERE professional_id = ? AND slot_date = ? AND start_time = ? AND status <> ?)`,
        professionalID, dateArg(date), timeArg(start), model.AppointmentCancelled).Scan(&blocked)
    if err != nil {
        return false, err
    }
    return blocked, nil
}

// scanHold reads one hold row, translating sql.ErrNoRows into a nil
// hold so callers can treat "absent" as a normal outcome.
func scanHold(row *sql.Row) (*model.SlotHold, error) {
    var h model.SlotHold
    err := row.Scan(&h.ID, &h.ProfessionalID, &h.SlotDate, &h.StartTime, &h.SessionID, &h.ExpiresAt, &h.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &h, nil
}

// dateArg formats a date-only column value.
func dateArg(d time.Time) string { return d.UTC().Format("2006-01-02") }

// timeArg formats a DATETIME column value.
func timeArg(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") }

// isDuplicateEntry detects MySQL error 1062 (duplicate key).
func isDuplicateEntry(err error) bool {
    return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
