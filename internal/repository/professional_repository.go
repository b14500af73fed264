package repository

import (
    "context"
    "database/sql"

    "github.com/avicenna-clinic/booking-platform/internal/model"
)

// ProfessionalRepo provides data access to the professionals table.
type ProfessionalRepo struct {
    db *sql.DB
}

// NewProfessionalRepo returns a ProfessionalRepo bound to the provided database.
func NewProfessionalRepo(db *sql.DB) *ProfessionalRepo { return &ProfessionalRepo{db: db} }

const professionalColumns = `id, user_id, display_name, specialty, work_start, work_end, slot_minutes, is_active, created_at, updated_at`

// GetByID fetches one active professional.  It returns
// ErrProfessionalNotFound when the id does not resolve.
func (r *ProfessionalRepo) GetByID(ctx context.Context, id uint64) (*model.Professional, error) {
    var p model.Professional
    err := r.db.QueryRowContext(ctx,
        `SELECT `+professionalColumns+` FROM professionals WHERE id = ? AND is_active = 1 LIMIT 1`, id).
        Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Specialty, &p.WorkStart, &p.WorkEnd,
            &p.SlotMinutes, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrProfessionalNotFound
    }
    if err != nil {
        return nil, err
    }
    return &p, nil
}

// ListActive returns every professional currently accepting
// bookings, ordered by display name for stable listings.
func (r *ProfessionalRepo) ListActive(ctx context.Context) ([]model.Professional, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+professionalColumns+` FROM professionals WHERE is_active = 1 ORDER BY display_name`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var items []model.Professional
    for rows.Next() {
        var p model.Professional
        if err := rows.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Specialty, &p.WorkStart, &p.WorkEnd,
            &p.SlotMinutes, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
            return nil, err
        }
        items = append(items, p)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return items, nil
}
