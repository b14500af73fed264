package utils

import (
    "fmt"
    "strings"
    "time"
)

// Layouts accepted by NormalizeSlotTime, tried in order.  The hold
// store keeps start times as full DATETIME values, but availability
// payloads and older rows may carry bare "HH:MM" strings; callers
// should not have to care which form they were given.
var slotTimeLayouts = []string{
    "15:04",
    "15:04:05",
    "2006-01-02 15:04:05",
    time.RFC3339,
}

// SlotTimeLabel renders the start of a slot as a 24-hour "HH:MM"
// string, the form the booking calendar indexes by.
func SlotTimeLabel(t time.Time) string {
    return t.UTC().Format("15:04")
}

// NormalizeSlotTime converts any supported slot time representation
// (bare time string or full timestamp) into the canonical "HH:MM"
// label.  It returns an error when the input matches no layout.
func NormalizeSlotTime(raw string) (string, error) {
    s := strings.TrimSpace(raw)
    for _, layout := range slotTimeLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            return t.Format("15:04"), nil
        }
    }
    return "", fmt.Errorf("unrecognized slot time %q", raw)
}

// ParseSlotDate parses a calendar date in "2006-01-02" form into a
// UTC midnight time.Time, the date-only granularity used by the
// slot_holds and appointments tables.
func ParseSlotDate(raw string) (time.Time, error) {
    d, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
    if err != nil {
        return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
    }
    return d.UTC(), nil
}

// ParseSlotStart combines a calendar date and an "HH:MM" label into
// the UTC instant the slot begins.
func ParseSlotStart(date time.Time, hhmm string) (time.Time, error) {
    label, err := NormalizeSlotTime(hhmm)
    if err != nil {
        return time.Time{}, err
    }
    t, _ := time.Parse("15:04", label)
    return time.Date(date.Year(), date.Month(), date.Day(),
        t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
