package handler

import (
    "reflect"
    "testing"
)

func TestWorkingSlots(t *testing.T) {
    cases := []struct {
        name        string
        start, end  string
        slotMinutes int
        want        []string
    }{
        {"hourly", "09:00", "12:00", 60, []string{"09:00", "10:00", "11:00"}},
        {"half hour", "09:00", "10:30", 30, []string{"09:00", "09:30", "10:00"}},
        {"uneven step", "09:00", "10:00", 45, []string{"09:00", "09:45"}},
        {"single slot", "09:00", "10:00", 60, []string{"09:00"}},
        {"end before start", "17:00", "09:00", 60, nil},
        {"zero length", "09:00", "09:00", 60, nil},
        {"bad step", "09:00", "17:00", 0, nil},
        {"malformed hours", "nine", "17:00", 60, nil},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            got := workingSlots(tc.start, tc.end, tc.slotMinutes)
            if !reflect.DeepEqual(got, tc.want) {
                t.Fatalf("workingSlots(%q, %q, %d) = %v, want %v",
                    tc.start, tc.end, tc.slotMinutes, got, tc.want)
            }
        })
    }
}
