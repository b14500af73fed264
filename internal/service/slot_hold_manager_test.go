package service

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/avicenna-clinic/booking-platform/internal/model"
    "github.com/avicenna-clinic/booking-platform/internal/repository"
)

// fakeClock lets tests move "now" without sleeping.
type fakeClock struct {
    mu  sync.Mutex
    now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.now = c.now.Add(d)
}

// memHoldStore is an in-memory SlotHoldStore.  A single mutex spans
// each WithinHold callback, mirroring the serializable transaction
// of the real store.  Error fields inject infrastructure failures.
type memHoldStore struct {
    mu       sync.Mutex
    holds    []*model.SlotHold
    blocking map[string]bool // slot key -> non-cancelled appointment exists

    txErr     error // returned by WithinHold before running fn
    readErr   error // returned by plain reads
    insertErr error // returned by InsertHold
    deleteErr error // returned by DeleteBySession / DeleteExpired
}

func newMemHoldStore() *memHoldStore {
    return &memHoldStore{blocking: map[string]bool{}}
}

func slotKey(professionalID uint64, date, start time.Time) string {
    return fmt.Sprintf("%d|%s|%s", professionalID, date.Format("2006-01-02"), start.Format("15:04"))
}

func (s *memHoldStore) find(professionalID uint64, date, start time.Time) *model.SlotHold {
    for _, h := range s.holds {
        if h.ProfessionalID == professionalID && h.SlotDate.Equal(date) && h.StartTime.Equal(start) {
            return h
        }
    }
    return nil
}

func (s *memHoldStore) WithinHold(ctx context.Context, fn func(tx repository.HoldTx) error) error {
    if s.txErr != nil {
        return s.txErr
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    return fn(&memHoldTx{store: s})
}

func (s *memHoldStore) HoldForSlot(ctx context.Context, professionalID uint64, date, start time.Time) (*model.SlotHold, error) {
    if s.readErr != nil {
        return nil, s.readErr
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    if h := s.find(professionalID, date, start); h != nil {
        cp := *h
        return &cp, nil
    }
    return nil, nil
}

func (s *memHoldStore) ActiveHoldsForDate(ctx context.Context, professionalID uint64, date, now time.Time) ([]model.SlotHold, error) {
    if s.readErr != nil {
        return nil, s.readErr
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []model.SlotHold
    for _, h := range s.holds {
        if h.ProfessionalID == professionalID && h.SlotDate.Equal(date) && h.ExpiresAt.After(now) {
            out = append(out, *h)
        }
    }
    return out, nil
}

func (s *memHoldStore) DeleteBySession(ctx context.Context, professionalID uint64, date, start time.Time, sessionID string) (bool, error) {
    if s.deleteErr != nil {
        return false, s.deleteErr
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    for i, h := range s.holds {
        if h.ProfessionalID == professionalID && h.SlotDate.Equal(date) && h.StartTime.Equal(start) && h.SessionID == sessionID {
            s.holds = append(s.holds[:i], s.holds[i+1:]...)
            return true, nil
        }
    }
    return false, nil
}

func (s *memHoldStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
    if s.deleteErr != nil {
        return 0, s.deleteErr
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    var kept []*model.SlotHold
    var n int64
    for _, h := range s.holds {
        if h.ExpiresAt.After(now) {
            kept = append(kept, h)
        } else {
            n++
        }
    }
    s.holds = kept
    return n, nil
}

func (s *memHoldStore) setBlocking(professionalID uint64, date, start time.Time, blocked bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.blocking[slotKey(professionalID, date, start)] = blocked
}

func (s *memHoldStore) holdByID(id string) *model.SlotHold {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, h := range s.holds {
        if h.ID == id {
            return h
        }
    }
    return nil
}

type memHoldTx struct {
    store *memHoldStore
}

func (t *memHoldTx) HoldForSlot(ctx context.Context, professionalID uint64, date, start time.Time) (*model.SlotHold, error) {
    if h := t.store.find(professionalID, date, start); h != nil {
        cp := *h
        return &cp, nil
    }
    return nil, nil
}

func (t *memHoldTx) ExtendHold(ctx context.Context, id string, expiresAt time.Time) error {
    for _, h := range t.store.holds {
        if h.ID == id {
            h.ExpiresAt = expiresAt
            return nil
        }
    }
    return errors.New("no such hold")
}

func (t *memHoldTx) DeleteHold(ctx context.Context, id string) error {
    for i, h := range t.store.holds {
        if h.ID == id {
            t.store.holds = append(t.store.holds[:i], t.store.holds[i+1:]...)
            return nil
        }
    }
    return nil
}

func (t *memHoldTx) InsertHold(ctx context.Context, hold *model.SlotHold) error {
    if t.store.insertErr != nil {
        return t.store.insertErr
    }
    if t.store.find(hold.ProfessionalID, hold.SlotDate, hold.StartTime) != nil {
        return repository.ErrDuplicateSlotHold
    }
    cp := *hold
    t.store.holds = append(t.store.holds, &cp)
    return nil
}

func (t *memHoldTx) HasBlockingAppointment(ctx context.Context, professionalID uint64, date, start time.Time) (bool, error) {
    return t.store.blocking[slotKey(professionalID, date, start)], nil
}

// ---- fixtures ----

var (
    testDate  = time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
    tenAM     = time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
    elevenAM  = time.Date(2026, 2, 15, 11, 0, 0, 0, time.UTC)
    baseClock = time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
)

func newTestManager() (*SlotHoldManager, *memHoldStore, *fakeClock) {
    store := newMemHoldStore()
    clock := newFakeClock(baseClock)
    return NewSlotHoldManager(store, clock), store, clock
}

// ---- CreateSlotHold ----

func TestCreateSlotHold_MutualExclusion(t *testing.T) {
    m, _, _ := newTestManager()
    ctx := context.Background()

    resA := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !resA.Created {
        t.Fatalf("session A create failed: %+v", resA)
    }
    resB := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-b")
    if resB.Created {
        t.Fatalf("session B should have been rejected, got %+v", resB)
    }
    if resB.Kind != KindSlotHeldByOther {
        t.Fatalf("kind = %s, want %s", resB.Kind, KindSlotHeldByOther)
    }
    if resB.Message != "this time slot is currently being reserved by someone else" {
        t.Fatalf("unexpected message %q", resB.Message)
    }
}

func TestCreateSlotHold_IdempotentExtension(t *testing.T) {
    m, store, clock := newTestManager()
    ctx := context.Background()

    first := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !first.Created {
        t.Fatalf("create failed: %+v", first)
    }
    clock.Advance(2 * time.Minute)
    second := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !second.Created {
        t.Fatalf("extend failed: %+v", second)
    }
    if second.HoldID != first.HoldID {
        t.Fatalf("extension created a new hold: %s != %s", second.HoldID, first.HoldID)
    }
    if !second.ExpiresAt.After(first.ExpiresAt) {
        t.Fatalf("expiry did not move forward: %v -> %v", first.ExpiresAt, second.ExpiresAt)
    }
    if len(store.holds) != 1 {
        t.Fatalf("expected a single row, have %d", len(store.holds))
    }
}

func TestCreateSlotHold_ExpiryReclaim(t *testing.T) {
    m, store, clock := newTestManager()
    ctx := context.Background()

    resA := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !resA.Created {
        t.Fatalf("session A create failed: %+v", resA)
    }
    // Past the TTL the hold is inert and session B may take the slot.
    clock.Advance(HoldTTL + time.Second)
    resB := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-b")
    if !resB.Created {
        t.Fatalf("session B should reclaim the expired slot, got %+v", resB)
    }
    if store.holdByID(resA.HoldID) != nil {
        t.Fatal("session A's expired hold should be gone")
    }
    if h := store.holdByID(resB.HoldID); h == nil || h.SessionID != "session-b" {
        t.Fatalf("replacement hold missing or misowned: %+v", h)
    }
}

func TestCreateSlotHold_BookingPrecedence(t *testing.T) {
    m, store, _ := newTestManager()
    ctx := context.Background()

    // A confirmed appointment blocks holding regardless of session.
    store.setBlocking(1, testDate, tenAM, true)
    res := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if res.Created || res.Kind != KindSlotAlreadyBooked {
        t.Fatalf("expected %s, got %+v", KindSlotAlreadyBooked, res)
    }
    if res.Message != "this time slot is no longer available" {
        t.Fatalf("unexpected message %q", res.Message)
    }

    // The same appointment cancelled no longer blocks.
    store.setBlocking(1, testDate, tenAM, false)
    res = m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !res.Created {
        t.Fatalf("cancelled appointment should not block: %+v", res)
    }
}

func TestCreateSlotHold_RequiresSession(t *testing.T) {
    m, store, _ := newTestManager()
    res := m.CreateSlotHold(context.Background(), 1, testDate, tenAM, "")
    if res.Created || res.Kind != KindHoldCreateFailed {
        t.Fatalf("expected %s for empty session, got %+v", KindHoldCreateFailed, res)
    }
    if len(store.holds) != 0 {
        t.Fatal("no row should have been written")
    }
}

func TestCreateSlotHold_DuplicateKeyBackstop(t *testing.T) {
    m, store, _ := newTestManager()
    store.insertErr = repository.ErrDuplicateSlotHold
    res := m.CreateSlotHold(context.Background(), 1, testDate, tenAM, "session-a")
    if res.Created || res.Kind != KindSlotHeldByOther {
        t.Fatalf("duplicate key must read as held-by-other, got %+v", res)
    }
}

func TestCreateSlotHold_StoreFailureFailsClosed(t *testing.T) {
    m, store, _ := newTestManager()
    store.txErr = errors.New("connection refused")
    res := m.CreateSlotHold(context.Background(), 1, testDate, tenAM, "session-a")
    if res.Created || res.Kind != KindHoldCreateFailed {
        t.Fatalf("expected %s, got %+v", KindHoldCreateFailed, res)
    }
    if res.Message != "could not temporarily reserve the time slot" {
        t.Fatalf("unexpected message %q", res.Message)
    }
}

func TestCreateSlotHold_SweepFailureDoesNotBlock(t *testing.T) {
    m, store, _ := newTestManager()
    // Pre-step sweep fails; the create must still go through.
    store.deleteErr = errors.New("timeout")
    res := m.CreateSlotHold(context.Background(), 1, testDate, tenAM, "session-a")
    if !res.Created {
        t.Fatalf("sweep failure must not abort the request: %+v", res)
    }
}

func TestCreateSlotHold_SweepsExpiredRowsFirst(t *testing.T) {
    m, store, clock := newTestManager()
    ctx := context.Background()

    m.CreateSlotHold(ctx, 2, testDate, elevenAM, "session-x")
    clock.Advance(HoldTTL + time.Minute)
    // Creating on a different slot sweeps the lapsed row store-wide.
    res := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !res.Created {
        t.Fatalf("create failed: %+v", res)
    }
    if len(store.holds) != 1 {
        t.Fatalf("expired rows should have been swept, have %d rows", len(store.holds))
    }
}

// ---- ReleaseSlotHold / ConsumeSlotHold ----

func TestReleaseSlotHold(t *testing.T) {
    m, _, _ := newTestManager()
    ctx := context.Background()

    m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !m.ReleaseSlotHold(ctx, 1, testDate, tenAM, "session-a") {
        t.Fatal("release of an owned hold should report true")
    }
    // Idempotent: the second release finds nothing and is not an error.
    if m.ReleaseSlotHold(ctx, 1, testDate, tenAM, "session-a") {
        t.Fatal("second release should report false")
    }
}

func TestReleaseSlotHold_WrongSession(t *testing.T) {
    m, store, _ := newTestManager()
    ctx := context.Background()

    m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if m.ReleaseSlotHold(ctx, 1, testDate, tenAM, "session-b") {
        t.Fatal("another session must not release the hold")
    }
    if len(store.holds) != 1 {
        t.Fatal("hold should still exist")
    }
}

func TestReleaseSlotHold_StoreFailure(t *testing.T) {
    m, store, _ := newTestManager()
    store.deleteErr = errors.New("connection reset")
    if m.ReleaseSlotHold(context.Background(), 1, testDate, tenAM, "session-a") {
        t.Fatal("storage failure should degrade to false")
    }
}

func TestConsumeSlotHold(t *testing.T) {
    m, store, _ := newTestManager()
    ctx := context.Background()

    m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    m.ConsumeSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if len(store.holds) != 0 {
        t.Fatal("consume should remove the hold")
    }
    // Consuming again (or with a failing store) must stay silent.
    m.ConsumeSlotHold(ctx, 1, testDate, tenAM, "session-a")
    store.deleteErr = errors.New("timeout")
    m.ConsumeSlotHold(ctx, 1, testDate, tenAM, "session-a")
}

// ---- CheckSlotHold ----

func TestCheckSlotHold(t *testing.T) {
    m, _, clock := newTestManager()
    ctx := context.Background()

    res := m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")

    // Another session sees the slot held, but not by itself.
    st := m.CheckSlotHold(ctx, 1, testDate, tenAM, "session-b")
    if !st.IsHeld || st.IsHeldByCurrentSession {
        t.Fatalf("session B view wrong: %+v", st)
    }
    if st.ExpiresAt == nil || !st.ExpiresAt.Equal(res.ExpiresAt) {
        t.Fatalf("expiry not reported: %+v", st)
    }

    // The owner sees its own hold.
    st = m.CheckSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !st.IsHeld || !st.IsHeldByCurrentSession {
        t.Fatalf("owner view wrong: %+v", st)
    }

    // No session provided: held, never by the caller.
    st = m.CheckSlotHold(ctx, 1, testDate, tenAM, "")
    if !st.IsHeld || st.IsHeldByCurrentSession {
        t.Fatalf("sessionless view wrong: %+v", st)
    }

    // After expiry the hold reads as absent.
    clock.Advance(HoldTTL + time.Second)
    st = m.CheckSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if st.IsHeld || st.IsHeldByCurrentSession || st.ExpiresAt != nil {
        t.Fatalf("expired hold should read as not held: %+v", st)
    }
}

func TestCheckSlotHold_AbsentAndFailing(t *testing.T) {
    m, store, _ := newTestManager()
    ctx := context.Background()

    if st := m.CheckSlotHold(ctx, 1, testDate, tenAM, "session-a"); st.IsHeld {
        t.Fatalf("no hold yet: %+v", st)
    }
    store.readErr = errors.New("connection refused")
    if st := m.CheckSlotHold(ctx, 1, testDate, tenAM, "session-a"); st.IsHeld {
        t.Fatalf("read failure should fail open to not held: %+v", st)
    }
}

// ---- GetHeldSlotsForDate ----

func TestGetHeldSlotsForDate(t *testing.T) {
    m, _, _ := newTestManager()
    ctx := context.Background()

    m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    m.CreateSlotHold(ctx, 1, testDate, elevenAM, "session-b")

    got := m.GetHeldSlotsForDate(ctx, 1, testDate, "session-a")
    want := []HeldSlot{
        {StartTime: "10:00", IsHeldByCurrentSession: true},
        {StartTime: "11:00", IsHeldByCurrentSession: false},
    }
    if len(got) != len(want) {
        t.Fatalf("got %d slots, want %d", len(got), len(want))
    }
    for i := range want {
        if got[i] != want[i] {
            t.Fatalf("slot %d = %+v, want %+v", i, got[i], want[i])
        }
    }
}

func TestGetHeldSlotsForDate_ExcludesExpired(t *testing.T) {
    m, _, clock := newTestManager()
    ctx := context.Background()

    m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    clock.Advance(HoldTTL - time.Minute)
    m.CreateSlotHold(ctx, 1, testDate, elevenAM, "session-b")
    clock.Advance(2 * time.Minute) // first hold lapsed, second alive

    got := m.GetHeldSlotsForDate(ctx, 1, testDate, "")
    if len(got) != 1 || got[0].StartTime != "11:00" {
        t.Fatalf("expected only the live 11:00 hold, got %+v", got)
    }
}

func TestGetHeldSlotsForDate_FailsOpenToEmpty(t *testing.T) {
    m, store, _ := newTestManager()
    store.readErr = errors.New("connection refused")
    got := m.GetHeldSlotsForDate(context.Background(), 1, testDate, "session-a")
    if got == nil || len(got) != 0 {
        t.Fatalf("expected empty (non-nil) list, got %#v", got)
    }
}

// ---- CleanupExpiredHolds ----

func TestCleanupExpiredHolds(t *testing.T) {
    m, store, clock := newTestManager()
    ctx := context.Background()

    // Three holds that will lapse, two that stay live.
    m.CreateSlotHold(ctx, 1, testDate, tenAM, "s1")
    m.CreateSlotHold(ctx, 1, testDate, elevenAM, "s2")
    m.CreateSlotHold(ctx, 2, testDate, tenAM, "s3")
    clock.Advance(HoldTTL + time.Second)
    m.CreateSlotHold(ctx, 3, testDate, tenAM, "s4")
    m.CreateSlotHold(ctx, 3, testDate, elevenAM, "s5")

    if n := m.CleanupExpiredHolds(ctx); n != 0 {
        // The creates above already swept the lapsed rows.
        t.Fatalf("nothing left to sweep, got %d", n)
    }
    if len(store.holds) != 2 {
        t.Fatalf("expected 2 live rows, have %d", len(store.holds))
    }
}

func TestCleanupExpiredHolds_CountsAndFailure(t *testing.T) {
    _, store, clock := newTestManager()
    ctx := context.Background()

    // Seed rows directly so the pre-create sweep does not interfere.
    for i, start := range []time.Time{tenAM, elevenAM, tenAM.Add(2 * time.Hour)} {
        store.holds = append(store.holds, &model.SlotHold{
            ID: string(rune('a' + i)), ProfessionalID: uint64(i + 1),
            SlotDate: testDate, StartTime: start,
            SessionID: "s", ExpiresAt: clock.Now().Add(-time.Second),
        })
    }
    for i, start := range []time.Time{tenAM, elevenAM} {
        store.holds = append(store.holds, &model.SlotHold{
            ID: string(rune('x' + i)), ProfessionalID: 9,
            SlotDate: testDate, StartTime: start,
            SessionID: "s", ExpiresAt: clock.Now().Add(time.Hour),
        })
    }
    m := NewSlotHoldManager(store, clock)
    if n := m.CleanupExpiredHolds(ctx); n != 3 {
        t.Fatalf("sweep = %d, want 3", n)
    }
    if len(store.holds) != 2 {
        t.Fatalf("expected 2 rows to survive, have %d", len(store.holds))
    }

    store.deleteErr = errors.New("timeout")
    if n := m.CleanupExpiredHolds(ctx); n != 0 {
        t.Fatalf("failed sweep should report 0, got %d", n)
    }
}

// ---- ValidateHoldForBooking ----

func TestValidateHoldForBooking(t *testing.T) {
    m, store, clock := newTestManager()
    ctx := context.Background()

    // No hold at all: booking may proceed.
    if !m.ValidateHoldForBooking(ctx, 1, testDate, tenAM, "session-a") {
        t.Fatal("absent hold must not block booking")
    }

    // Live hold owned by the booking session: proceed.
    m.CreateSlotHold(ctx, 1, testDate, tenAM, "session-a")
    if !m.ValidateHoldForBooking(ctx, 1, testDate, tenAM, "session-a") {
        t.Fatal("own hold must not block booking")
    }

    // Live hold owned by someone else: block.
    if m.ValidateHoldForBooking(ctx, 1, testDate, tenAM, "session-b") {
        t.Fatal("foreign live hold must block booking")
    }

    // Expired foreign hold: proceed, and the row is lazily removed.
    clock.Advance(HoldTTL + time.Second)
    if !m.ValidateHoldForBooking(ctx, 1, testDate, tenAM, "session-b") {
        t.Fatal("expired hold must not block booking")
    }
    if len(store.holds) != 0 {
        t.Fatal("expired hold should have been deleted during validation")
    }
}

func TestValidateHoldForBooking_FailsClosed(t *testing.T) {
    m, store, _ := newTestManager()
    store.txErr = errors.New("connection refused")
    if m.ValidateHoldForBooking(context.Background(), 1, testDate, tenAM, "session-a") {
        t.Fatal("storage failure must fail closed")
    }
}

// ---- end-to-end shape ----

func TestHoldLifecycle(t *testing.T) {
    m, store, _ := newTestManager()
    ctx := context.Background()

    res := m.CreateSlotHold(ctx, 7, testDate, tenAM, "session-a")
    if !res.Created {
        t.Fatalf("create failed: %+v", res)
    }
    if got := res.ExpiresAt.Sub(baseClock); got != HoldTTL {
        t.Fatalf("expiry horizon = %v, want %v", got, HoldTTL)
    }
    if !m.ValidateHoldForBooking(ctx, 7, testDate, tenAM, "session-a") {
        t.Fatal("validation should pass for the owner")
    }
    m.ConsumeSlotHold(ctx, 7, testDate, tenAM, "session-a")
    if len(store.holds) != 0 {
        t.Fatal("hold should be consumed")
    }
    // After consumption the slot is free to hold again.
    if res := m.CreateSlotHold(ctx, 7, testDate, tenAM, "session-b"); !res.Created {
        t.Fatalf("slot should be holdable after consume: %+v", res)
    }
}
