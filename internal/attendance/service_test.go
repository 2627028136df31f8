package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

type fixture struct {
	people *identity.Service
	store  *identity.MemoryStore
	ledger *MemoryLedger
	svc    *Service
	notes  *recordingNotifier
	now    time.Time
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store: identity.NewMemoryStore(),
		notes: &recordingNotifier{},
		now:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	f.people = identity.NewService(f.store, bcrypt.MinCost)
	f.ledger = NewMemoryLedger(f.store)
	base := []Option{
		WithNotifier(f.notes),
		WithClock(ClockFunc(func() time.Time { return f.now })),
	}
	f.svc = NewService(f.ledger, f.people, append(base, opts...)...)
	return f
}

func (f *fixture) student(t *testing.T, badge, name, room string) identity.Person {
	t.Helper()
	p, err := f.people.Register(context.Background(), identity.Registration{
		Name:       name,
		Email:      badge + "@hostel.test",
		Password:   "secret1",
		Role:       identity.RoleStudent,
		BadgeID:    badge,
		Floor:      identity.FloorGround,
		RoomNumber: room,
	})
	require.NoError(t, err)
	return p
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func TestRecordEventFreshDay(t *testing.T) {
	f := newFixture(t)
	p := f.student(t, "STU-1", "Asha", "101")
	ctx := context.Background()

	tr, err := f.svc.RecordEvent(ctx, p.ID, at(9, 0), OriginManual)
	require.NoError(t, err)
	assert.Equal(t, CheckedIn, tr.Outcome)
	require.NotNil(t, tr.Record.CheckIn)
	assert.Equal(t, at(9, 0), *tr.Record.CheckIn)
	assert.Nil(t, tr.Record.CheckOut)
	assert.Equal(t, "STU-1", tr.Record.BadgeID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tr.Record.Day)
	assert.Equal(t, p.ID, tr.Person.ID)

	tr, err = f.svc.RecordEvent(ctx, p.ID, at(17, 0), OriginManual)
	require.NoError(t, err)
	assert.Equal(t, CheckedOut, tr.Outcome)
	assert.Equal(t, at(9, 0), *tr.Record.CheckIn)
	require.NotNil(t, tr.Record.CheckOut)
	assert.Equal(t, at(17, 0), *tr.Record.CheckOut)

	tr, err = f.svc.RecordEvent(ctx, p.ID, at(18, 0), OriginManual)
	require.NoError(t, err)
	assert.Equal(t, AlreadyComplete, tr.Outcome)
	assert.Equal(t, at(17, 0), *tr.Record.CheckOut)

	history, err := f.svc.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, at(9, 0), *history[0].CheckIn)
	assert.Equal(t, at(17, 0), *history[0].CheckOut)
}

func TestRecordEventTerminalStateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.student(t, "STU-1", "Asha", "101")
	ctx := context.Background()

	_, err := f.svc.RecordEvent(ctx, p.ID, at(8, 0), OriginScan)
	require.NoError(t, err)
	_, err = f.svc.RecordEvent(ctx, p.ID, at(12, 0), OriginScan)
	require.NoError(t, err)
	before, err := f.ledger.FindByPersonDay(ctx, p.ID, at(0, 0))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		tr, err := f.svc.RecordEvent(ctx, p.ID, at(13+i, 0), OriginScan)
		require.NoError(t, err)
		assert.Equal(t, AlreadyComplete, tr.Outcome)
	}

	after, err := f.ledger.FindByPersonDay(ctx, p.ID, at(0, 0))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecordEventDayPartitioning(t *testing.T) {
	f := newFixture(t)
	p := f.student(t, "STU-1", "Asha", "101")
	ctx := context.Background()

	tr, err := f.svc.RecordEvent(ctx, p.ID, at(9, 0), OriginManual)
	require.NoError(t, err)
	assert.Equal(t, CheckedIn, tr.Outcome)

	// never checked out on day one; the next day's event opens a new record
	nextDay := at(9, 0).Add(24 * time.Hour)
	tr, err = f.svc.RecordEvent(ctx, p.ID, nextDay, OriginManual)
	require.NoError(t, err)
	assert.Equal(t, CheckedIn, tr.Outcome)

	history, err := f.svc.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Day.After(history[1].Day))
	assert.True(t, history[1].Open(), "day one stays open")
	assert.True(t, history[0].Open())
}

func TestRecordEventUsesReferenceZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	f := newFixture(t, WithLocation(kolkata))
	p := f.student(t, "STU-1", "Asha", "101")
	ctx := context.Background()

	// 20:00 UTC on Jan 1 is 01:30 on Jan 2 in Kolkata
	lateUTC := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	earlyUTC := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tr, err := f.svc.RecordEvent(ctx, p.ID, earlyUTC, OriginManual)
	require.NoError(t, err)
	assert.Equal(t, CheckedIn, tr.Outcome)

	tr, err = f.svc.RecordEvent(ctx, p.ID, lateUTC, OriginManual)
	require.NoError(t, err)
	assert.Equal(t, CheckedIn, tr.Outcome)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, kolkata), tr.Record.Day)
}

func TestRecordEventRejectsOutOfOrderCheckOut(t *testing.T) {
	f := newFixture(t)
	p := f.student(t, "STU-1", "Asha", "101")
	ctx := context.Background()

	_, err := f.svc.RecordEvent(ctx, p.ID, at(12, 0), OriginManual)
	require.NoError(t, err)

	_, err = f.svc.RecordEvent(ctx, p.ID, at(8, 0), OriginManual)
	require.ErrorIs(t, err, ErrOutOfOrder)
	assert.True(t, apperr.Is(err, apperr.CodeInvalid))

	rec, err := f.ledger.FindByPersonDay(ctx, p.ID, at(0, 0))
	require.NoError(t, err)
	assert.True(t, rec.Open())

	// the ledger itself refuses a check-out before check-in
	got, updated, err := f.ledger.SetCheckOut(ctx, p.ID, at(0, 0), at(11, 59))
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Nil(t, got.CheckOut)
}

func TestRecordEventUnknownPerson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordEvent(ctx, "no-such-person", at(9, 0), OriginManual)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	entries, err := f.ledger.ListAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, OutcomeRejected, notes[0].Outcome)
}

func TestRecordEventInvalidInput(t *testing.T) {
	f := newFixture(t)
	p := f.student(t, "STU-1", "Asha", "101")

	_, err := f.svc.RecordEvent(context.Background(), p.ID, at(9, 0), Origin("kiosk"))
	assert.True(t, apperr.Is(err, apperr.CodeInvalid))

	_, err = f.svc.RecordEvent(context.Background(), "", at(9, 0), OriginManual)
	assert.True(t, apperr.Is(err, apperr.CodeInvalid))
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	p := f.student(t, "STU-7", "Ravi", "202")
	ctx := context.Background()

	tr, err := f.svc.Scan(ctx, "STU-7")
	require.NoError(t, err)
	assert.Equal(t, CheckedIn, tr.Outcome)
	assert.Equal(t, OriginScan, tr.Record.Origin)
	assert.Equal(t, p.ID, tr.Record.PersonID)

	f.now = f.now.Add(8 * time.Hour)
	tr, err = f.svc.Scan(ctx, "STU-7")
	require.NoError(t, err)
	assert.Equal(t, CheckedOut, tr.Outcome)

	_, err = f.svc.Scan(ctx, "STU-404")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	notes := f.notes.all()
	require.Len(t, notes, 3)
	assert.Equal(t, string(CheckedIn), notes[0].Outcome)
	assert.Equal(t, "STU-7", notes[0].BadgeID)
	assert.Equal(t, string(CheckedOut), notes[1].Outcome)
	assert.Equal(t, OutcomeRejected, notes[2].Outcome)
	assert.Equal(t, "STU-404", notes[2].BadgeID)
}

func TestMarkUsesInjectedClock(t *testing.T) {
	f := newFixture(t)
	p := f.student(t, "STU-1", "Asha", "101")

	tr, err := f.svc.Mark(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, f.now, *tr.Record.CheckIn)
	assert.Equal(t, OriginManual, tr.Record.Origin)
	assert.Equal(t, TruncateToDay(f.now, time.UTC), f.svc.Today())
}

func TestRecordEventConcurrentFirstEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	p := f.student(t, "STU-1", "Asha", "101")
	ctx := context.Background()

	const workers = 10
	outcomes := make([]Outcome, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tr, err := f.svc.RecordEvent(ctx, p.ID, at(9, 0), OriginScan)
			outcomes[i], errs[i] = tr.Outcome, err
		}(i)
	}
	close(start)
	wg.Wait()

	counts := map[Outcome]int{}
	for i := range outcomes {
		require.NoError(t, errs[i])
		counts[outcomes[i]]++
	}
	assert.Equal(t, 1, counts[CheckedIn])
	assert.Equal(t, 1, counts[CheckedOut])
	assert.Equal(t, workers-2, counts[AlreadyComplete])

	history, err := f.svc.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordEventPairOfConcurrentScans(t *testing.T) {
	defer goleak.VerifyNone(t)

	for i := 0; i < 20; i++ {
		f := newFixture(t)
		p := f.student(t, "STU-1", "Asha", "101")
		ctx := context.Background()

		results := make(chan Outcome, 2)
		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tr, err := f.svc.RecordEvent(ctx, p.ID, at(9, 0), OriginScan)
				assert.NoError(t, err)
				results <- tr.Outcome
			}()
		}
		wg.Wait()
		close(results)

		got := map[Outcome]int{}
		for o := range results {
			got[o]++
		}
		assert.Equal(t, map[Outcome]int{CheckedIn: 1, CheckedOut: 1}, got)

		counts, err := f.ledger.CountDay(ctx, at(0, 0))
		require.NoError(t, err)
		assert.Equal(t, 1, counts.Total)
	}
}

// interleavingLedger runs before once, just ahead of the first insert.
// It is driven from a single goroutine.
type interleavingLedger struct {
	*MemoryLedger
	fired  bool
	before func()
}

func (l *interleavingLedger) InsertCheckIn(ctx context.Context, rec Record) (Record, bool, error) {
	if !l.fired {
		l.fired = true
		l.before()
	}
	return l.MemoryLedger.InsertCheckIn(ctx, rec)
}

func TestRecordEventInsertRaceWithSkewedTimes(t *testing.T) {
	store := identity.NewMemoryStore()
	people := identity.NewService(store, bcrypt.MinCost)
	p, err := people.Register(context.Background(), identity.Registration{
		Name: "Asha", Email: "asha@hostel.test", Password: "secret1",
		BadgeID: "STU-1", Floor: identity.FloorGround, RoomNumber: "101",
	})
	require.NoError(t, err)
	ctx := context.Background()

	first := at(9, 0)
	second := first.Add(time.Millisecond)

	ledger := &interleavingLedger{MemoryLedger: NewMemoryLedger(store)}
	svc := NewService(ledger, people)

	// The later-stamped scan commits between the first scan's lookup and
	// its insert.
	var winner Transition
	var winnerErr error
	ledger.before = func() {
		winner, winnerErr = svc.RecordEvent(ctx, p.ID, second, OriginScan)
	}

	loser, err := svc.RecordEvent(ctx, p.ID, first, OriginScan)
	require.NoError(t, winnerErr)
	require.NoError(t, err)
	assert.Equal(t, CheckedIn, winner.Outcome)
	assert.Equal(t, AlreadyComplete, loser.Outcome)
	assert.Equal(t, winner.Record.ID, loser.Record.ID)
	assert.True(t, loser.Record.Open())

	rec, err := ledger.FindByPersonDay(ctx, p.ID, at(0, 0))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, second, *rec.CheckIn)
	assert.Nil(t, rec.CheckOut)
}

func TestRecordEventInsertRaceLaterLoserChecksOut(t *testing.T) {
	store := identity.NewMemoryStore()
	people := identity.NewService(store, bcrypt.MinCost)
	p, err := people.Register(context.Background(), identity.Registration{
		Name: "Asha", Email: "asha@hostel.test", Password: "secret1",
		BadgeID: "STU-1", Floor: identity.FloorGround, RoomNumber: "101",
	})
	require.NoError(t, err)
	ctx := context.Background()

	ledger := &interleavingLedger{MemoryLedger: NewMemoryLedger(store)}
	svc := NewService(ledger, people)
	ledger.before = func() {
		_, err := svc.RecordEvent(ctx, p.ID, at(9, 0), OriginScan)
		assert.NoError(t, err)
	}

	tr, err := svc.RecordEvent(ctx, p.ID, at(9, 1), OriginScan)
	require.NoError(t, err)
	assert.Equal(t, CheckedOut, tr.Outcome)
	assert.Equal(t, at(9, 1), *tr.Record.CheckOut)
}

// failingLedger fails every call with a storage error.
type failingLedger struct{ *MemoryLedger }

func (failingLedger) FindByPersonDay(context.Context, string, time.Time) (*Record, error) {
	return nil, apperr.Unavailable("read attendance failed", errors.New("connection reset"))
}

func TestRecordEventSurfacesStorageFailure(t *testing.T) {
	store := identity.NewMemoryStore()
	people := identity.NewService(store, bcrypt.MinCost)
	p, err := people.Register(context.Background(), identity.Registration{
		Name: "Asha", Email: "asha@hostel.test", Password: "secret1",
		BadgeID: "STU-1", Floor: identity.FloorGround, RoomNumber: "101",
	})
	require.NoError(t, err)

	notes := &recordingNotifier{}
	svc := NewService(failingLedger{NewMemoryLedger(store)}, people, WithNotifier(notes))

	_, err = svc.RecordEvent(context.Background(), p.ID, at(9, 0), OriginManual)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))
	require.Len(t, notes.all(), 1)
	assert.Equal(t, "read attendance failed", notes.all()[0].Detail)
}

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, WithMetrics(metrics))
	p := f.student(t, "STU-1", "Asha", "101")
	ctx := context.Background()

	_, err := f.svc.RecordEvent(ctx, p.ID, at(9, 0), OriginScan)
	require.NoError(t, err)
	_, err = f.svc.RecordEvent(ctx, "ghost", at(9, 0), OriginScan)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.events.WithLabelValues(string(CheckedIn), "scan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.events.WithLabelValues(OutcomeRejected, "scan")))
}
