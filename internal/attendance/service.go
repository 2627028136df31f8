package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

// Directory resolves people for the engine.
type Directory interface {
	Get(ctx context.Context, id string) (identity.Person, error)
	ResolveBadge(ctx context.Context, badgeID string) (identity.Person, error)
}

// Notice describes one processed event, successful or not.
type Notice struct {
	PersonID   string    `json:"person_id,omitempty"`
	BadgeID    string    `json:"badge_id,omitempty"`
	RecordID   string    `json:"record_id,omitempty"`
	Outcome    string    `json:"outcome"`
	Origin     Origin    `json:"origin"`
	OccurredAt time.Time `json:"occurred_at"`
	Detail     string    `json:"detail,omitempty"`
}

// OutcomeRejected labels notices for events that produced no transition.
const OutcomeRejected = "rejected"

// Notifier receives a Notice after every event. Notify must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Service is the attendance state engine.
type Service struct {
	ledger   Ledger
	people   Directory
	loc      *time.Location
	clock    Clock
	metrics  *Metrics
	notifier Notifier
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }
func WithLocation(l *time.Location) Option { return func(s *Service) { s.loc = l } }

// NewService creates the engine. Days are partitioned in UTC unless
// WithLocation says otherwise.
func NewService(ledger Ledger, people Directory, opts ...Option) *Service {
	s := &Service{
		ledger: ledger,
		people: people,
		loc:    time.UTC,
		clock:  SystemClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the reference zone days are computed in.
func (s *Service) Location() *time.Location { return s.loc }

// Today is the current day in the reference zone.
func (s *Service) Today() time.Time { return TruncateToDay(s.clock.Now(), s.loc) }

// Mark records a self-service event for personID at the current time.
func (s *Service) Mark(ctx context.Context, personID string) (Transition, error) {
	return s.RecordEvent(ctx, personID, s.clock.Now(), OriginManual)
}

// Scan records an operator scan of a badge at the current time.
func (s *Service) Scan(ctx context.Context, badgeID string) (Transition, error) {
	at := s.clock.Now()
	person, err := s.people.ResolveBadge(ctx, badgeID)
	if err != nil {
		s.reject(ctx, Notice{BadgeID: badgeID, Origin: OriginScan, OccurredAt: at}, err)
		return Transition{}, err
	}
	return s.RecordEvent(ctx, person.ID, at, OriginScan)
}

// RecordEvent applies one event to the person's day:
//
//	no record          -> insert with check-in   (CheckedIn)
//	open record        -> set check-out          (CheckedOut)
//	closed record      -> nothing                (AlreadyComplete)
//
// Unknown people fail with NotFound and nothing is written.
func (s *Service) RecordEvent(ctx context.Context, personID string, at time.Time, origin Origin) (Transition, error) {
	notice := Notice{PersonID: personID, Origin: origin, OccurredAt: at}
	if !origin.Valid() {
		err := apperr.Invalid(fmt.Sprintf("unknown origin %q", origin))
		s.reject(ctx, notice, err)
		return Transition{}, err
	}
	if personID == "" {
		err := apperr.Invalid("user id is required")
		s.reject(ctx, notice, err)
		return Transition{}, err
	}

	start := time.Now()
	person, err := s.people.Get(ctx, personID)
	if err != nil {
		s.reject(ctx, notice, err)
		return Transition{}, err
	}
	notice.BadgeID = person.BadgeID

	tr, err := s.apply(ctx, person, at, origin)
	if err != nil {
		s.reject(ctx, notice, err)
		return Transition{}, err
	}
	tr.Person = person

	s.metrics.observe(string(tr.Outcome), origin, time.Since(start))
	notice.RecordID = tr.Record.ID
	notice.Outcome = string(tr.Outcome)
	s.notify(ctx, notice)
	s.logger.Debug("attendance event",
		zap.String("person_id", person.ID),
		zap.String("outcome", string(tr.Outcome)),
		zap.String("origin", string(origin)),
		zap.Time("at", at))
	return tr, nil
}

func (s *Service) apply(ctx context.Context, person identity.Person, at time.Time, origin Origin) (Transition, error) {
	day := TruncateToDay(at, s.loc)

	current, err := s.ledger.FindByPersonDay(ctx, person.ID, day)
	if err != nil {
		return Transition{}, fmt.Errorf("find attendance: %w", err)
	}

	if current == nil {
		checkIn := at
		rec, created, err := s.ledger.InsertCheckIn(ctx, Record{
			ID:       uuid.NewString(),
			PersonID: person.ID,
			BadgeID:  person.BadgeID,
			Day:      day,
			CheckIn:  &checkIn,
			Origin:   origin,
		})
		if err != nil {
			return Transition{}, fmt.Errorf("insert check-in: %w", err)
		}
		if created {
			return Transition{Outcome: CheckedIn, Record: rec}, nil
		}
		// A concurrent event created the record first; continue from its state.
		// An event stamped before the winning check-in is the same scan seen
		// twice and changes nothing.
		if rec.CheckOut == nil && rec.CheckIn != nil && at.Before(*rec.CheckIn) {
			return Transition{Outcome: AlreadyComplete, Record: rec}, nil
		}
		current = &rec
	}

	if current.CheckOut != nil {
		return Transition{Outcome: AlreadyComplete, Record: *current}, nil
	}
	if current.CheckIn != nil && at.Before(*current.CheckIn) {
		return Transition{}, ErrOutOfOrder
	}

	rec, updated, err := s.ledger.SetCheckOut(ctx, person.ID, day, at)
	if err != nil {
		return Transition{}, fmt.Errorf("set check-out: %w", err)
	}
	if updated {
		return Transition{Outcome: CheckedOut, Record: rec}, nil
	}
	if rec.CheckOut != nil {
		return Transition{Outcome: AlreadyComplete, Record: rec}, nil
	}
	return Transition{}, ErrOutOfOrder
}

// History returns the person's records, newest day first.
func (s *Service) History(ctx context.Context, personID string) ([]Record, error) {
	if personID == "" {
		return nil, apperr.Invalid("user id is required")
	}
	if !identity.ValidID(personID) {
		return nil, nil
	}
	return s.ledger.ListByPerson(ctx, personID)
}

// List returns records matching f. A malformed person filter matches nothing.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.PersonID != "" && !identity.ValidID(f.PersonID) {
		return nil, nil
	}
	return s.ledger.ListAll(ctx, f)
}

// CountDay returns the total and open record counts for day.
func (s *Service) CountDay(ctx context.Context, day time.Time) (DayCounts, error) {
	return s.ledger.CountDay(ctx, TruncateToDay(day, s.loc))
}

func (s *Service) reject(ctx context.Context, n Notice, err error) {
	s.metrics.observe(OutcomeRejected, n.Origin, 0)
	n.Outcome = OutcomeRejected
	n.Detail = apperr.Message(err)
	s.notify(ctx, n)
	if apperr.CodeOf(err) == apperr.CodeInternal || apperr.Is(err, apperr.CodeUnavailable) {
		s.logger.Error("attendance event failed", zap.String("person_id", n.PersonID), zap.String("badge_id", n.BadgeID), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, n Notice) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}
