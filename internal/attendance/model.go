package attendance

import (
	"time"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

// Origin records how an attendance event was triggered.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginScan   Origin = "scan"
)

func (o Origin) Valid() bool { return o == OriginManual || o == OriginScan }

// Outcome is the result of applying one event to a person's day.
type Outcome string

const (
	CheckedIn       Outcome = "checked_in"
	CheckedOut      Outcome = "checked_out"
	AlreadyComplete Outcome = "already_complete"
)

// Message is the user-facing text for an outcome.
func (o Outcome) Message() string {
	switch o {
	case CheckedIn:
		return "Checked in successfully."
	case CheckedOut:
		return "Checked out successfully."
	case AlreadyComplete:
		return "Already checked in and out for today."
	default:
		return string(o)
	}
}

// ErrOutOfOrder is returned when an event would put check-out before check-in.
var ErrOutOfOrder = apperr.Invalid("event time is before the recorded check-in")

// Record is one person's attendance for one calendar day. BadgeID is copied
// from the person when the record is created and is not kept in sync.
type Record struct {
	ID        string     `json:"id"`
	PersonID  string     `json:"user_id"`
	BadgeID   string     `json:"student_id"`
	Day       time.Time  `json:"date"`
	CheckIn   *time.Time `json:"check_in"`
	CheckOut  *time.Time `json:"check_out"`
	Origin    Origin     `json:"method"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Open reports whether the person has checked in but not out.
func (r Record) Open() bool { return r.CheckIn != nil && r.CheckOut == nil }

// Closed reports whether both timestamps are set.
func (r Record) Closed() bool { return r.CheckIn != nil && r.CheckOut != nil }

// Entry is a record joined with the current attributes of its person.
// The person fields are empty when the person has since been deleted.
type Entry struct {
	Record
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Floor      identity.Floor `json:"floor,omitempty"`
	RoomNumber string         `json:"room_number"`
}

// Filter narrows ListAll. Zero-valued fields do not restrict.
type Filter struct {
	Day      *time.Time
	PersonID string
	Badge    string // case-insensitive substring
	Name     string // case-insensitive substring
	Room     string // exact room number
	Limit    int
	Offset   int
}

// DayCounts aggregates one day's records.
type DayCounts struct {
	Total int `json:"today_total"`
	Open  int `json:"present_now"`
}

// Transition is the result of RecordEvent.
type Transition struct {
	Outcome Outcome         `json:"status"`
	Record  Record          `json:"record"`
	Person  identity.Person `json:"user"`
}
