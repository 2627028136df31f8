// Package report turns attendance records into the views and files staff
// read: daily counts, durations, the self-service history and exports.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hostelattendance/internal/attendance"
)

// Unknown is rendered for durations of open records.
const Unknown = "unknown"

// FormatDuration renders check-out minus check-in as "Xh Ym", truncated to
// the minute. Open records render as Unknown.
func FormatDuration(rec attendance.Record) string {
	if !rec.Closed() {
		return Unknown
	}
	d := rec.CheckOut.Sub(*rec.CheckIn)
	if d < 0 {
		return Unknown
	}
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// Stats is the dashboard summary for one day.
type Stats struct {
	Date       string `json:"date"`
	PresentNow int    `json:"present_now"`
	TodayTotal int    `json:"today_total"`
}

// DayCounter counts one day's records.
type DayCounter interface {
	CountDay(ctx context.Context, day time.Time) (attendance.DayCounts, error)
}

// DayStats summarises day.
func DayStats(ctx context.Context, src DayCounter, day time.Time) (Stats, error) {
	c, err := src.CountDay(ctx, day)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Date: day.Format(attendance.DateLayout), PresentNow: c.Open, TodayTotal: c.Total}, nil
}

// Event kinds in a flattened history.
const (
	KindCheckIn  = "check-in"
	KindCheckOut = "check-out"
)

// HistoryItem is one timestamp of a record.
type HistoryItem struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Method    attendance.Origin `json:"method"`
}

// History flattens records into check-in and check-out items, newest first.
func History(records []attendance.Record) []HistoryItem {
	items := make([]HistoryItem, 0, 2*len(records))
	for _, r := range records {
		if r.CheckIn != nil {
			items = append(items, HistoryItem{ID: r.ID + "-in", Type: KindCheckIn, Timestamp: *r.CheckIn, Method: r.Origin})
		}
		if r.CheckOut != nil {
			items = append(items, HistoryItem{ID: r.ID + "-out", Type: KindCheckOut, Timestamp: *r.CheckOut, Method: r.Origin})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	return items
}
