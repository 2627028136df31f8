package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"hostelattendance/internal/attendance"
	"hostelattendance/internal/queue"
)

func TestMemoryStoreRecent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, o := range []string{"checked_in", "checked_out", "already_complete"} {
		require.NoError(t, s.Append(ctx, Entry{Outcome: o}))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "already_complete", got[0].Outcome)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "checked_out", got[1].Outcome)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPublisherToConsumer(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := queue.NewInMemory(8)
	store := NewMemoryStore()
	logger := zaptest.NewLogger(t)
	pub := NewPublisher(q, logger)

	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	pub.Notify(context.Background(), attendance.Notice{
		PersonID: "p-1", BadgeID: "STU-1", RecordID: "r-1",
		Outcome: string(attendance.CheckedIn), Origin: attendance.OriginScan, OccurredAt: at,
	})
	pub.Notify(context.Background(), attendance.Notice{
		BadgeID: "STU-404", Outcome: attendance.OutcomeRejected,
		Origin: attendance.OriginScan, OccurredAt: at, Detail: "student not found",
	})
	require.NoError(t, q.Publish(context.Background(), queue.Message{Type: "other"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewConsumer(q, store, logger).Run(ctx) }()

	require.Eventually(t, func() bool {
		got, _ := store.Recent(context.Background(), 0)
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	got, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, attendance.OutcomeRejected, got[0].Outcome)
	assert.Equal(t, "student not found", got[0].Detail)
	assert.Equal(t, "checked_in", got[1].Outcome)
	assert.Equal(t, "r-1", got[1].RecordID)
	assert.True(t, at.Equal(got[1].OccurredAt))
}

func TestPublisherWiredIntoEngine(t *testing.T) {
	q := queue.NewInMemory(1)
	var n attendance.Notifier = NewPublisher(q, nil)
	n.Notify(context.Background(), attendance.Notice{Outcome: "checked_in"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, MessageType, msg.Type)
	assert.Contains(t, string(msg.Body), `"outcome":"checked_in"`)
}
