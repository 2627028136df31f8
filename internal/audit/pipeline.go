package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"hostelattendance/internal/attendance"
	"hostelattendance/internal/queue"
)

// MessageType tags attendance notices on the queue.
const MessageType = "attendance.event"

// Publisher forwards engine notices to a queue. It implements
// attendance.Notifier.
type Publisher struct {
	q       queue.Queue
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublisher(q queue.Queue, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{q: q, timeout: 2 * time.Second, logger: logger}
}

// Notify publishes n. Failures are logged; the event itself is already
// recorded by the time Notify runs.
func (p *Publisher) Notify(ctx context.Context, n attendance.Notice) {
	body, err := json.Marshal(n)
	if err != nil {
		p.logger.Error("encode notice", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.q.Publish(ctx, queue.Message{Type: MessageType, Body: body}); err != nil {
		p.logger.Warn("publish notice failed",
			zap.String("outcome", n.Outcome),
			zap.String("person_id", n.PersonID),
			zap.Error(err))
	}
}

// Consumer drains the queue into a Store.
type Consumer struct {
	q      queue.Queue
	store  Store
	logger *zap.Logger
}

func NewConsumer(q queue.Queue, store Store, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{q: q, store: store, logger: logger}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		c.handle(ctx, msg)
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != MessageType {
		c.logger.Warn("unknown message type", zap.String("type", msg.Type))
		return
	}
	var n attendance.Notice
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		c.logger.Warn("malformed notice", zap.Error(err))
		return
	}
	if err := c.store.Append(ctx, FromNotice(n)); err != nil {
		c.logger.Error("append audit failed", zap.String("outcome", n.Outcome), zap.Error(err))
		return
	}
	c.logger.Debug("audit appended",
		zap.String("outcome", n.Outcome),
		zap.String("origin", string(n.Origin)))
}
