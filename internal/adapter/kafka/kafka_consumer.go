package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// ErrPoison marks a message that will never succeed; it is committed and
// dropped instead of retried.
var ErrPoison = errors.New("poison message")

const (
	retryBase = 200 * time.Millisecond
	retryMax  = 10 * time.Second
)

// HandlerFunc processes one decoded event.
type HandlerFunc[T any] func(ctx context.Context, ev T) error

// Consumer consumes topics with a single typed handler.
type Consumer[T any] struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc[T]
	Logger *slog.Logger
}

func NewConsumer[T any](group sarama.ConsumerGroup, topics []string, h HandlerFunc[T]) *Consumer[T] {
	return &Consumer[T]{
		Group:  group,
		Topics: topics,
		Handle: h,
		Logger: logging.New("kafka-consumer"),
	}
}

// Start blocks until ctx is cancelled or the group fails.
func (c *Consumer[T]) Start(ctx context.Context) error {
	go func() {
		for err := range c.Group.Errors() {
			c.Logger.Warn("consumer group error", "err", err)
		}
	}()
	handler := &cgHandler[T]{handle: c.Handle, logger: c.Logger, retryBase: retryBase, retryMax: retryMax}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// Consume returns on rebalance or cancellation
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler[T any] struct {
	handle    HandlerFunc[T]
	logger    *slog.Logger
	retryBase time.Duration
	retryMax  time.Duration
}

func (h *cgHandler[T]) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler[T]) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles messages in offset order. A failing message blocks
// its partition, since marking a later offset would commit past it.
func (h *cgHandler[T]) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		log := h.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		var ev T
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Error("kafka decode error", "err", err)
			sess.MarkMessage(msg, "decode-error")
			continue
		}
		if !h.deliver(sess, msg, log, ev) {
			return nil
		}
	}
	return nil
}

// deliver retries transient failures with backoff. It returns false when
// the session ends first; the message stays unmarked for the next owner.
func (h *cgHandler[T]) deliver(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, log *slog.Logger, ev T) bool {
	ctx := logging.WithCtx(sess.Context(), log)
	wait := h.retryBase
	for attempt := 1; ; attempt++ {
		err := h.handle(ctx, ev)
		switch {
		case err == nil:
			sess.MarkMessage(msg, "")
			return true
		case errors.Is(err, ErrPoison):
			log.Error("dropping message", "err", err)
			sess.MarkMessage(msg, "poison")
			return true
		}
		log.Warn("handler error, retrying", "err", err, "attempt", attempt, "backoff", wait)
		select {
		case <-sess.Context().Done():
			return false
		case <-time.After(wait):
		}
		wait = min(wait*2, h.retryMax)
	}
}
