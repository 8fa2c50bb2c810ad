package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/domain"
)

const (
	channelPrefix  = "quiz:"
	channelSuffix  = ":responses"
	channelPattern = channelPrefix + "*" + channelSuffix

	relayBackoffMin = 100 * time.Millisecond
	relayBackoffMax = 5 * time.Second
)

var errRelayClosed = errors.New("count relay: subscription channel closed")

// CountRelay publishes response-count updates on Redis so every instance
// can push them to its own websocket subscribers.
type CountRelay struct {
	client *redis.Client
	local  app.CountNotifier
	logger *slog.Logger

	subscribed atomic.Bool
}

func NewCountRelay(client *redis.Client, local app.CountNotifier, logger *slog.Logger) *CountRelay {
	return &CountRelay{client: client, local: local, logger: logger}
}

// NotifyResponseCount implements app.CountNotifier. The update is delivered
// locally as well when publishing fails or this instance is not subscribed.
func (r *CountRelay) NotifyResponseCount(ctx context.Context, update domain.ResponseCountUpdate) {
	raw, err := json.Marshal(update)
	if err == nil {
		err = r.client.Publish(ctx, channelName(update.QuizID), raw).Err()
	}
	if err != nil {
		r.logger.Warn("count publish failed", "quiz_id", update.QuizID, "err", err)
		r.local.NotifyResponseCount(ctx, update)
		return
	}
	if !r.subscribed.Load() {
		r.local.NotifyResponseCount(ctx, update)
	}
}

// Run relays published updates to the local notifier until ctx is done,
// resubscribing with backoff whenever the subscription cannot be set up.
// ready, if non-nil, is closed the first time the subscription is active.
func (r *CountRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	backoff := relayBackoffMin
	for {
		err := r.listen(ctx, func() {
			if ready != nil {
				close(ready)
				ready = nil
			}
			backoff = relayBackoffMin
		})
		r.subscribed.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("count relay subscription lost", "err", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, relayBackoffMax)
	}
}

func (r *CountRelay) listen(ctx context.Context, onActive func()) error {
	sub := r.client.PSubscribe(ctx, channelPattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.subscribed.Store(true)
	onActive()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errRelayClosed
			}
			var update domain.ResponseCountUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				r.logger.Warn("count message dropped", "channel", msg.Channel, "err", err)
				continue
			}
			if update.QuizID == "" {
				update.QuizID = quizIDFromChannel(msg.Channel)
			}
			r.local.NotifyResponseCount(ctx, update)
		}
	}
}

func channelName(quizID string) string {
	return channelPrefix + quizID + channelSuffix
}

func quizIDFromChannel(channel string) string {
	return strings.TrimSuffix(strings.TrimPrefix(channel, channelPrefix), channelSuffix)
}
