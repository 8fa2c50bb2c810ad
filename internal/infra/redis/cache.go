package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-forms-service/internal/domain"
)

const listingKey = "quiz:listing:public"

// PublicQuizCache stores public quiz views as JSON in Redis and falls back
// to the loader on a miss.
//
//	quiz:public:{publicID} -> PublicQuiz
//	quiz:listing:public    -> []PublicQuiz
type PublicQuizCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewPublicQuizCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *PublicQuizCache {
	return &PublicQuizCache{
		client: client,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PublicQuizCache) PublicQuiz(ctx context.Context, publicID string, load func(context.Context) (*domain.PublicQuiz, error)) (*domain.PublicQuiz, error) {
	key := quizKey(publicID)
	var cached domain.PublicQuiz
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// The load is shared by every waiter on the key.
		ctx := context.WithoutCancel(ctx)
		// Re-check cache in case another goroutine filled it.
		var cached domain.PublicQuiz
		if c.get(ctx, key, &cached) {
			return &cached, nil
		}
		v, err := load(ctx)
		if err != nil || v == nil {
			return v, err
		}
		c.set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.PublicQuiz), nil
}

func (c *PublicQuizCache) PublicListing(ctx context.Context, load func(context.Context) ([]domain.PublicQuiz, error)) ([]domain.PublicQuiz, error) {
	var cached []domain.PublicQuiz
	if c.get(ctx, listingKey, &cached) {
		return cached, nil
	}

	result, err, _ := c.sf.Do(listingKey, func() (interface{}, error) {
		// The load is shared by every waiter on the key.
		ctx := context.WithoutCancel(ctx)
		var cached []domain.PublicQuiz
		if c.get(ctx, listingKey, &cached) {
			return cached, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, listingKey, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PublicQuiz), nil
}

func (c *PublicQuizCache) Invalidate(ctx context.Context, publicID string) {
	keys := []string{listingKey}
	if publicID != "" {
		keys = append(keys, quizKey(publicID))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", "public_id", publicID, "err", err)
	}
}

func (c *PublicQuizCache) get(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "err", err)
		return false
	}
	return true
}

// set is best-effort; a failed write only costs a future miss.
func (c *PublicQuizCache) set(ctx context.Context, key string, v any) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

func quizKey(publicID string) string {
	return "quiz:public:" + publicID
}

func (c *PublicQuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
