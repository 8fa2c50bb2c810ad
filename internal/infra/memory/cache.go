package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-forms-service/internal/domain"
)

const listingKey = "\x00listing"

// PublicQuizCache caches public quiz views in process with TTL to avoid
// repeated store hits.
type PublicQuizCache struct {
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu      sync.RWMutex
	quizzes map[string]cachedEntry[domain.PublicQuiz]
	listing *cachedEntry[[]domain.PublicQuiz]
}

type cachedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func NewPublicQuizCache(ttl time.Duration) *PublicQuizCache {
	return &PublicQuizCache{
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes: make(map[string]cachedEntry[domain.PublicQuiz]),
	}
}

func (c *PublicQuizCache) PublicQuiz(ctx context.Context, publicID string, load func(context.Context) (*domain.PublicQuiz, error)) (*domain.PublicQuiz, error) {
	if v, ok := c.cachedQuiz(publicID); ok {
		return v, nil
	}

	result, err, _ := c.sf.Do(publicID, func() (interface{}, error) {
		// The load is shared by every waiter on the key.
		ctx := context.WithoutCancel(ctx)
		if v, ok := c.cachedQuiz(publicID); ok {
			return v, nil
		}
		now := c.clock()
		v, err := load(ctx)
		if err != nil || v == nil {
			return v, err
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			c.quizzes[publicID] = cachedEntry[domain.PublicQuiz]{value: *v, expiresAt: now.Add(ttl)}
			c.mu.Unlock()
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.PublicQuiz), nil
}

func (c *PublicQuizCache) PublicListing(ctx context.Context, load func(context.Context) ([]domain.PublicQuiz, error)) ([]domain.PublicQuiz, error) {
	if v, ok := c.cachedListing(); ok {
		return v, nil
	}

	result, err, _ := c.sf.Do(listingKey, func() (interface{}, error) {
		// The load is shared by every waiter on the key.
		ctx := context.WithoutCancel(ctx)
		if v, ok := c.cachedListing(); ok {
			return v, nil
		}
		now := c.clock()
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			c.listing = &cachedEntry[[]domain.PublicQuiz]{value: v, expiresAt: now.Add(ttl)}
			c.mu.Unlock()
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PublicQuiz), nil
}

func (c *PublicQuizCache) Invalidate(_ context.Context, publicID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quizzes, publicID)
	c.listing = nil
}

func (c *PublicQuizCache) cachedQuiz(publicID string) (*domain.PublicQuiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.quizzes[publicID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	v := entry.value
	return &v, true
}

func (c *PublicQuizCache) cachedListing() ([]domain.PublicQuiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listing == nil || !c.listing.expiresAt.After(c.clock()) {
		return nil, false
	}
	return c.listing.value, true
}

func (c *PublicQuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
