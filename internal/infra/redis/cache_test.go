package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-forms-service/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublicQuizCachedAsJSON(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	cache := NewPublicQuizCache(client, time.Minute, discardLogger())

	calls := 0
	load := func(context.Context) (*domain.PublicQuiz, error) {
		calls++
		return &domain.PublicQuiz{ID: "quiz-1", PublicID: "abc12345", Title: "Favorite Language"}, nil
	}
	for i := 0; i < 2; i++ {
		got, err := cache.PublicQuiz(ctx, "abc12345", load)
		if err != nil || got == nil || got.Title != "Favorite Language" {
			t.Fatalf("get %d: %+v %v", i, got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected loader once, got %d", calls)
	}
	if !mr.Exists("quiz:public:abc12345") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:public:abc12345"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %s", ttl)
	}
}

func TestPublicQuizMissNotCached(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	cache := NewPublicQuizCache(client, time.Minute, discardLogger())

	got, err := cache.PublicQuiz(ctx, "nope0000", func(context.Context) (*domain.PublicQuiz, error) { return nil, nil })
	if err != nil || got != nil {
		t.Fatalf("expected nil miss, got %+v %v", got, err)
	}
	if mr.Exists("quiz:public:nope0000") {
		t.Fatalf("expected miss not cached")
	}
}

func TestInvalidateClearsQuizAndListing(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	cache := NewPublicQuizCache(client, time.Minute, discardLogger())

	_, _ = cache.PublicQuiz(ctx, "abc12345", func(context.Context) (*domain.PublicQuiz, error) {
		return &domain.PublicQuiz{ID: "quiz-1"}, nil
	})
	_, _ = cache.PublicListing(ctx, func(context.Context) ([]domain.PublicQuiz, error) {
		return []domain.PublicQuiz{{ID: "quiz-1"}}, nil
	})
	if !mr.Exists(listingKey) {
		t.Fatalf("expected listing key to be set")
	}

	cache.Invalidate(ctx, "abc12345")
	if mr.Exists(listingKey) || mr.Exists("quiz:public:abc12345") {
		t.Fatalf("expected keys removed")
	}
}

func TestCorruptEntryFallsBackToLoader(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	cache := NewPublicQuizCache(client, time.Minute, discardLogger())
	if err := mr.Set("quiz:public:abc12345", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := cache.PublicQuiz(ctx, "abc12345", func(context.Context) (*domain.PublicQuiz, error) {
		return &domain.PublicQuiz{ID: "quiz-1"}, nil
	})
	if err != nil || got == nil || got.ID != "quiz-1" {
		t.Fatalf("expected loader result, got %+v %v", got, err)
	}
}

func TestPublicQuizLoadIgnoresCallerCancel(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewPublicQuizCache(client, time.Minute, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	load := func(ctx context.Context) (*domain.PublicQuiz, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &domain.PublicQuiz{ID: "quiz-1", PublicID: "abc12345"}, nil
	}
	got, err := cache.PublicQuiz(ctx, "abc12345", load)
	if err != nil || got == nil || got.ID != "quiz-1" {
		t.Fatalf("expected load to run detached from caller, got %+v %v", got, err)
	}
	if !mr.Exists("quiz:public:abc12345") {
		t.Fatalf("expected detached load to fill the cache")
	}
}
