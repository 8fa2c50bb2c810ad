package app

import (
	"context"
	"sync"

	"quiz-forms-service/internal/domain"
)

// ResponseFeed fans committed response-count updates out to in-process
// subscribers, keyed by quiz.
type ResponseFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.ResponseCountUpdate]struct{}
}

func NewResponseFeed() *ResponseFeed {
	return &ResponseFeed{
		subscribers: make(map[string]map[chan domain.ResponseCountUpdate]struct{}),
	}
}

// Subscribe returns a channel of updates for quizID.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ResponseFeed) Subscribe(quizID string) (<-chan domain.ResponseCountUpdate, func()) {
	ch := make(chan domain.ResponseCountUpdate, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.ResponseCountUpdate]struct{})
		f.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[quizID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, quizID)
		}
	}
	return ch, cancel
}

// NotifyResponseCount implements CountNotifier.
func (f *ResponseFeed) NotifyResponseCount(_ context.Context, update domain.ResponseCountUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[update.QuizID] {
		select {
		case ch <- update:
		default:
			// Full buffer: drop the oldest so the newest count always lands.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}

// Subscribers reports how many listeners are attached to quizID.
func (f *ResponseFeed) Subscribers(quizID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[quizID])
}
