package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-forms-service/internal/domain"
)

type countMessage struct {
	Type    string                     `json:"type"`
	Payload domain.ResponseCountUpdate `json:"payload"`
}

func readCount(t *testing.T, conn *websocket.Conn) countMessage {
	t.Helper()
	var msg countMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketStreamsResponseCounts(t *testing.T) {
	env := newTestEnv(t)
	owner := mintToken(t, "ext-ana", "ana@example.com", "Ana")
	created := createLanguageQuiz(t, env, owner)

	u := "ws" + env.server.URL[len("http"):] + "/ws/quizzes/" + created.QuizID + "/responses?access_token=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	initial := readCount(t, conn)
	if initial.Type != "count" || initial.Payload.QuizID != created.QuizID || initial.Payload.ResponseCount != 0 {
		t.Fatalf("unexpected initial message: %+v", initial)
	}

	var result domain.SubmissionResult
	status := env.do(t, http.MethodPost, "/api/quizzes/"+created.QuizID+"/submissions", "", map[string]any{
		"answers": []map[string]any{{"questionId": created.Quiz.Questions[0].ID, "text": "Go"}},
	}, &result)
	if status != http.StatusCreated {
		t.Fatalf("submit: %d", status)
	}

	update := readCount(t, conn)
	if update.Payload.ResponseCount != 1 || update.Payload.ResponseID != result.ResponseID {
		t.Fatalf("unexpected update: %+v", update)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for env.feed.Subscribers(created.QuizID) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := mintToken(t, "ext-ana", "ana@example.com", "Ana")
	intruder := mintToken(t, "ext-bo", "bo@example.com", "Bo")
	created := createLanguageQuiz(t, env, owner)

	base := "ws" + env.server.URL[len("http"):] + "/ws/quizzes/" + created.QuizID + "/responses"
	_, resp, err := websocket.DefaultDialer.Dial(base+"?access_token="+intruder, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %v", err)
	}
	_, resp, err = websocket.DefaultDialer.Dial(base, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", err)
	}
}
