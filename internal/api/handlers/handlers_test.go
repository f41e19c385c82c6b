package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cultiflow/voicedesk/internal/api/handlers"
	"github.com/cultiflow/voicedesk/internal/api/routes"
	"github.com/cultiflow/voicedesk/internal/ledger"
	"github.com/cultiflow/voicedesk/internal/models"
	"github.com/cultiflow/voicedesk/internal/qastore"
)

func newTestRouter(t *testing.T) (*gin.Engine, *qastore.Store, *ledger.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	store, err := qastore.New(qastore.NewMemoryBackend("postgres"), qastore.NewMemoryBackend("sqlite"), "cultiflow", log)
	if err != nil {
		t.Fatal(err)
	}
	led := ledger.NewMemory()

	r := gin.New()
	routes.RegisterRoutes(r, routes.Deps{
		Call: handlers.NewCallHandler(led, nil),
		QA:   handlers.NewQAHandler(store),
	})
	return r, store, led
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQAUpsertListDelete(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/qa", `{"question":"What are your opening hours?","answer":"We open at 8am.","language":"en"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body %s", w.Code, w.Body)
	}
	var created struct {
		QAID uint `json:"qa_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.QAID == 0 {
		t.Fatalf("upsert body %s", w.Body)
	}

	w = do(r, http.MethodGet, "/qa?language=en", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "opening hours") {
		t.Fatalf("list status = %d, body %s", w.Code, w.Body)
	}

	w = do(r, http.MethodDelete, "/qa/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", w.Code, w.Body)
	}
	w = do(r, http.MethodDelete, "/qa/1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestQAUpsertValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/qa", `{"question":"no answer"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var apiErr handlers.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil || apiErr.Code == "" {
		t.Fatalf("error body %s", w.Body)
	}
}

func TestCallEndpoints(t *testing.T) {
	r, _, led := newTestRouter(t)
	ctx := context.Background()

	caller := "+233200000001"
	callID, err := led.CreateCall(ctx, &caller, "1002", "recordings/q.wav")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := led.AddConversation(ctx, &models.Conversation{
		CallID:       callID,
		QuestionText: "what is the company name",
		AnswerText:   "The company name is Cultiflow.",
		Language:     "tw",
	}); err != nil {
		t.Fatal(err)
	}
	status := models.CallStatusCompleted
	if err := led.UpdateCall(ctx, callID, ledger.CallUpdate{Status: &status}); err != nil {
		t.Fatal(err)
	}

	w := do(r, http.MethodGet, "/calls/recent", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "1002") {
		t.Fatalf("recent status = %d, body %s", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/calls/1/conversations", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Cultiflow") {
		t.Fatalf("conversations status = %d, body %s", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/calls/999", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing call status = %d, want 404", w.Code)
	}

	w = do(r, http.MethodGet, "/statistics?date="+time.Now().UTC().Format("2006-01-02"), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total_calls":1`) {
		t.Fatalf("statistics status = %d, body %s", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/statistics?date=not-a-date", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", w.Code)
	}
}

func TestProcessWithoutQueueIsUnavailable(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/calls/process", `{"audio_path":"recordings/q.wav"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
