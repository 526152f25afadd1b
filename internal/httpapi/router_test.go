package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/creator-scout/internal/ai"
	"github.com/suPer8Hu/creator-scout/internal/auth"
	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/db"
	"github.com/suPer8Hu/creator-scout/internal/httpapi/handlers"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

const testSecret = "test-secret"

type scriptedProvider struct {
	mu      sync.Mutex
	answers []string
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.answers) == 0 {
		return "", errors.New("no scripted answer")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []string
}

func (p *recordingPublisher) PublishJob(ctx context.Context, topic, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, topic+":"+taskID)
	return nil
}

type recordingStopper struct {
	stopped []string
}

func (s *recordingStopper) RequestStop(ctx context.Context, taskID string) error {
	s.stopped = append(s.stopped, taskID)
	return nil
}

type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	store   *task.Store
	pub     *recordingPublisher
	stopper *recordingStopper
}

func newTestEnv(t *testing.T, answers ...string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	prov := &scriptedProvider{answers: answers}
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		return prov, nil
	})

	pub := &recordingPublisher{}
	stopper := &recordingStopper{}
	store := task.NewStore(gdb, nil)
	tasks := task.NewDispatcher(store, pub, nil)
	svc := chat.NewService(chat.NewRepo(gdb), reg, tasks, 20, nil)
	h := handlers.NewHandler(svc, tasks, stopper, nil)

	return &testEnv{
		router:  NewRouter(h, testSecret, nil),
		db:      gdb,
		store:   store,
		pub:     pub,
		stopper: stopper,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, userID uint64, body any) (int, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		tok, err := auth.SignJWT(userID, testSecret, time.Hour)
		if err != nil {
			t.Fatalf("sign jwt: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope (%d): %v: %s", w.Code, err, w.Body.String())
	}
	return w.Code, env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v: %s", err, string(env.Data))
	}
}

func TestRouter_AuthAndFallbacks(t *testing.T) {
	e := newTestEnv(t)

	if code, env := e.do(t, http.MethodGet, "/ping", 0, nil); code != http.StatusOK || env.Code != 0 {
		t.Fatalf("ping: %d %+v", code, env)
	}
	if code, env := e.do(t, http.MethodGet, "/chat/sessions", 0, nil); code != http.StatusUnauthorized || env.Code != 40101 {
		t.Fatalf("missing token: %d %+v", code, env)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "40102") {
		t.Fatalf("bad token: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}

	if code, env := e.do(t, http.MethodGet, "/nope", 1, nil); code != http.StatusNotFound || env.Code != 40400 {
		t.Fatalf("no route: %d %+v", code, env)
	}
	if code, env := e.do(t, http.MethodDelete, "/ping", 0, nil); code != http.StatusMethodNotAllowed || env.Code != 40500 {
		t.Fatalf("no method: %d %+v", code, env)
	}
}

func TestRouter_ChatSessions(t *testing.T) {
	e := newTestEnv(t, "Hello!")

	code, env := e.do(t, http.MethodPost, "/chat/sessions", 3, nil)
	if code != http.StatusOK {
		t.Fatalf("create session: %d %+v", code, env)
	}
	var sess chat.Session
	decodeData(t, env, &sess)
	if sess.ID == 0 || sess.Title != nil {
		t.Fatalf("unexpected session: %+v", sess)
	}

	code, env = e.do(t, http.MethodPatch, fmt.Sprintf("/chat/sessions/%d", sess.ID), 3, gin.H{"title": "Chefs"})
	if code != http.StatusOK {
		t.Fatalf("rename: %d %+v", code, env)
	}
	// another user sees nothing
	if code, env := e.do(t, http.MethodPatch, fmt.Sprintf("/chat/sessions/%d", sess.ID), 4, gin.H{"title": "x"}); code != http.StatusNotFound || env.Code != 40004 {
		t.Fatalf("foreign rename: %d %+v", code, env)
	}
	if code, env := e.do(t, http.MethodGet, "/chat/sessions/abc/messages", 3, nil); code != http.StatusBadRequest || env.Code != 10004 {
		t.Fatalf("bad id: %d %+v", code, env)
	}

	code, env = e.do(t, http.MethodPost, "/chat/messages", 3, gin.H{"session_id": sess.ID, "message": "hi"})
	if code != http.StatusOK {
		t.Fatalf("send: %d %+v", code, env)
	}
	var res chat.SendResult
	decodeData(t, env, &res)
	if res.Reply != "Hello!" || res.SessionID != sess.ID || res.TaskID != "" {
		t.Fatalf("unexpected send result: %+v", res)
	}

	code, env = e.do(t, http.MethodGet, fmt.Sprintf("/chat/sessions/%d/messages", sess.ID), 3, nil)
	if code != http.StatusOK {
		t.Fatalf("list messages: %d %+v", code, env)
	}
	var page struct {
		Messages     []chat.Message `json:"messages"`
		NextBeforeID uint64         `json:"next_before_id"`
	}
	decodeData(t, env, &page)
	if len(page.Messages) != 2 || page.Messages[0].Role != chat.RoleAssistant || page.NextBeforeID != page.Messages[1].ID {
		t.Fatalf("unexpected page: %+v", page)
	}

	code, env = e.do(t, http.MethodGet, "/chat/sessions", 3, nil)
	var list struct {
		Sessions []chat.Session `json:"sessions"`
	}
	decodeData(t, env, &list)
	if code != http.StatusOK || len(list.Sessions) != 1 || list.Sessions[0].Title == nil || *list.Sessions[0].Title != "Chefs" {
		t.Fatalf("unexpected sessions: %d %+v", code, list)
	}

	if code, env := e.do(t, http.MethodPost, "/chat/messages", 3, gin.H{"session_id": sess.ID}); code != http.StatusBadRequest || env.Code != 10001 {
		t.Fatalf("empty message: %d %+v", code, env)
	}
}

func TestRouter_ChatTaskPollAndStop(t *testing.T) {
	e := newTestEnv(t,
		"On it.\n[DETECTED_ENDPOINT: /instagram/search]",
		`{"query": "vegan chefs in Lisbon"}`,
	)
	ctx := context.Background()

	code, env := e.do(t, http.MethodPost, "/chat/messages", 5, gin.H{"message": "find vegan chefs in Lisbon"})
	if code != http.StatusOK {
		t.Fatalf("send: %d %+v", code, env)
	}
	var res chat.SendResult
	decodeData(t, env, &res)
	if res.TaskID == "" || res.Reply != "" || !res.SessionCreated {
		t.Fatalf("unexpected send result: %+v", res)
	}
	if len(e.pub.jobs) != 1 || e.pub.jobs[0] != "instagram.search:"+res.TaskID {
		t.Fatalf("unexpected published jobs: %v", e.pub.jobs)
	}

	code, env = e.do(t, http.MethodGet, "/tasks/"+res.TaskID, 5, nil)
	var got task.Task
	decodeData(t, env, &got)
	if code != http.StatusOK || got.Status != task.StatusPending || got.Topic != task.TopicInstagramSearch {
		t.Fatalf("get task: %d %+v", code, got)
	}
	link, err := chat.NewRepo(e.db).GetLinkByTaskID(ctx, res.TaskID)
	if err != nil || link.Status != chat.LinkPolling {
		t.Fatalf("expected polling link, got %+v err=%v", link, err)
	}

	if code, env := e.do(t, http.MethodGet, "/tasks/"+res.TaskID, 6, nil); code != http.StatusNotFound || env.Code != 40402 {
		t.Fatalf("foreign task: %d %+v", code, env)
	}
	if code, env := e.do(t, http.MethodGet, "/tasks/missing", 5, nil); code != http.StatusNotFound || env.Code != 40402 {
		t.Fatalf("missing task: %d %+v", code, env)
	}

	code, env = e.do(t, http.MethodPost, "/tasks/"+res.TaskID+"/stop", 5, nil)
	var stop struct {
		TaskID        string      `json:"taskId"`
		Status        task.Status `json:"status"`
		StopRequested bool        `json:"stopRequested"`
	}
	decodeData(t, env, &stop)
	if code != http.StatusOK || stop.Status != task.StatusFailed || !stop.StopRequested {
		t.Fatalf("stop: %d %+v", code, stop)
	}

	stored, err := e.store.FindByTaskID(ctx, res.TaskID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if stored.Status != task.StatusFailed || stored.Error == nil || *stored.Error != "stopped by user" {
		t.Fatalf("unexpected stored task: %+v", stored)
	}

	var msgs []chat.Message
	if err := e.db.Where("session_id = ?", res.SessionID).Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "Task failed: stopped by user" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	// stopping again is a no-op on the terminal task
	code, env = e.do(t, http.MethodPost, "/tasks/"+res.TaskID+"/stop", 5, nil)
	decodeData(t, env, &stop)
	if code != http.StatusOK || stop.StopRequested || stop.Status != task.StatusFailed {
		t.Fatalf("second stop: %d %+v", code, stop)
	}
	if len(e.stopper.stopped) != 1 {
		t.Fatalf("expected one stop flag, got %v", e.stopper.stopped)
	}
}

func TestRouter_StopRunningTaskFlagsWorker(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tk := &task.Task{TaskID: "run-1", UserID: 9, Topic: task.TopicTikTokSearch}
	if err := e.store.Create(ctx, tk); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := e.store.Update(ctx, tk.TaskID, task.Running(time.Now())); err != nil {
		t.Fatalf("mark running: %v", err)
	}

	code, env := e.do(t, http.MethodPost, "/tasks/run-1/stop", 9, nil)
	var stop struct {
		Status        task.Status `json:"status"`
		StopRequested bool        `json:"stopRequested"`
	}
	decodeData(t, env, &stop)
	if code != http.StatusOK || stop.Status != task.StatusRunning || !stop.StopRequested {
		t.Fatalf("stop: %d %+v", code, stop)
	}
	if len(e.stopper.stopped) != 1 || e.stopper.stopped[0] != "run-1" {
		t.Fatalf("unexpected stop flags: %v", e.stopper.stopped)
	}
	stored, _ := e.store.FindByTaskID(ctx, "run-1")
	if stored.Status != task.StatusRunning {
		t.Fatalf("running task must be left to the worker, got %s", stored.Status)
	}
}

func TestRouter_DirectTaskEndpoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	code, env := e.do(t, http.MethodPost, "/tiktok/analysis", 2, gin.H{"task_id": "direct-1", "profile": "@Cook.Lab"})
	if code != http.StatusOK {
		t.Fatalf("create: %d %+v", code, env)
	}
	stored, err := e.store.FindByTaskID(ctx, "direct-1")
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	in, _ := stored.DecodeInput()
	if stored.Topic != task.TopicTikTokAnalysis || in.Profile != "https://www.tiktok.com/@cook.lab" || stored.UserID != 2 {
		t.Fatalf("unexpected task: %+v input=%+v", stored, in)
	}

	if code, env := e.do(t, http.MethodPost, "/tiktok/analysis", 2, gin.H{"task_id": "direct-1", "profile": "@cook.lab"}); code != http.StatusConflict || env.Code != 40901 {
		t.Fatalf("duplicate: %d %+v", code, env)
	}
	if code, env := e.do(t, http.MethodPost, "/instagram/search", 2, gin.H{"query": "  "}); code != http.StatusBadRequest || env.Code != 10002 {
		t.Fatalf("empty query: %d %+v", code, env)
	}

	code, env = e.do(t, http.MethodPost, "/instagram/search", 2, gin.H{"query": "bakers in Porto"})
	var created struct {
		TaskID string      `json:"taskId"`
		Status task.Status `json:"status"`
	}
	decodeData(t, env, &created)
	if code != http.StatusOK || created.TaskID == "" || created.Status != task.StatusPending {
		t.Fatalf("create search: %d %+v", code, created)
	}
	if len(e.pub.jobs) != 2 {
		t.Fatalf("expected two published jobs, got %v", e.pub.jobs)
	}
}
