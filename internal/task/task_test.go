package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Task{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakePublisher struct {
	err       error
	published []string
	// status seen in the store at publish time
	seen []Status
	st   *Store
}

func (p *fakePublisher) PublishJob(ctx context.Context, topic, taskID string) error {
	if p.st != nil {
		if t, err := p.st.FindByTaskID(ctx, taskID); err == nil {
			p.seen = append(p.seen, t.Status)
		}
	}
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, topic+":"+taskID)
	return nil
}

func newTask(t *testing.T, id string) *Task {
	t.Helper()
	tk := &Task{TaskID: id, UserID: 1, Topic: TopicInstagramSearch}
	if err := tk.SetInput(Input{Query: "portuguese cooking"}); err != nil {
		t.Fatalf("set input: %v", err)
	}
	return tk
}

func TestCreate_ForcesPending(t *testing.T) {
	st := NewStore(openTestDB(t), nil)
	tk := newTask(t, "t-1")
	tk.Status = StatusCompleted

	if err := st.Create(context.Background(), tk); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.FindByTaskID(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	in, err := got.DecodeInput()
	if err != nil || in.Query != "portuguese cooking" {
		t.Fatalf("input round trip: %+v err=%v", in, err)
	}
}

func TestFindByTaskID_NotFound(t *testing.T) {
	st := NewStore(openTestDB(t), nil)
	if _, err := st.FindByTaskID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_MonotonicTransitions(t *testing.T) {
	ctx := context.Background()
	st := NewStore(openTestDB(t), nil)
	if err := st.Create(ctx, newTask(t, "t-2")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// cannot skip running
	if err := st.Update(ctx, "t-2", Completed("{}", time.Now())); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->completed should be rejected, got %v", err)
	}
	if err := st.Update(ctx, "t-2", Running(time.Now())); err != nil {
		t.Fatalf("pending->running: %v", err)
	}
	// running twice is a duplicate job
	if err := st.Update(ctx, "t-2", Running(time.Now())); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("running->running should be rejected, got %v", err)
	}
	if err := st.Update(ctx, "t-2", Completed(`{"analyzedProfiles":[]}`, time.Now())); err != nil {
		t.Fatalf("running->completed: %v", err)
	}

	// terminal rows are never mutated
	for _, p := range []Patch{Failed("late", time.Now()), Running(time.Now()), Completed("other", time.Now())} {
		if err := st.Update(ctx, "t-2", p); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("terminal row accepted %s: %v", p.Status, err)
		}
	}

	got, _ := st.FindByTaskID(ctx, "t-2")
	if got.Status != StatusCompleted || got.Result == nil || *got.Result != `{"analyzedProfiles":[]}` {
		t.Fatalf("unexpected final row: %+v", got)
	}
	if got.Error != nil {
		t.Fatalf("completed task must not carry an error")
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("timestamps not written")
	}
}

func TestUpdate_PendingCanFailAndUnknownTarget(t *testing.T) {
	ctx := context.Background()
	st := NewStore(openTestDB(t), nil)
	if err := st.Create(ctx, newTask(t, "t-3")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Update(ctx, "t-3", Patch{Status: StatusPending}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending is never a target, got %v", err)
	}
	if err := st.Update(ctx, "t-3", Failed("category is required", time.Now())); err != nil {
		t.Fatalf("pending->failed: %v", err)
	}
	got, _ := st.FindByTaskID(ctx, "t-3")
	if got.Error == nil || *got.Error != "category is required" {
		t.Fatalf("error not stored: %+v", got)
	}
	if err := st.Update(ctx, "nope", Running(time.Now())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmit_CreatesBeforePublishing(t *testing.T) {
	ctx := context.Background()
	st := NewStore(openTestDB(t), nil)
	pub := &fakePublisher{st: st}
	d := NewDispatcher(st, pub, nil)

	tk := newTask(t, "")
	if err := d.Submit(ctx, tk); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tk.TaskID == "" {
		t.Fatalf("expected generated task id")
	}
	if len(pub.seen) != 1 || pub.seen[0] != StatusPending {
		t.Fatalf("task must exist as pending before publish, saw %v", pub.seen)
	}
	if len(pub.published) != 1 || pub.published[0] != "instagram.search:"+tk.TaskID {
		t.Fatalf("unexpected publish %v", pub.published)
	}
}

func TestSubmit_EnqueueFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	st := NewStore(openTestDB(t), nil)
	d := NewDispatcher(st, &fakePublisher{err: errors.New("channel closed")}, nil)

	tk := newTask(t, "t-4")
	if err := d.Submit(ctx, tk); err == nil {
		t.Fatalf("expected enqueue error")
	}
	got, err := st.FindByTaskID(ctx, "t-4")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != StatusFailed || got.Error == nil || !strings.Contains(*got.Error, "channel closed") {
		t.Fatalf("expected failed task with enqueue error, got %+v", got)
	}
}

func TestTopicFor(t *testing.T) {
	cases := []struct {
		platform, kind string
		want           Topic
		ok             bool
	}{
		{"instagram", "search", TopicInstagramSearch, true},
		{"TikTok", "analysis", TopicTikTokAnalysis, true},
		{"instagram", "profile", TopicInstagramAnalysis, true},
		{"youtube", "search", "", false},
	}
	for _, c := range cases {
		got, ok := TopicFor(c.platform, c.kind)
		if got != c.want || ok != c.ok {
			t.Fatalf("TopicFor(%q,%q) = %q,%v", c.platform, c.kind, got, ok)
		}
	}
	if TopicTikTokSearch.Endpoint() != "/tiktok/search" {
		t.Fatalf("endpoint %q", TopicTikTokSearch.Endpoint())
	}
}
