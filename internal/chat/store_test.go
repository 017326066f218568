package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/logger"
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
	if err := db.AutoMigrate(&Thread{}, &Message{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(NewRepo(openTestDB(t)), 7*24*time.Hour, 10, logger.Discard())
	s.now = c.now
	return s, c
}

var threadIDPattern = regexp.MustCompile(`^(api-|thread_).+`)

func TestStore_ThreadLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, err := s.Store(ctx, "u1", "", "hello", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !threadIDPattern.MatchString(res.ThreadID) {
		t.Fatalf("unexpected thread id %q", res.ThreadID)
	}

	msgs, err := s.History(ctx, "u1", res.ThreadID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("unexpected history after store: %+v", msgs)
	}

	if err := s.Update(ctx, "u1", res.ThreadID, "hi back", &MessageMetadata{ToolsUsed: []string{}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	msgs, err = s.History(ctx, "u1", res.ThreadID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant || msgs[1].Content != "hi back" {
		t.Fatalf("unexpected order: %q/%q", msgs[0].Role, msgs[1].Role)
	}
}

func TestStore_UpdateUnknownThread(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Update(context.Background(), "u1", "thread_missing", "x", nil)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_ReturnsTrimmedHistory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, err := s.Store(ctx, "u1", "", "m0", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	for i := 1; i < 15; i++ {
		res, err = s.Store(ctx, "u1", res.ThreadID, fmt.Sprintf("m%d", i), nil)
		if err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}
	if len(res.History) != 10 {
		t.Fatalf("expected 10 history messages, got %d", len(res.History))
	}
	if res.History[9].Content != "m14" || res.History[0].Content != "m5" {
		t.Fatalf("history not oldest-first: first=%q last=%q", res.History[0].Content, res.History[9].Content)
	}
}

func TestStore_SeedsClientHistoryOnFreshThread(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, err := s.Store(ctx, "u1", "api-20260101120000", "and now?", []Turn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
		{Role: "system", Content: "ignored"},
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if res.ThreadID != "api-20260101120000" {
		t.Fatalf("client thread id not kept: %q", res.ThreadID)
	}
	if len(res.History) != 3 || res.History[2].Content != "and now?" {
		t.Fatalf("unexpected history: %+v", res.History)
	}
}

func TestStore_ExpiryStartsFresh(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()

	res, err := s.Store(ctx, "u1", "", "first", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	c.advance(8 * 24 * time.Hour)

	if _, err := s.History(ctx, "u1", res.ThreadID, 0); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expired thread should be gone, got %v", err)
	}
	if err := s.Update(ctx, "u1", res.ThreadID, "late", nil); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("update on expired thread should fail, got %v", err)
	}

	again, err := s.Store(ctx, "u1", res.ThreadID, "second", nil)
	if err != nil {
		t.Fatalf("store after expiry: %v", err)
	}
	if len(again.History) != 1 || again.History[0].Content != "second" {
		t.Fatalf("expected a fresh thread, got %+v", again.History)
	}
}

func TestStore_ActivityExtendsRetention(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()

	res, _ := s.Store(ctx, "u1", "", "first", nil)
	c.advance(6 * 24 * time.Hour)
	if _, err := s.Store(ctx, "u1", res.ThreadID, "second", nil); err != nil {
		t.Fatalf("store: %v", err)
	}
	c.advance(6 * 24 * time.Hour)

	msgs, err := s.History(ctx, "u1", res.ThreadID, 0)
	if err != nil {
		t.Fatalf("thread should still be alive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestStore_ListRenameDelete(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Store(ctx, "u1", "", "first thread about a rather long topic that keeps going and going past sixty runes", nil)
	c.advance(time.Minute)
	b, _ := s.Store(ctx, "u1", "", "second thread", nil)
	c.advance(time.Minute)
	_, _ = s.Store(ctx, "u2", "", "someone else", nil)

	list, err := s.List(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(list))
	}
	if list[0].ThreadID != b.ThreadID || list[1].ThreadID != a.ThreadID {
		t.Fatalf("list not ordered by last update")
	}
	if list[1].Preview != "first thread about a rather long topic that keeps" {
		t.Fatalf("unexpected preview %q", list[1].Preview)
	}

	if err := s.Rename(ctx, "u1", a.ThreadID, "   "); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("empty rename should fail validation, got %v", err)
	}
	c.advance(time.Minute)
	if err := s.Rename(ctx, "u1", a.ThreadID, "Renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	list, _ = s.List(ctx, "u1", 10, 0)
	if list[0].ThreadID != a.ThreadID || list[0].Preview != "Renamed" {
		t.Fatalf("rename not reflected: %+v", list[0])
	}

	c.advance(time.Minute)
	long := strings.Repeat("x", 70)
	if err := s.Rename(ctx, "u1", b.ThreadID, long); err != nil {
		t.Fatalf("rename: %v", err)
	}
	list, _ = s.List(ctx, "u1", 10, 0)
	if list[0].Preview != strings.Repeat("x", 57)+"..." {
		t.Fatalf("long title should be truncated in preview, got %q", list[0].Preview)
	}

	if err := s.Rename(ctx, "u2", a.ThreadID, "hijack"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("foreign thread must look missing, got %v", err)
	}

	if err := s.Delete(ctx, "u1", a.ThreadID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", a.ThreadID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
	list, _ = s.List(ctx, "u1", 10, 0)
	if len(list) != 1 {
		t.Fatalf("expected 1 thread after delete, got %d", len(list))
	}
}

func TestStore_PurgeExpired(t *testing.T) {
	s, c := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Store(ctx, "u1", "", "old", nil)
	c.advance(8 * 24 * time.Hour)
	fresh, _ := s.Store(ctx, "u1", "", "new", nil)

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged thread, got %d", n)
	}
	if _, err := s.History(ctx, "u1", fresh.ThreadID, 0); err != nil {
		t.Fatalf("live thread purged: %v", err)
	}
}

func TestMessageMetadataRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, _ := s.Store(ctx, "u1", "", "draw a cat", nil)
	meta := &MessageMetadata{ToolsUsed: []string{"image-generation"}, ImageURLs: []string{"https://img/cat.png"}}
	if err := s.Update(ctx, "u1", res.ThreadID, "here", meta); err != nil {
		t.Fatalf("update: %v", err)
	}
	msgs, _ := s.History(ctx, "u1", res.ThreadID, 0)
	got := msgs[1].Metadata
	if got == nil || len(got.ImageURLs) != 1 || got.ToolsUsed[0] != "image-generation" {
		t.Fatalf("metadata lost: %+v", got)
	}
	if msgs[0].Metadata != nil {
		t.Fatalf("user message should have no metadata")
	}
}
