package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/flow"
	"github.com/sjawhar/kalakaar/internal/session"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func newTestUser(t *testing.T, store *SQLiteStore, email string) User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), User{Email: email, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

func TestSQLitePragmas(t *testing.T) {
	store := newTestSQLiteStore(t)

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected journal_mode wal, got %q", mode)
	}

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "artisan@gmail.com")
	script := flow.Default()

	sess, err := store.CreateSession(ctx, user.ID, script.First().ID)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !strings.HasPrefix(sess.ID, "conv_") {
		t.Fatalf("unexpected session id %q", sess.ID)
	}

	next, _, err := session.Advance(script, sess, "ਫੁਲਕਾਰੀ", strPtr("Phulkari"))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := store.UpdateSession(ctx, next); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, sess.ID, user.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.CurrentStepID != "product_name" {
		t.Fatalf("expected product_name step, got %q", got.CurrentStepID)
	}
	ans := got.CollectedAnswers["craft_type"]
	if ans.Native == nil || *ans.Native != "ਫੁਲਕਾਰੀ" || ans.Reference == nil || *ans.Reference != "Phulkari" {
		t.Fatalf("unexpected answer %#v", ans)
	}
	if len(got.TurnLog) != 1 || got.TurnLog[0].StepID != "greeting" {
		t.Fatalf("unexpected turn log %#v", got.TurnLog)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}

	again, err := store.GetSession(ctx, sess.ID, user.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !reflect.DeepEqual(got.CollectedAnswers, again.CollectedAnswers) || got.CurrentStepID != again.CurrentStepID {
		t.Fatal("expected identical repeated reads")
	}
}

func TestSessionWrongOwnerIsNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	owner := newTestUser(t, store, "owner@gmail.com")
	other := newTestUser(t, store, "other@gmail.com")

	sess, err := store.CreateSession(ctx, owner.ID, "greeting")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, errWrong := store.GetSession(ctx, sess.ID, other.ID)
	_, errMissing := store.GetSession(ctx, "conv_missing", owner.ID)
	if !apperr.Is(errWrong, apperr.NotFound) || !apperr.Is(errMissing, apperr.NotFound) {
		t.Fatalf("expected NotFound for both, got %v / %v", errWrong, errMissing)
	}
	if apperr.Message(errWrong) != apperr.Message(errMissing) {
		t.Fatalf("wrong owner and missing must be indistinguishable: %q vs %q", apperr.Message(errWrong), apperr.Message(errMissing))
	}

	sess.OwnerUserID = other.ID
	if err := store.UpdateSession(ctx, sess); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("expected Conflict when updating as another owner, got %v", err)
	}
}

func TestSessionStaleVersionConflicts(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "a@gmail.com")
	script := flow.Default()

	sess, _ := store.CreateSession(ctx, user.ID, script.First().ID)
	first, _, _ := session.Advance(script, sess, "one", nil)
	second, _, _ := session.Advance(script, sess, "two", nil)

	if err := store.UpdateSession(ctx, first); err != nil {
		t.Fatalf("first UpdateSession failed: %v", err)
	}
	if err := store.UpdateSession(ctx, second); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("expected Conflict for stale write, got %v", err)
	}

	got, _ := store.GetSession(ctx, sess.ID, user.ID)
	if *got.CollectedAnswers["craft_type"].Native != "one" {
		t.Fatalf("stale write overwrote answer: %#v", got.CollectedAnswers)
	}
}

func TestSessionCompletionNeverReverts(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "a@gmail.com")

	sess, _ := store.CreateSession(ctx, user.ID, "greeting")
	sess.IsComplete = true
	sess.CurrentStepID = flow.Completed
	if err := store.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	got, _ := store.GetSession(ctx, sess.ID, user.ID)
	got.IsComplete = false
	if err := store.UpdateSession(ctx, got); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	final, _ := store.GetSession(ctx, sess.ID, user.ID)
	if !final.IsComplete {
		t.Fatal("expected is_complete to stay true")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "a@gmail.com")

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		sess, err := store.CreateSession(ctx, user.ID, "greeting")
		if err != nil {
			t.Fatalf("CreateSession %d failed: %v", i, err)
		}
		if seen[sess.ID] {
			t.Fatalf("duplicate session id %q", sess.ID)
		}
		seen[sess.ID] = true
	}

	list, err := store.ListSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 50 {
		t.Fatalf("expected 50 sessions, got %d", len(list))
	}
}

func TestUsers(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	u := newTestUser(t, store, "Maker@Gmail.com")
	if u.Email != "maker@gmail.com" || u.Username != "maker" {
		t.Fatalf("unexpected normalized user %#v", u)
	}

	if _, err := store.CreateUser(ctx, User{Email: "maker@gmail.com", PasswordHash: "x", Username: "other"}); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("expected Conflict for duplicate email, got %v", err)
	}

	byID, err := store.GetUserByID(ctx, u.ID)
	if err != nil || byID.Email != u.Email {
		t.Fatalf("GetUserByID failed: %v %#v", err, byID)
	}

	demo1, err := store.EnsureDemoUser(ctx, "hash")
	if err != nil {
		t.Fatalf("EnsureDemoUser failed: %v", err)
	}
	demo2, err := store.EnsureDemoUser(ctx, "hash")
	if err != nil {
		t.Fatalf("EnsureDemoUser second call failed: %v", err)
	}
	if demo1.ID != demo2.ID || demo1.Email != DemoEmail {
		t.Fatalf("expected stable demo user, got %#v %#v", demo1, demo2)
	}
}

func TestArtifactsKeyedBySession(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "a@gmail.com")

	s1, _ := store.CreateSession(ctx, user.ID, "greeting")
	s2, _ := store.CreateSession(ctx, user.ID, "greeting")

	if _, err := store.SaveArtifacts(ctx, s1.ID, user.ID, []Artifact{
		{Kind: ArtifactEnhanced, URL: "/files/enhanced/a.png", Filename: "a.png", Size: 10, Metadata: map[string]string{"style": "Clean white studio background"}},
	}); err != nil {
		t.Fatalf("SaveArtifacts s1 failed: %v", err)
	}
	if _, err := store.SaveArtifacts(ctx, s2.ID, user.ID, []Artifact{
		{Kind: ArtifactGenerated, URL: "/files/generated/b.png", Filename: "b.png", Size: 20},
	}); err != nil {
		t.Fatalf("SaveArtifacts s2 failed: %v", err)
	}

	list1, err := store.ListArtifacts(ctx, s1.ID, user.ID)
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(list1) != 1 || list1[0].Filename != "a.png" || list1[0].Metadata["style"] == "" {
		t.Fatalf("unexpected s1 artifacts %#v", list1)
	}

	other := newTestUser(t, store, "b@gmail.com")
	if _, err := store.ListArtifacts(ctx, s1.ID, other.ID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound for other owner, got %v", err)
	}
}

func TestContentUpsert(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, "a@gmail.com")
	sess, _ := store.CreateSession(ctx, user.ID, "greeting")

	if _, err := store.GetContent(ctx, sess.ID, user.ID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound before generation, got %v", err)
	}

	for _, body := range []string{`{"instagram":{"content":"v1"}}`, `{"instagram":{"content":"v2"}}`} {
		if err := store.SaveContent(ctx, user.ID, Content{
			SessionID: sess.ID,
			Platforms: []string{"instagram"},
			Posts:     json.RawMessage(body),
		}); err != nil {
			t.Fatalf("SaveContent failed: %v", err)
		}
	}

	c, err := store.GetContent(ctx, sess.ID, user.ID)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if !strings.Contains(string(c.Posts), "v2") || len(c.Platforms) != 1 {
		t.Fatalf("unexpected content %#v", c)
	}
}
