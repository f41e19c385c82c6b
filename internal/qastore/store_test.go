package qastore

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) (*Store, *MemoryBackend, *MemoryBackend) {
	t.Helper()
	pg := NewMemoryBackend("postgres")
	lite := NewMemoryBackend("sqlite")
	s, err := New(pg, lite, "cultiflow", quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, pg, lite
}

func TestNew_RequiresAtLeastOneBackend(t *testing.T) {
	if _, err := New(nil, nil, "cultiflow", quietLogger()); err == nil {
		t.Fatal("expected error with no backends")
	}
	if _, err := New(nil, NewMemoryBackend("sqlite"), "cultiflow", quietLogger()); err != nil {
		t.Fatalf("single backend should be accepted: %v", err)
	}
}

func TestUpsert_WritesBothAndIsIdempotent(t *testing.T) {
	s, pg, lite := newTestStore(t)
	ctx := context.Background()

	id1, err := s.Upsert(ctx, "What is Cultiflow?", "first answer", "en")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Same normalized key, different answer: must update, not insert.
	id2, err := s.Upsert(ctx, "what is cultiflow", "second answer", "en")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected stable id for same key, got %d then %d", id1, id2)
	}

	for _, b := range []*MemoryBackend{pg, lite} {
		rows, _ := b.ListByLanguage(ctx, "en")
		if len(rows) != 1 {
			t.Fatalf("backend %s: expected exactly 1 row, got %d", b.Name(), len(rows))
		}
		if rows[0].AnswerText != "second answer" {
			t.Fatalf("backend %s: answer not updated: %q", b.Name(), rows[0].AnswerText)
		}
	}
}

func TestUpsert_ReturnsSecondaryIDWhenPrimaryDown(t *testing.T) {
	s, pg, lite := newTestStore(t)
	pg.FailAll = true

	id, err := s.Upsert(context.Background(), "Where are you located?", "Accra", "en")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	row, _ := lite.Get(context.Background(), id)
	if row == nil {
		t.Fatal("expected returned id to resolve on the secondary")
	}
}

func TestFind_HitIncrementsUsageOnMatchedBackendOnly(t *testing.T) {
	s, pg, lite := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "What is the company name?", "The company name is Cultiflow.", "en"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hit, err := s.Find(ctx, "WHAT IS THE COMPANY NAME?", "en")
	if err != nil || hit == nil {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if hit.Backend != "postgres" {
		t.Fatalf("primary should answer first, got %q", hit.Backend)
	}

	pgRows, _ := pg.ListByLanguage(ctx, "en")
	liteRows, _ := lite.ListByLanguage(ctx, "en")
	if pgRows[0].UsageCount != 1 {
		t.Fatalf("primary usage_count = %d, want 1", pgRows[0].UsageCount)
	}
	if liteRows[0].UsageCount != 0 {
		t.Fatalf("secondary usage_count = %d, want 0 (untouched)", liteRows[0].UsageCount)
	}
	if pgRows[0].LastUsed == nil {
		t.Fatal("last_used not set on hit")
	}
}

func TestFind_MissLeavesUsageUntouched(t *testing.T) {
	s, pg, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "What is Cultiflow?", "A company.", "en"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	hit, err := s.Find(ctx, "unrelated question about pineapples", "en")
	if err != nil || hit != nil {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}
	rows, _ := pg.ListByLanguage(ctx, "en")
	if rows[0].UsageCount != 0 {
		t.Fatalf("usage_count changed on miss: %d", rows[0].UsageCount)
	}
}

func TestFind_FallsBackToSecondaryWhenPrimaryUnreachable(t *testing.T) {
	s, pg, lite := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "Where are you located?", "We are based in Accra, Ghana.", "en"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	pg.FailAll = true

	hit, err := s.Find(ctx, "where are you located", "en")
	if err != nil || hit == nil {
		t.Fatalf("expected secondary hit, got hit=%v err=%v", hit, err)
	}
	if hit.Backend != "sqlite" {
		t.Fatalf("hit backend = %q, want sqlite", hit.Backend)
	}

	pg.FailAll = false
	pgRows, _ := pg.ListByLanguage(ctx, "en")
	liteRows, _ := lite.ListByLanguage(ctx, "en")
	if pgRows[0].UsageCount != 0 {
		t.Fatalf("primary usage_count = %d, want 0", pgRows[0].UsageCount)
	}
	if liteRows[0].UsageCount != 1 {
		t.Fatalf("secondary usage_count = %d, want 1", liteRows[0].UsageCount)
	}
}

func TestList_DeduplicatesAcrossBackends(t *testing.T) {
	s, _, lite := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "What do you do?", "We build software.", "en"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// A pair present only on the secondary must still be listed.
	if _, err := lite.Upsert(ctx, "Secondary only?", "yes", "en"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	pairs, err := s.List(ctx, "en", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 deduped pairs, got %d", len(pairs))
	}
}

func TestList_OrdersByUsageThenLastUsedAndTruncatesAfterMerge(t *testing.T) {
	s, pg, _ := newTestStore(t)
	ctx := context.Background()
	idA, _ := s.Upsert(ctx, "A?", "a", "en")
	if _, err := s.Upsert(ctx, "B?", "b", "en"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := pg.TouchUsage(ctx, idA); err != nil {
		t.Fatalf("touch: %v", err)
	}

	pairs, err := s.List(ctx, "en", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pairs) != 1 || pairs[0].QuestionText != "A?" {
		t.Fatalf("expected most-used pair first, got %+v", pairs)
	}
}

func TestDelete_ThenGetReturnsNothing(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	id, err := s.Upsert(ctx, "What is Cultiflow?", "A company.", "en")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ok, err := s.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	row, err := s.Get(ctx, id)
	if err != nil || row != nil {
		t.Fatalf("get after delete: row=%v err=%v", row, err)
	}
	pairs, _ := s.List(ctx, "en", 0)
	if len(pairs) != 0 {
		t.Fatalf("list still shows %d pairs after delete", len(pairs))
	}

	ok, err = s.Delete(ctx, id)
	if err != nil || ok {
		t.Fatalf("second delete should report false, got ok=%v err=%v", ok, err)
	}
}

func TestResetAndSeed(t *testing.T) {
	s, pg, lite := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Upsert(ctx, "stale question", "stale", "en"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	n, err := s.ResetAndSeed(ctx, "en", nil)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != len(DefaultSeed) {
		t.Fatalf("seeded %d, want %d", n, len(DefaultSeed))
	}
	for _, b := range []*MemoryBackend{pg, lite} {
		rows, _ := b.ListByLanguage(ctx, "en")
		if len(rows) != len(DefaultSeed) {
			t.Fatalf("backend %s holds %d pairs, want %d", b.Name(), len(rows), len(DefaultSeed))
		}
	}
	if hit, _ := s.Find(ctx, "stale question", "en"); hit != nil {
		t.Fatal("stale pair survived reset")
	}
}
