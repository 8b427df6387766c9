package challenge

import (
	"testing"
	"time"

	"bookclub/pkg/domain"
)

func ts(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(value string) *time.Time {
	t := ts(value)
	return &t
}

func TestBucketRecordsScenario(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "alice@x.com", Title: "Dune", Status: domain.StatusCurrent, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "alice@x.com", Title: "Hobbit", Status: domain.StatusCompleted, CompletedAt: tsp("2026-02-01"), CreatedAt: ts("2026-01-02")},
		{ID: "3", MemberEmail: "alice@x.com", Title: "Dune-prequel", Status: domain.StatusCompleted, CompletedAt: tsp("2026-03-01"), CreatedAt: ts("2026-01-03")},
	}
	buckets := BucketRecords(records, []string{"alice@x.com"})
	b := buckets["alice@x.com"]
	if b == nil {
		t.Fatalf("missing bucket for alice")
	}
	if b.Current == nil || b.Current.Title != "Dune" {
		t.Fatalf("current = %+v, want Dune", b.Current)
	}
	if len(b.Completed) != 2 || b.Completed[0].Title != "Dune-prequel" || b.Completed[1].Title != "Hobbit" {
		t.Fatalf("completed order wrong: %+v", b.Completed)
	}
}

func TestBucketRecordsPartition(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "a@x.com", Title: "A", Status: domain.StatusCurrent, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "a@x.com", Title: "B", Status: domain.StatusCompleted, CreatedAt: ts("2026-01-02")},
		{ID: "3", MemberEmail: "a@x.com", Title: "C", Status: domain.StatusWishlist, CreatedAt: ts("2026-01-03")},
		{ID: "4", MemberEmail: "b@x.com", Title: "D", Status: domain.StatusCompleted, CreatedAt: ts("2026-01-04")},
	}
	buckets := BucketRecords(records, []string{"a@x.com", "b@x.com", "c@x.com"})

	// Every non-wishlist record lands in exactly one slot.
	seen := map[string]int{}
	for _, b := range buckets {
		if b.Current != nil {
			seen[b.Current.ID]++
		}
		for _, rec := range b.Completed {
			seen[rec.ID]++
		}
	}
	for _, id := range []string{"1", "2", "4"} {
		if seen[id] != 1 {
			t.Fatalf("record %s appears %d times, want 1", id, seen[id])
		}
	}
	if seen["3"] != 0 {
		t.Fatalf("wishlist record must not appear in buckets")
	}
	if b := buckets["c@x.com"]; b == nil || b.Current != nil || len(b.Completed) != 0 {
		t.Fatalf("member with no records should get an empty bucket, got %+v", b)
	}
}

func TestBucketRecordsUsesCreatedAtWhenCompletedAtMissing(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "a@x.com", Title: "Old", Status: domain.StatusCompleted, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "a@x.com", Title: "New", Status: domain.StatusCompleted, CreatedAt: ts("2026-02-01")},
		{ID: "3", MemberEmail: "a@x.com", Title: "Mid", Status: domain.StatusCompleted, CompletedAt: tsp("2026-01-15"), CreatedAt: ts("2025-01-01")},
	}
	buckets := BucketRecords(records, []string{"a@x.com"})
	completed := buckets["a@x.com"].Completed
	want := []string{"New", "Mid", "Old"}
	for i, title := range want {
		if completed[i].Title != title {
			t.Fatalf("completed[%d] = %s, want %s", i, completed[i].Title, title)
		}
	}
}

func TestBucketRecordsFirstCurrentWins(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "a@x.com", Title: "First", Status: domain.StatusCurrent, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "a@x.com", Title: "Second", Status: domain.StatusCurrent, CreatedAt: ts("2026-01-02")},
	}
	buckets := BucketRecords(records, []string{"a@x.com"})
	if got := buckets["a@x.com"].Current.Title; got != "First" {
		t.Fatalf("current = %s, want First", got)
	}
}

func TestRankStableOnTies(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "b@x.com", Title: "A", Status: domain.StatusCompleted, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "c@x.com", Title: "B", Status: domain.StatusCompleted, CreatedAt: ts("2026-01-01")},
		{ID: "3", MemberEmail: "c@x.com", Title: "C", Status: domain.StatusCompleted, CreatedAt: ts("2026-01-02")},
	}
	roster := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}
	scores := Rank(BucketRecords(records, roster), roster)
	want := []MemberScore{
		{Email: "c@x.com", CompletedCount: 2},
		{Email: "b@x.com", CompletedCount: 1},
		{Email: "a@x.com", CompletedCount: 0},
		{Email: "d@x.com", CompletedCount: 0},
	}
	if len(scores) != len(want) {
		t.Fatalf("got %d scores, want %d", len(scores), len(want))
	}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("scores[%d] = %+v, want %+v", i, scores[i], want[i])
		}
	}
}

func TestPodiumOrder(t *testing.T) {
	ranked := []MemberScore{
		{Email: "first@x.com", CompletedCount: 9},
		{Email: "second@x.com", CompletedCount: 5},
		{Email: "third@x.com", CompletedCount: 2},
	}
	display := PodiumOrder(ranked)
	want := []string{"second@x.com", "first@x.com", "third@x.com"}
	for i, email := range want {
		if display[i].Email != email {
			t.Fatalf("display[%d] = %s, want %s", i, display[i].Email, email)
		}
	}
	// Ranking input is untouched.
	if ranked[0].Email != "first@x.com" {
		t.Fatalf("PodiumOrder must not mutate its input")
	}
	// Non-3 rosters pass through.
	two := PodiumOrder(ranked[:2])
	if two[0].Email != "first@x.com" || two[1].Email != "second@x.com" {
		t.Fatalf("two-member roster should pass through, got %+v", two)
	}
}
