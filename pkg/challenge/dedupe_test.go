package challenge

import (
	"reflect"
	"testing"

	"bookclub/pkg/domain"
)

func intp(v int) *int { return &v }

func TestDedupeKeepsRatedVariant(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "bob@x.com", Title: " The Hobbit ", Rating: intp(4), InLibrary: true, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "bob@x.com", Title: "the hobbit", InLibrary: true, CreatedAt: ts("2026-02-01")},
	}
	out := Dedupe(records)
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1", len(out))
	}
	if out[0].ID != "1" {
		t.Fatalf("kept %s, want the rated record", out[0].ID)
	}
}

func TestDedupePrefersLaterCreationOnEqualDetail(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "bob@x.com", Title: "Dune", InLibrary: true, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "bob@x.com", Title: "dune", InLibrary: true, CreatedAt: ts("2026-02-01")},
	}
	out := Dedupe(records)
	if len(out) != 1 || out[0].ID != "2" {
		t.Fatalf("got %+v, want the later record kept", out)
	}
}

func TestDedupeScopesGroupsPerMember(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "a@x.com", Title: "Dune", InLibrary: true, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "b@x.com", Title: "Dune", InLibrary: true, CreatedAt: ts("2026-01-01")},
	}
	if out := Dedupe(records); len(out) != 2 {
		t.Fatalf("same title for different members must not merge, got %d", len(out))
	}
}

func TestDedupeIdempotent(t *testing.T) {
	records := []domain.BookRecord{
		{ID: "1", MemberEmail: "a@x.com", Title: "Dune", InLibrary: true, CreatedAt: ts("2026-01-01")},
		{ID: "2", MemberEmail: "a@x.com", Title: "DUNE ", InLibrary: true, CreatedAt: ts("2026-01-02")},
		{ID: "3", MemberEmail: "a@x.com", Title: "Hobbit", Comment: "great", InLibrary: true, CreatedAt: ts("2026-01-03")},
		{ID: "4", MemberEmail: "a@x.com", Title: "hobbit", InLibrary: true, CreatedAt: ts("2026-01-04")},
		{ID: "5", MemberEmail: "b@x.com", Title: "Dune", InLibrary: true, CreatedAt: ts("2026-01-05")},
	}
	once := Dedupe(records)
	twice := Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("dedupe not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	// Exactly groupSize-1 removed per duplicate group: 5 rows, 2 dupes.
	if len(once) != 3 {
		t.Fatalf("got %d records, want 3", len(once))
	}
}

func TestDedupeEmptyInput(t *testing.T) {
	if out := Dedupe(nil); len(out) != 0 {
		t.Fatalf("got %d records, want 0", len(out))
	}
}
