package challenge

import (
	"fmt"
	"testing"

	"bookclub/pkg/domain"
)

func TestCreateWishlistValidation(t *testing.T) {
	_, err := CreateWishlist(nil, CreateRequest{MemberEmail: "a@x.com", Title: "   "}, ts("2026-01-01"))
	if !IsValidation(err) {
		t.Fatalf("blank title should be a validation error, got %v", err)
	}

	existing := []domain.BookRecord{
		{ID: "1", MemberEmail: "a@x.com", Title: "Dune", Author: "Herbert", Status: domain.StatusCompleted},
	}
	_, err = CreateWishlist(existing, CreateRequest{MemberEmail: " A@X.com ", Title: " DUNE ", Author: "herbert"}, ts("2026-01-01"))
	if !IsConflict(err) {
		t.Fatalf("duplicate (title, author) should conflict, got %v", err)
	}

	rec, err := CreateWishlist(existing, CreateRequest{MemberEmail: "A@X.com", Title: "Hobbit"}, ts("2026-01-01"))
	if err != nil {
		t.Fatalf("create wishlist: %v", err)
	}
	if rec.Status != domain.StatusWishlist || rec.InLibrary || rec.TopTen {
		t.Fatalf("wrong initial state: %+v", rec)
	}
	if rec.MemberEmail != "a@x.com" {
		t.Fatalf("email not normalized: %q", rec.MemberEmail)
	}
}

func TestCreateCurrentRejectsSecondCurrent(t *testing.T) {
	existing := []domain.BookRecord{
		{ID: "1", MemberEmail: "a@x.com", Title: "Dune", Status: domain.StatusCurrent},
	}
	_, err := CreateCurrent(existing, CreateRequest{MemberEmail: "a@x.com", Title: "Hobbit"}, 2026, ts("2026-01-01"))
	if !IsConflict(err) {
		t.Fatalf("second current record should conflict, got %v", err)
	}

	rec, err := CreateCurrent(nil, CreateRequest{MemberEmail: "a@x.com", Title: "Hobbit"}, 2026, ts("2026-01-01"))
	if err != nil {
		t.Fatalf("create current: %v", err)
	}
	if rec.Status != domain.StatusCurrent || rec.ChallengeYear != 2026 {
		t.Fatalf("wrong state: %+v", rec)
	}
}

func TestCreateCompletedFastPath(t *testing.T) {
	rec, err := CreateCompleted(nil, CreateRequest{MemberEmail: "a@x.com", Title: "Dune", Rating: intp(5)}, ts("2026-03-01"))
	if err != nil {
		t.Fatalf("create completed: %v", err)
	}
	if rec.Status != domain.StatusCompleted || !rec.InLibrary {
		t.Fatalf("wrong state: %+v", rec)
	}
	if rec.CompletedAt == nil || !rec.CompletedAt.Equal(ts("2026-03-01")) {
		t.Fatalf("completedAt = %v, want creation instant", rec.CompletedAt)
	}
}

func TestEditValidation(t *testing.T) {
	rec := domain.BookRecord{ID: "1", MemberEmail: "a@x.com", Title: "Dune", Status: domain.StatusCurrent, ChallengeYear: 2026}

	blank := "  "
	if _, err := Edit(rec, EditRequest{Title: &blank}); !IsValidation(err) {
		t.Fatalf("blank title edit should fail, got %v", err)
	}

	long := make([]byte, MaxCurrentComment+1)
	for i := range long {
		long[i] = 'x'
	}
	longComment := string(long)
	if _, err := Edit(rec, EditRequest{Comment: &longComment}); !IsValidation(err) {
		t.Fatalf("oversized challenge comment should fail, got %v", err)
	}

	// Same comment is fine on a non-challenge record.
	shelf := domain.BookRecord{ID: "2", MemberEmail: "a@x.com", Title: "Dune", Status: domain.StatusCompleted}
	if _, err := Edit(shelf, EditRequest{Comment: &longComment}); err != nil {
		t.Fatalf("comment cap applies only to challenge current records: %v", err)
	}

	author := " Herbert "
	got, err := Edit(rec, EditRequest{Author: &author})
	if err != nil {
		t.Fatalf("edit author: %v", err)
	}
	if got.Author != "Herbert" {
		t.Fatalf("author = %q, want trimmed", got.Author)
	}
}

func TestCompleteFlows(t *testing.T) {
	rec := domain.BookRecord{ID: "1", MemberEmail: "a@x.com", Title: "Dune", Status: domain.StatusCurrent, ChallengeYear: 2026}

	// Challenge flow: no replacement record.
	done, replacement, err := Complete(rec, intp(4), false, ts("2026-04-01"))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if replacement != nil {
		t.Fatalf("challenge flow must not create a replacement record")
	}
	if done.Status != domain.StatusCompleted || !done.InLibrary || done.CompletedAt == nil || *done.Rating != 4 {
		t.Fatalf("wrong completed state: %+v", done)
	}

	// Home flow: fresh current slot for the same member.
	_, replacement, err = Complete(rec, nil, true, ts("2026-04-01"))
	if err != nil {
		t.Fatalf("complete with replacement: %v", err)
	}
	if replacement == nil || replacement.Status != domain.StatusCurrent || replacement.MemberEmail != "a@x.com" {
		t.Fatalf("replacement = %+v, want blank current record", replacement)
	}

	// Only current records can be completed.
	if _, _, err := Complete(done, nil, false, ts("2026-04-02")); !IsConflict(err) {
		t.Fatalf("completing a completed record should conflict, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	wish := domain.BookRecord{ID: "1", MemberEmail: "a@x.com", Title: "Dune", Status: domain.StatusWishlist}
	shelf := []domain.BookRecord{
		wish,
		{ID: "2", MemberEmail: "a@x.com", Title: " dune ", Status: domain.StatusCompleted, InLibrary: true},
	}
	if _, err := Promote(wish, shelf, ts("2026-01-01")); !IsConflict(err) {
		t.Fatalf("promoting a book already on the shelf should conflict, got %v", err)
	}

	other := domain.BookRecord{ID: "3", MemberEmail: "a@x.com", Title: "Hobbit", Status: domain.StatusWishlist}
	got, err := Promote(other, shelf, ts("2026-01-01"))
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got.Status != domain.StatusCompleted || !got.InLibrary || got.CompletedAt == nil {
		t.Fatalf("wrong promoted state: %+v", got)
	}

	if _, err := Promote(got, shelf, ts("2026-01-02")); !IsConflict(err) {
		t.Fatalf("promote requires wishlist status, got %v", err)
	}
}

func TestSetTopTenCapacityAndDuplicates(t *testing.T) {
	var shelf []domain.BookRecord
	for i := 0; i < TopTenCapacity; i++ {
		shelf = append(shelf, domain.BookRecord{
			ID:          fmt.Sprintf("fav-%d", i),
			MemberEmail: "a@x.com",
			Title:       fmt.Sprintf("Book %d", i),
			TopTen:      true,
			Rating:      intp(5),
		})
	}
	extra := domain.BookRecord{ID: "extra", MemberEmail: "a@x.com", Title: "Book 99", Rating: intp(4)}

	// 11th entry is rejected.
	if _, err := SetTopTen(extra, append(shelf, extra), true); !IsConflict(err) {
		t.Fatalf("11th top-ten entry should conflict, got %v", err)
	}

	// Re-enabling an existing entry is a no-op, never a conflict.
	if _, err := SetTopTen(shelf[0], append(shelf, extra), true); err != nil {
		t.Fatalf("re-enabling an existing entry: %v", err)
	}

	// Duplicate title under a different ID is rejected.
	dupe := domain.BookRecord{ID: "dupe", MemberEmail: "a@x.com", Title: "book 0 ", Rating: intp(3)}
	if _, err := SetTopTen(dupe, shelf, true); !IsConflict(err) {
		t.Fatalf("duplicate top-ten title should conflict, got %v", err)
	}

	// Rating is required to enable.
	unrated := domain.BookRecord{ID: "u", MemberEmail: "a@x.com", Title: "Unrated"}
	if _, err := SetTopTen(unrated, shelf[:2], true); !IsValidation(err) {
		t.Fatalf("enabling without rating should be a validation error, got %v", err)
	}

	// Disable always succeeds.
	got, err := SetTopTen(shelf[0], shelf, false)
	if err != nil || got.TopTen {
		t.Fatalf("disable: err=%v topTen=%v", err, got.TopTen)
	}
}

func TestRemoveFromLibraryKeepsHistory(t *testing.T) {
	rec := domain.BookRecord{ID: "1", MemberEmail: "a@x.com", Title: "Dune", Status: domain.StatusCompleted, InLibrary: true, Rating: intp(5), CompletedAt: tsp("2026-01-01")}
	got := RemoveFromLibrary(rec)
	if got.InLibrary {
		t.Fatalf("record should leave the library")
	}
	if got.Status != domain.StatusCompleted || got.Rating == nil || got.CompletedAt == nil {
		t.Fatalf("soft removal must preserve status/rating/history: %+v", got)
	}
}
