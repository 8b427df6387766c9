package challenge

import (
	"strings"
	"time"

	"bookclub/pkg/domain"
)

const (
	// TopTenCapacity is the per-member favorites limit.
	TopTenCapacity = 10
	// MaxCurrentComment caps the free-text note on a challenge current book.
	MaxCurrentComment = 200
)

// CreateRequest carries the caller-supplied fields for a new record.
// The engine normalizes the email and validates the rest; id and
// createdAt are assigned by the persistence layer.
type CreateRequest struct {
	MemberEmail string
	Title       string
	Author      string
	Genre       string
	Comment     string
	Rating      *int
}

// EditRequest updates descriptive fields only. Nil fields are left alone.
type EditRequest struct {
	Title    *string
	Author   *string
	Comment  *string
	CoverKey *string
}

// CreateWishlist builds a new wishlist record. Rejects an empty title and
// any existing record for the member with the same normalized
// (title, author), regardless of status.
func CreateWishlist(existing []domain.BookRecord, req CreateRequest, now time.Time) (domain.BookRecord, error) {
	rec, err := newRecord(req, now)
	if err != nil {
		return domain.BookRecord{}, err
	}
	if hasTitleDupe(existing, rec, "") {
		return domain.BookRecord{}, conflict("book already added")
	}
	rec.Status = domain.StatusWishlist
	return rec, nil
}

// CreateCurrent builds the record for a book the member is reading in the
// active challenge year. A member has at most one current record; a
// second create is rejected outright.
func CreateCurrent(existing []domain.BookRecord, req CreateRequest, year int, now time.Time) (domain.BookRecord, error) {
	rec, err := newRecord(req, now)
	if err != nil {
		return domain.BookRecord{}, err
	}
	for _, other := range existing {
		if other.Status == domain.StatusCurrent {
			return domain.BookRecord{}, conflict("already reading a book")
		}
	}
	if len(rec.Comment) > MaxCurrentComment {
		return domain.BookRecord{}, validation("comment too long")
	}
	rec.Status = domain.StatusCurrent
	rec.ChallengeYear = year
	return rec, nil
}

// CreateCompleted is the "already finished reading" fast path: the record
// lands directly in completed state and in the library.
func CreateCompleted(existing []domain.BookRecord, req CreateRequest, now time.Time) (domain.BookRecord, error) {
	rec, err := newRecord(req, now)
	if err != nil {
		return domain.BookRecord{}, err
	}
	if hasTitleDupe(existing, rec, "") {
		return domain.BookRecord{}, conflict("book already added")
	}
	rec.Status = domain.StatusCompleted
	completedAt := now
	rec.CompletedAt = &completedAt
	rec.InLibrary = true
	return rec, nil
}

// Edit updates title/author/comment/cover on a record of any status.
func Edit(rec domain.BookRecord, req EditRequest) (domain.BookRecord, error) {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.BookRecord{}, validation("title required")
		}
		rec.Title = title
	}
	if req.Author != nil {
		rec.Author = strings.TrimSpace(*req.Author)
	}
	if req.Comment != nil {
		comment := *req.Comment
		if rec.Status == domain.StatusCurrent && rec.ChallengeYear != 0 && len(comment) > MaxCurrentComment {
			return domain.BookRecord{}, validation("comment too long")
		}
		rec.Comment = comment
	}
	if req.CoverKey != nil {
		rec.CoverKey = *req.CoverKey
	}
	return rec, nil
}

// Complete flips a current record to completed and into the library. In
// the home flow a fresh blank current record replaces it so the member
// always keeps a reading slot; the challenge flow leaves nothing behind.
func Complete(rec domain.BookRecord, rating *int, withReplacement bool, now time.Time) (domain.BookRecord, *domain.BookRecord, error) {
	if rec.Status != domain.StatusCurrent {
		return domain.BookRecord{}, nil, conflict("book is not being read")
	}
	if err := checkRating(rating); err != nil {
		return domain.BookRecord{}, nil, err
	}
	rec.Status = domain.StatusCompleted
	completedAt := now
	rec.CompletedAt = &completedAt
	rec.InLibrary = true
	if rating != nil {
		rec.Rating = rating
	}
	if !withReplacement {
		return rec, nil, nil
	}
	replacement := domain.BookRecord{
		MemberEmail:   rec.MemberEmail,
		Status:        domain.StatusCurrent,
		ChallengeYear: rec.ChallengeYear,
	}
	return rec, &replacement, nil
}

// Promote moves a wishlist record into the library as a completed book.
// memberRecords is the member's full record set, used to reject promotion
// when the same book is already on the shelf.
func Promote(rec domain.BookRecord, memberRecords []domain.BookRecord, now time.Time) (domain.BookRecord, error) {
	if rec.Status != domain.StatusWishlist {
		return domain.BookRecord{}, conflict("book is not on the wishlist")
	}
	for _, other := range memberRecords {
		if other.ID == rec.ID || !other.InLibrary {
			continue
		}
		if TitleKey(other) == TitleKey(rec) {
			return domain.BookRecord{}, conflict("book already in library")
		}
	}
	rec.Status = domain.StatusCompleted
	completedAt := now
	rec.CompletedAt = &completedAt
	rec.InLibrary = true
	return rec, nil
}

// SetTopTen toggles the favorites flag. Enabling requires a rating,
// a free slot (unless the record is already flagged), and no other
// flagged record for the same book.
func SetTopTen(rec domain.BookRecord, memberRecords []domain.BookRecord, enable bool) (domain.BookRecord, error) {
	if !enable {
		rec.TopTen = false
		return rec, nil
	}
	if rec.TopTen {
		return rec, nil
	}
	count := 0
	for _, other := range memberRecords {
		if other.ID == rec.ID || !other.TopTen {
			continue
		}
		count++
		if TitleKey(other) == TitleKey(rec) {
			return domain.BookRecord{}, conflict("already in top ten")
		}
	}
	if count >= TopTenCapacity {
		return domain.BookRecord{}, conflict("top ten full")
	}
	if rec.Rating == nil {
		return domain.BookRecord{}, validation("rating required")
	}
	rec.TopTen = true
	return rec, nil
}

// RemoveFromLibrary is the soft removal: the row stays, with its status,
// rating, and history intact.
func RemoveFromLibrary(rec domain.BookRecord) domain.BookRecord {
	rec.InLibrary = false
	return rec
}

func newRecord(req CreateRequest, now time.Time) (domain.BookRecord, error) {
	email := Normalize(req.MemberEmail)
	if email == "" {
		return domain.BookRecord{}, validation("member email required")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.BookRecord{}, validation("title required")
	}
	if err := checkRating(req.Rating); err != nil {
		return domain.BookRecord{}, err
	}
	return domain.BookRecord{
		MemberEmail: email,
		Title:       title,
		Author:      strings.TrimSpace(req.Author),
		Genre:       strings.TrimSpace(req.Genre),
		Comment:     req.Comment,
		Rating:      req.Rating,
		CreatedAt:   now.UTC(),
	}, nil
}

func checkRating(rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return validation("rating must be between 1 and 5")
	}
	return nil
}

func hasTitleDupe(existing []domain.BookRecord, rec domain.BookRecord, skipID string) bool {
	key := TitleKey(rec)
	for _, other := range existing {
		if skipID != "" && other.ID == skipID {
			continue
		}
		if TitleKey(other) == key {
			return true
		}
	}
	return false
}
