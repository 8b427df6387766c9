package challenge

import (
	"sort"
	"time"

	"bookclub/pkg/domain"
)

// Bucket is one member's challenge view: the book being read now plus
// everything finished, most recent first. Wishlist rows never appear here.
type Bucket struct {
	Current   *domain.BookRecord  `json:"current,omitempty"`
	Completed []domain.BookRecord `json:"completed"`
}

// MemberScore is derived per ranking pass and never persisted.
type MemberScore struct {
	Email          string `json:"email"`
	CompletedCount int    `json:"completedCount"`
}

// BucketRecords partitions records by member. Every member in the roster
// gets an entry, even with no records. If more than one record claims
// status current, the first encountered wins; the rest are dropped from
// the view (they are neither current nor completed).
func BucketRecords(records []domain.BookRecord, members []string) map[string]*Bucket {
	buckets := make(map[string]*Bucket, len(members))
	ensure := func(email string) *Bucket {
		b, ok := buckets[email]
		if !ok {
			b = &Bucket{Completed: []domain.BookRecord{}}
			buckets[email] = b
		}
		return b
	}
	for _, email := range members {
		ensure(Normalize(email))
	}
	for _, rec := range records {
		b := ensure(Normalize(rec.MemberEmail))
		switch rec.Status {
		case domain.StatusCurrent:
			if b.Current == nil {
				current := rec
				b.Current = &current
			}
		case domain.StatusCompleted:
			b.Completed = append(b.Completed, rec)
		}
	}
	for _, b := range buckets {
		completed := b.Completed
		sort.SliceStable(completed, func(i, j int) bool {
			return completionKey(completed[i]).After(completionKey(completed[j]))
		})
	}
	return buckets
}

// completionKey orders completed books: completion time when recorded,
// creation time otherwise.
func completionKey(rec domain.BookRecord) time.Time {
	if rec.CompletedAt != nil {
		return *rec.CompletedAt
	}
	return rec.CreatedAt
}

// Rank orders the roster by completed count, descending. Members with
// equal counts keep their roster order.
func Rank(buckets map[string]*Bucket, roster []string) []MemberScore {
	scores := make([]MemberScore, 0, len(roster))
	for _, email := range roster {
		normalized := Normalize(email)
		count := 0
		if b := buckets[normalized]; b != nil {
			count = len(b.Completed)
		}
		scores = append(scores, MemberScore{Email: normalized, CompletedCount: count})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].CompletedCount > scores[j].CompletedCount
	})
	return scores
}

// PodiumOrder rearranges a ranked three-member list for display so the
// leader sits in the middle. Any other size passes through unchanged.
// Presentation only; ranking order is untouched.
func PodiumOrder(ranked []MemberScore) []MemberScore {
	out := make([]MemberScore, len(ranked))
	copy(out, ranked)
	if len(ranked) != 3 {
		return out
	}
	out[0], out[1] = ranked[1], ranked[0]
	return out
}
