package challenge

import (
	"strings"

	"bookclub/pkg/domain"
)

// Normalize lowers and trims a value for duplicate comparison. Emails,
// titles, and authors are all compared in this form.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TitleKey is the duplicate-detection key for a member's book.
func TitleKey(rec domain.BookRecord) string {
	return Normalize(rec.MemberEmail) + "\x00" + Normalize(rec.Title) + "\x00" + Normalize(rec.Author)
}

// Dedupe collapses duplicate library rows for the same (member, title,
// author). The kept representative is whichever row carries user-entered
// detail (a rating or a comment), with later creation time as tiebreak.
// Output keeps the first-appearance order of each group.
func Dedupe(records []domain.BookRecord) []domain.BookRecord {
	seen := make(map[string]int, len(records))
	out := make([]domain.BookRecord, 0, len(records))
	for _, rec := range records {
		key := TitleKey(rec)
		if idx, ok := seen[key]; ok {
			if betterThan(rec, out[idx]) {
				out[idx] = rec
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, rec)
	}
	return out
}

func betterThan(candidate, incumbent domain.BookRecord) bool {
	candidateDetail := hasDetail(candidate)
	if candidateDetail != hasDetail(incumbent) {
		return candidateDetail
	}
	return candidate.CreatedAt.After(incumbent.CreatedAt)
}

func hasDetail(rec domain.BookRecord) bool {
	return rec.Rating != nil || strings.TrimSpace(rec.Comment) != ""
}
