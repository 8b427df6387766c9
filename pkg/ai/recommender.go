package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"bookclub/pkg/challenge"
	"bookclub/pkg/domain"
)

// RecommendationSystemPrompt instructs the model to reply with plain JSON
// so ParseSuggestions can decode it directly.
const RecommendationSystemPrompt = `You are a book recommendation assistant for a small book club.
Reply with a JSON array only, no prose. Each element must be an object with
the keys "title", "author", "genre" and "reason". Suggest exactly 5 books.`

// BuildRecommendationPrompt renders the member's profile and reading history
// into a text prompt for the model.
func BuildRecommendationPrompt(member domain.Member, records []domain.BookRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Member: %s\n", member.DisplayName)
	if strings.TrimSpace(member.FavoriteGenre) != "" {
		fmt.Fprintf(&b, "Favorite genre: %s\n", member.FavoriteGenre)
	}
	if strings.TrimSpace(member.Bio) != "" {
		fmt.Fprintf(&b, "About: %s\n", member.Bio)
	}

	var read, wishlist []domain.BookRecord
	for _, rec := range records {
		switch rec.Status {
		case domain.StatusWishlist:
			wishlist = append(wishlist, rec)
		default:
			read = append(read, rec)
		}
	}

	b.WriteString("\nBooks they have read or are reading:\n")
	if len(read) == 0 {
		b.WriteString("(none yet)\n")
	}
	for _, rec := range read {
		fmt.Fprintf(&b, "- %q by %s", rec.Title, rec.Author)
		if rec.Rating != nil {
			fmt.Fprintf(&b, " (rated %d/5)", *rec.Rating)
		}
		if strings.TrimSpace(rec.Comment) != "" {
			fmt.Fprintf(&b, ": %s", rec.Comment)
		}
		b.WriteString("\n")
	}

	if len(wishlist) > 0 {
		b.WriteString("\nAlready on their wishlist (do not suggest these):\n")
		for _, rec := range wishlist {
			fmt.Fprintf(&b, "- %q by %s\n", rec.Title, rec.Author)
		}
	}

	b.WriteString("\nSuggest 5 books they would enjoy next.")
	return b.String()
}

// ParseSuggestions decodes the model reply into suggestions. Models often
// wrap JSON in markdown code fences, so those are stripped first.
func ParseSuggestions(reply string) ([]domain.Suggestion, error) {
	cleaned := stripCodeFence(reply)
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model reply")
	}
	var suggestions []domain.Suggestion
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	out := suggestions[:0]
	for _, s := range suggestions {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model reply had no usable suggestions")
	}
	return out, nil
}

// FilterOwned drops suggestions the member already has a record for,
// matched case-insensitively on title and author.
func FilterOwned(suggestions []domain.Suggestion, records []domain.BookRecord) []domain.Suggestion {
	owned := make(map[string]struct{}, len(records))
	for _, rec := range records {
		key := challenge.Normalize(rec.Title) + "\x00" + challenge.Normalize(rec.Author)
		owned[key] = struct{}{}
	}
	out := make([]domain.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		key := challenge.Normalize(s.Title) + "\x00" + challenge.Normalize(s.Author)
		if _, ok := owned[key]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
