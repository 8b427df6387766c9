package ai

import (
	"strings"
	"testing"

	"bookclub/pkg/domain"
)

func TestBuildRecommendationPromptIncludesHistory(t *testing.T) {
	rating := 5
	member := domain.Member{Email: "nick@club.test", DisplayName: "Nick", FavoriteGenre: "sci-fi"}
	records := []domain.BookRecord{
		{Title: "Dune", Author: "Frank Herbert", Status: domain.StatusCompleted, Rating: &rating},
		{Title: "Piranesi", Author: "Susanna Clarke", Status: domain.StatusWishlist},
	}

	prompt := BuildRecommendationPrompt(member, records)
	for _, want := range []string{"Nick", "sci-fi", "Dune", "rated 5/5", "Piranesi", "do not suggest"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestParseSuggestionsPlainJSON(t *testing.T) {
	reply := `[{"title":"Hyperion","author":"Dan Simmons","genre":"sci-fi","reason":"epic"}]`
	got, err := ParseSuggestions(reply)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Hyperion" || got[0].Author != "Dan Simmons" {
		t.Fatalf("unexpected suggestions: %+v", got)
	}
}

func TestParseSuggestionsStripsCodeFence(t *testing.T) {
	reply := "```json\n[{\"title\":\"Hyperion\",\"author\":\"Dan Simmons\"}]\n```"
	got, err := ParseSuggestions(reply)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Hyperion" {
		t.Fatalf("unexpected suggestions: %+v", got)
	}
}

func TestParseSuggestionsIgnoresSurroundingProse(t *testing.T) {
	reply := "Here are some picks:\n[{\"title\":\"Hyperion\",\"author\":\"Dan Simmons\"}]\nEnjoy!"
	got, err := ParseSuggestions(reply)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected suggestions: %+v", got)
	}
}

func TestParseSuggestionsRejectsGarbage(t *testing.T) {
	if _, err := ParseSuggestions("no json here"); err == nil {
		t.Fatalf("expected error for reply without JSON")
	}
	if _, err := ParseSuggestions(`[{"author":"nameless"}]`); err == nil {
		t.Fatalf("expected error when all suggestions lack titles")
	}
}

func TestFilterOwnedDropsExistingBooks(t *testing.T) {
	suggestions := []domain.Suggestion{
		{Title: "Dune", Author: "Frank Herbert"},
		{Title: "Hyperion", Author: "Dan Simmons"},
	}
	records := []domain.BookRecord{
		{Title: "  DUNE ", Author: "frank herbert", Status: domain.StatusCompleted},
	}

	got := FilterOwned(suggestions, records)
	if len(got) != 1 || got[0].Title != "Hyperion" {
		t.Fatalf("expected only Hyperion, got %+v", got)
	}
}
