package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bookclub/pkg/ai"
	"bookclub/pkg/challenge"
	"bookclub/pkg/domain"
	"bookclub/pkg/store"
)

// Recommend runs the AI recommendation flow: fetch the member's profile
// and records, build a prompt, call the model, parse its JSON reply, drop
// books the member already has, and persist the session.
func (a *App) Recommend(ctx context.Context, member domain.Member) (domain.RecommendationSession, error) {
	if a.generator == nil {
		return domain.RecommendationSession{}, ErrRecommendationsDisabled
	}

	var (
		profile domain.Member
		records []domain.BookRecord
	)
	var g errgroup.Group
	g.Go(func() error {
		m, ok, err := a.store.GetMemberByEmail(member.Email)
		if err != nil {
			return fmt.Errorf("fetch profile: %w", err)
		}
		if !ok {
			return fmt.Errorf("member not found")
		}
		profile = m
		return nil
	})
	g.Go(func() error {
		recs, err := a.store.ListRecords([]string{member.Email}, store.RecordFilter{})
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		records = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RecommendationSession{}, err
	}

	prompt := ai.BuildRecommendationPrompt(profile, records)
	reply, err := a.generator.GenerateText(ctx, ai.RecommendationSystemPrompt, prompt)
	if err != nil {
		return domain.RecommendationSession{}, fmt.Errorf("generate recommendations: %w", err)
	}
	suggestions, err := ai.ParseSuggestions(reply)
	if err != nil {
		return domain.RecommendationSession{}, fmt.Errorf("parse recommendations: %w", err)
	}
	suggestions = ai.FilterOwned(suggestions, records)
	if len(suggestions) == 0 {
		return domain.RecommendationSession{}, &challenge.Error{Kind: challenge.KindConflict, Reason: "every suggestion is already in your library"}
	}

	session := domain.RecommendationSession{
		ID:          uuid.NewString(),
		MemberEmail: member.Email,
		Prompt:      prompt,
		RawReply:    reply,
		Suggestions: suggestions,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.SaveRecommendationSession(session); err != nil {
		return domain.RecommendationSession{}, fmt.Errorf("save recommendation session: %w", err)
	}
	return session, nil
}

// GetRecommendation returns one of the member's past recommendation runs.
func (a *App) GetRecommendation(member domain.Member, id string) (domain.RecommendationSession, error) {
	session, ok, err := a.store.GetRecommendationSession(id)
	if err != nil {
		return domain.RecommendationSession{}, fmt.Errorf("fetch recommendation session: %w", err)
	}
	if !ok {
		return domain.RecommendationSession{}, &challenge.Error{Kind: challenge.KindNotFound, Reason: "recommendation not found"}
	}
	if challenge.Normalize(session.MemberEmail) != challenge.Normalize(member.Email) {
		return domain.RecommendationSession{}, ErrForbidden
	}
	return session, nil
}
