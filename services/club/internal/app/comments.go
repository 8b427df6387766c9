package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bookclub/internal/util"
	"bookclub/pkg/challenge"
	"bookclub/pkg/domain"
	"bookclub/pkg/notify"
	"bookclub/pkg/queue"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

// CommentView is one comment with its reactions, mentions, and replies
// grouped in. Replies are one level deep in the payload; deeper nesting
// just chains.
type CommentView struct {
	domain.Comment
	Reactions []domain.Reaction `json:"reactions"`
	Mentions  []domain.Mention  `json:"mentions"`
	Replies   []*CommentView    `json:"replies"`
}

// ListComments assembles the comment thread for a topic from flat rows.
func (a *App) ListComments(topicID string) ([]*CommentView, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, &challenge.Error{Kind: challenge.KindValidation, Reason: "topic required"}
	}
	comments, err := a.store.ListComments(topicID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	reactions, err := a.store.ListReactions(ids)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	mentions, err := a.store.ListMentions(ids)
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}

	views := make(map[string]*CommentView, len(comments))
	ordered := make([]*CommentView, 0, len(comments))
	for _, c := range comments {
		v := &CommentView{
			Comment:   c,
			Reactions: []domain.Reaction{},
			Mentions:  []domain.Mention{},
			Replies:   []*CommentView{},
		}
		views[c.ID] = v
		ordered = append(ordered, v)
	}
	for _, r := range reactions {
		if v, ok := views[r.CommentID]; ok {
			v.Reactions = append(v.Reactions, r)
		}
	}
	for _, m := range mentions {
		if v, ok := views[m.CommentID]; ok {
			v.Mentions = append(v.Mentions, m)
		}
	}

	roots := make([]*CommentView, 0, len(ordered))
	for _, v := range ordered {
		if v.ParentID == "" {
			roots = append(roots, v)
			continue
		}
		parent, ok := views[v.ParentID]
		if !ok {
			// parent deleted or from another topic; surface at top level
			roots = append(roots, v)
			continue
		}
		parent.Replies = append(parent.Replies, v)
	}
	return roots, nil
}

// AddComment posts a comment. Every @email mention of another member
// records a mention row, queues a notification job, and publishes an
// event; replying to someone also notifies the parent author.
func (a *App) AddComment(ctx context.Context, member domain.Member, topicID, parentID, body string) (domain.Comment, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return domain.Comment{}, &challenge.Error{Kind: challenge.KindValidation, Reason: "topic required"}
	}
	if strings.TrimSpace(body) == "" {
		return domain.Comment{}, &challenge.Error{Kind: challenge.KindValidation, Reason: "comment body required"}
	}
	parentID = strings.TrimSpace(parentID)
	var parent domain.Comment
	if parentID != "" {
		found, ok, err := a.store.GetComment(parentID)
		if err != nil {
			return domain.Comment{}, fmt.Errorf("fetch parent comment: %w", err)
		}
		if !ok || found.TopicID != topicID {
			return domain.Comment{}, &challenge.Error{Kind: challenge.KindNotFound, Reason: "parent comment not found"}
		}
		parent = found
	}

	comment := domain.Comment{
		ID:          util.NewID(),
		TopicID:     topicID,
		ParentID:    parentID,
		MemberEmail: member.Email,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.SaveComment(comment); err != nil {
		return domain.Comment{}, fmt.Errorf("save comment: %w", err)
	}

	a.notifyMentions(ctx, member, comment)
	if parent.ID != "" && challenge.Normalize(parent.MemberEmail) != challenge.Normalize(member.Email) {
		a.notify(ctx, queue.KindReply, parent.MemberEmail, comment.ID,
			fmt.Sprintf("%s replied to your comment", member.DisplayName))
	}
	return comment, nil
}

func (a *App) notifyMentions(ctx context.Context, author domain.Member, comment domain.Comment) {
	seen := map[string]bool{challenge.Normalize(author.Email): true}
	for _, match := range mentionPattern.FindAllStringSubmatch(comment.Body, -1) {
		email := challenge.Normalize(match[1])
		if seen[email] {
			continue
		}
		seen[email] = true
		_, ok, err := a.store.GetMemberByEmail(email)
		if err != nil || !ok {
			continue
		}
		mention := domain.Mention{
			ID:             util.NewID(),
			CommentID:      comment.ID,
			MentionedEmail: email,
			CreatedAt:      time.Now().UTC(),
		}
		if err := a.store.SaveMention(mention); err != nil {
			continue
		}
		a.notify(ctx, queue.KindMention, email, comment.ID,
			fmt.Sprintf("%s mentioned you in a comment", author.DisplayName))
	}
}

func (a *App) notify(ctx context.Context, kind, targetEmail, commentID, subject string) {
	_, _ = a.jobs.Enqueue(ctx, kind, targetEmail, commentID)
	_ = a.events.Publish(ctx, notify.Event{
		Kind:        kind,
		TargetEmail: targetEmail,
		Subject:     subject,
		CreatedAt:   time.Now().UTC(),
	})
}

// ToggleReaction flips the member's emoji reaction on a comment and
// reports the resulting state.
func (a *App) ToggleReaction(member domain.Member, commentID, emoji string) (bool, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return false, &challenge.Error{Kind: challenge.KindValidation, Reason: "emoji required"}
	}
	_, ok, err := a.store.GetComment(commentID)
	if err != nil {
		return false, fmt.Errorf("fetch comment: %w", err)
	}
	if !ok {
		return false, &challenge.Error{Kind: challenge.KindNotFound, Reason: "comment not found"}
	}
	has, err := a.store.HasReaction(commentID, member.Email, emoji)
	if err != nil {
		return false, fmt.Errorf("check reaction: %w", err)
	}
	if has {
		if err := a.store.DeleteReaction(commentID, member.Email, emoji); err != nil {
			return false, fmt.Errorf("delete reaction: %w", err)
		}
		return false, nil
	}
	reaction := domain.Reaction{
		ID:          util.NewID(),
		CommentID:   commentID,
		MemberEmail: member.Email,
		Emoji:       emoji,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.SaveReaction(reaction); err != nil {
		return false, fmt.Errorf("save reaction: %w", err)
	}
	return true, nil
}
