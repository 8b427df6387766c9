package store

import "bookclub/pkg/domain"

// RecordFilter narrows record fetches. Nil fields are ignored.
type RecordFilter struct {
	ChallengeYear *int
	InLibrary     *bool
	TopTen        *bool
	Status        *domain.RecordStatus
}

// Store defines persistence operations for members, book records,
// comments, reactions, mentions, picks, and recommendation sessions.
type Store interface {
	// members
	SaveMember(domain.Member) error
	GetMemberByEmail(email string) (domain.Member, bool, error)
	ListMembers() ([]domain.Member, error)

	// book records
	InsertRecord(domain.BookRecord) (domain.BookRecord, error)
	SaveRecord(domain.BookRecord) error
	GetRecord(id string) (domain.BookRecord, bool, error)
	ListRecords(memberEmails []string, filter RecordFilter) ([]domain.BookRecord, error)
	DeleteRecord(id string) error

	// comments
	SaveComment(domain.Comment) error
	GetComment(id string) (domain.Comment, bool, error)
	ListComments(topicID string) ([]domain.Comment, error)

	// reactions
	SaveReaction(domain.Reaction) error
	DeleteReaction(commentID, memberEmail, emoji string) error
	HasReaction(commentID, memberEmail, emoji string) (bool, error)
	ListReactions(commentIDs []string) ([]domain.Reaction, error)

	// mentions
	SaveMention(domain.Mention) error
	ListMentions(commentIDs []string) ([]domain.Mention, error)

	// monthly picks
	SavePick(domain.MonthlyPick) error
	GetPick(year, month int) (domain.MonthlyPick, bool, error)

	// recommendation sessions
	SaveRecommendationSession(domain.RecommendationSession) error
	GetRecommendationSession(id string) (domain.RecommendationSession, bool, error)
}

// SessionStore persists login session tokens.
type SessionStore interface {
	NewSession(email string) (string, error)
	GetEmailByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
