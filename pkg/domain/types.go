package domain

import "time"

type RecordStatus string

const (
	StatusCurrent   RecordStatus = "current"
	StatusCompleted RecordStatus = "completed"
	StatusWishlist  RecordStatus = "wishlist"
)

// BookRecord is one row per (member, book-ownership-context). The same
// logical book may appear once per member; duplicates created by the
// different add paths are collapsed by challenge.Dedupe.
type BookRecord struct {
	ID            string       `json:"id"`
	MemberEmail   string       `json:"memberEmail"`
	Title         string       `json:"title"`
	Author        string       `json:"author,omitempty"`
	Status        RecordStatus `json:"status"`
	InLibrary     bool         `json:"inLibrary"`
	TopTen        bool         `json:"topTen"`
	Rating        *int         `json:"rating,omitempty"`
	Comment       string       `json:"comment,omitempty"`
	CoverKey      string       `json:"-"`
	CoverURL      string       `json:"coverUrl,omitempty"`
	Genre         string       `json:"genre,omitempty"`
	ChallengeYear int          `json:"readingChallengeYear,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

type Member struct {
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	PasswordHash  string    `json:"-"`
	FavoriteGenre string    `json:"favoriteGenre,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	AvatarKey     string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Comment is a threaded comment attached to a topic such as
// "pick:2026-03" or "record:<id>". ParentID is empty for top-level comments.
type Comment struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topicId"`
	ParentID    string    `json:"parentId,omitempty"`
	MemberEmail string    `json:"memberEmail"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Reaction struct {
	ID          string    `json:"id"`
	CommentID   string    `json:"commentId"`
	MemberEmail string    `json:"memberEmail"`
	Emoji       string    `json:"emoji"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Mention struct {
	ID             string    `json:"id"`
	CommentID      string    `json:"commentId"`
	MentionedEmail string    `json:"mentionedEmail"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MonthlyPick is the book of the month, keyed by (year, month).
type MonthlyPick struct {
	ID          string    `json:"id"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	MemberEmail string    `json:"memberEmail"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	WhyPicked   string    `json:"whyPicked,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Suggestion is one recommended book returned by the language model.
type Suggestion struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// RecommendationSession records one AI recommendation run for a member.
type RecommendationSession struct {
	ID          string       `json:"id"`
	MemberEmail string       `json:"memberEmail"`
	Prompt      string       `json:"-"`
	RawReply    string       `json:"-"`
	Suggestions []Suggestion `json:"suggestions"`
	CreatedAt   time.Time    `json:"createdAt"`
}
