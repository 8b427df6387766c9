package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type MemberModel struct {
	Email         string `gorm:"primaryKey"`
	DisplayName   string `gorm:"not null"`
	PasswordHash  string `gorm:"not null"`
	FavoriteGenre string
	Bio           string
	AvatarKey     string
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

type BookRecordModel struct {
	ID            string `gorm:"primaryKey"`
	MemberEmail   string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	Author        string
	Status        string `gorm:"not null;index"`
	InLibrary     bool   `gorm:"not null;index"`
	TopTen        bool   `gorm:"not null"`
	Rating        *int
	Comment       string
	CoverKey      string
	Genre         string
	ChallengeYear int       `gorm:"index"`
	CreatedAt     time.Time `gorm:"not null"`
	CompletedAt   *time.Time
}

type CommentModel struct {
	ID          string    `gorm:"primaryKey"`
	TopicID     string    `gorm:"not null;index"`
	ParentID    string    `gorm:"index"`
	MemberEmail string    `gorm:"not null"`
	Body        string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type ReactionModel struct {
	ID          string    `gorm:"primaryKey"`
	CommentID   string    `gorm:"not null;uniqueIndex:idx_reaction_once,priority:1"`
	MemberEmail string    `gorm:"not null;uniqueIndex:idx_reaction_once,priority:2"`
	Emoji       string    `gorm:"not null;uniqueIndex:idx_reaction_once,priority:3"`
	CreatedAt   time.Time `gorm:"not null"`
}

type MentionModel struct {
	ID             string    `gorm:"primaryKey"`
	CommentID      string    `gorm:"not null;index"`
	MentionedEmail string    `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null"`
}

type MonthlyPickModel struct {
	ID          string `gorm:"primaryKey"`
	Year        int    `gorm:"not null;uniqueIndex:idx_pick_month,priority:1"`
	Month       int    `gorm:"not null;uniqueIndex:idx_pick_month,priority:2"`
	MemberEmail string `gorm:"not null"`
	Title       string `gorm:"not null"`
	Author      string
	WhyPicked   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type RecommendationSessionModel struct {
	ID          string         `gorm:"primaryKey"`
	MemberEmail string         `gorm:"not null;index"`
	Prompt      string         `gorm:"type:text"`
	RawReply    string         `gorm:"type:text"`
	Suggestions datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;index"`
}
