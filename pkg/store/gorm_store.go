package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookclub/internal/util"
	"bookclub/pkg/domain"
)

const migrateLockID int64 = 52305230

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&MemberModel{},
			&BookRecordModel{},
			&CommentModel{},
			&ReactionModel{},
			&MentionModel{},
			&MonthlyPickModel{},
			&RecommendationSessionModel{},
		)
	}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveMember registers or updates a member profile.
func (s *GormStore) SaveMember(m domain.Member) error {
	model := memberToModel(m)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "password_hash", "favorite_genre", "bio", "avatar_key", "updated_at"}),
	}).Create(&model).Error
}

// GetMemberByEmail looks up a member by normalized email.
func (s *GormStore) GetMemberByEmail(email string) (domain.Member, bool, error) {
	var model MemberModel
	if err := s.db.First(&model, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Member{}, false, nil
		}
		return domain.Member{}, false, err
	}
	return memberFromModel(model), true, nil
}

// ListMembers returns all members ordered by created_at.
func (s *GormStore) ListMembers() ([]domain.Member, error) {
	var models []MemberModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Member, 0, len(models))
	for _, m := range models {
		res = append(res, memberFromModel(m))
	}
	return res, nil
}

// InsertRecord stores a new book record, assigning id and createdAt when
// the caller left them empty.
func (s *GormStore) InsertRecord(rec domain.BookRecord) (domain.BookRecord, error) {
	if rec.ID == "" {
		rec.ID = util.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	model := recordToModel(rec)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.BookRecord{}, err
	}
	return rec, nil
}

// SaveRecord writes the full field set for an existing record. One
// conditional update matched by id; concurrent writers race at the row
// level and the database picks the winner.
func (s *GormStore) SaveRecord(rec domain.BookRecord) error {
	model := recordToModel(rec)
	return s.db.Model(&BookRecordModel{}).
		Where("id = ?", rec.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&model).Error
}

// GetRecord retrieves a record by id.
func (s *GormStore) GetRecord(id string) (domain.BookRecord, bool, error) {
	var model BookRecordModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.BookRecord{}, false, nil
		}
		return domain.BookRecord{}, false, err
	}
	return recordFromModel(model), true, nil
}

// ListRecords returns records for the given members matching the filter,
// in creation order so in-memory sorts stay deterministic.
func (s *GormStore) ListRecords(memberEmails []string, filter RecordFilter) ([]domain.BookRecord, error) {
	tx := s.db.Order("created_at ASC")
	if len(memberEmails) > 0 {
		tx = tx.Where("member_email IN ?", memberEmails)
	}
	if filter.ChallengeYear != nil {
		tx = tx.Where("challenge_year = ?", *filter.ChallengeYear)
	}
	if filter.InLibrary != nil {
		tx = tx.Where("in_library = ?", *filter.InLibrary)
	}
	if filter.TopTen != nil {
		tx = tx.Where("top_ten = ?", *filter.TopTen)
	}
	if filter.Status != nil {
		tx = tx.Where("status = ?", string(*filter.Status))
	}
	var models []BookRecordModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BookRecord, 0, len(models))
	for _, m := range models {
		res = append(res, recordFromModel(m))
	}
	return res, nil
}

// DeleteRecord hard-deletes a record.
func (s *GormStore) DeleteRecord(id string) error {
	return s.db.Delete(&BookRecordModel{}, "id = ?", id).Error
}

// SaveComment records a comment.
func (s *GormStore) SaveComment(c domain.Comment) error {
	model := commentToModel(c)
	return s.db.Create(&model).Error
}

// GetComment retrieves a comment by id.
func (s *GormStore) GetComment(id string) (domain.Comment, bool, error) {
	var model CommentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Comment{}, false, nil
		}
		return domain.Comment{}, false, err
	}
	return commentFromModel(model), true, nil
}

// ListComments returns all comments for a topic in chronological order.
func (s *GormStore) ListComments(topicID string) ([]domain.Comment, error) {
	var models []CommentModel
	if err := s.db.Where("topic_id = ?", topicID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Comment, 0, len(models))
	for _, m := range models {
		res = append(res, commentFromModel(m))
	}
	return res, nil
}

// SaveReaction records a reaction; duplicate (comment, member, emoji)
// rows are rejected by the unique index.
func (s *GormStore) SaveReaction(r domain.Reaction) error {
	model := reactionToModel(r)
	return s.db.Create(&model).Error
}

// DeleteReaction removes one member's emoji from a comment.
func (s *GormStore) DeleteReaction(commentID, memberEmail, emoji string) error {
	return s.db.Delete(&ReactionModel{}, "comment_id = ? AND member_email = ? AND emoji = ?", commentID, memberEmail, emoji).Error
}

// HasReaction checks whether the member already reacted with this emoji.
func (s *GormStore) HasReaction(commentID, memberEmail, emoji string) (bool, error) {
	var count int64
	if err := s.db.Model(&ReactionModel{}).
		Where("comment_id = ? AND member_email = ? AND emoji = ?", commentID, memberEmail, emoji).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListReactions returns reactions for a batch of comments.
func (s *GormStore) ListReactions(commentIDs []string) ([]domain.Reaction, error) {
	if len(commentIDs) == 0 {
		return []domain.Reaction{}, nil
	}
	var models []ReactionModel
	if err := s.db.Where("comment_id IN ?", commentIDs).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Reaction, 0, len(models))
	for _, m := range models {
		res = append(res, reactionFromModel(m))
	}
	return res, nil
}

// SaveMention records a mention.
func (s *GormStore) SaveMention(m domain.Mention) error {
	model := mentionToModel(m)
	return s.db.Create(&model).Error
}

// ListMentions returns mentions for a batch of comments.
func (s *GormStore) ListMentions(commentIDs []string) ([]domain.Mention, error) {
	if len(commentIDs) == 0 {
		return []domain.Mention{}, nil
	}
	var models []MentionModel
	if err := s.db.Where("comment_id IN ?", commentIDs).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Mention, 0, len(models))
	for _, m := range models {
		res = append(res, mentionFromModel(m))
	}
	return res, nil
}

// SavePick upserts the pick for its (year, month).
func (s *GormStore) SavePick(p domain.MonthlyPick) error {
	model := pickToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"member_email", "title", "author", "why_picked", "updated_at"}),
	}).Create(&model).Error
}

// GetPick returns the pick for a calendar month.
func (s *GormStore) GetPick(year, month int) (domain.MonthlyPick, bool, error) {
	var model MonthlyPickModel
	if err := s.db.First(&model, "year = ? AND month = ?", year, month).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.MonthlyPick{}, false, nil
		}
		return domain.MonthlyPick{}, false, err
	}
	return pickFromModel(model), true, nil
}

// SaveRecommendationSession persists one AI recommendation run.
func (s *GormStore) SaveRecommendationSession(sess domain.RecommendationSession) error {
	model, err := recommendationToModel(sess)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetRecommendationSession retrieves a recommendation run by id.
func (s *GormStore) GetRecommendationSession(id string) (domain.RecommendationSession, bool, error) {
	var model RecommendationSessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.RecommendationSession{}, false, nil
		}
		return domain.RecommendationSession{}, false, err
	}
	return recommendationFromModel(model), true, nil
}

func memberToModel(m domain.Member) MemberModel {
	return MemberModel{
		Email:         m.Email,
		DisplayName:   m.DisplayName,
		PasswordHash:  m.PasswordHash,
		FavoriteGenre: m.FavoriteGenre,
		Bio:           m.Bio,
		AvatarKey:     m.AvatarKey,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func memberFromModel(m MemberModel) domain.Member {
	return domain.Member{
		Email:         m.Email,
		DisplayName:   m.DisplayName,
		PasswordHash:  m.PasswordHash,
		FavoriteGenre: m.FavoriteGenre,
		Bio:           m.Bio,
		AvatarKey:     m.AvatarKey,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func recordToModel(r domain.BookRecord) BookRecordModel {
	return BookRecordModel{
		ID:            r.ID,
		MemberEmail:   r.MemberEmail,
		Title:         r.Title,
		Author:        r.Author,
		Status:        string(r.Status),
		InLibrary:     r.InLibrary,
		TopTen:        r.TopTen,
		Rating:        r.Rating,
		Comment:       r.Comment,
		CoverKey:      r.CoverKey,
		Genre:         r.Genre,
		ChallengeYear: r.ChallengeYear,
		CreatedAt:     r.CreatedAt,
		CompletedAt:   r.CompletedAt,
	}
}

func recordFromModel(m BookRecordModel) domain.BookRecord {
	return domain.BookRecord{
		ID:            m.ID,
		MemberEmail:   m.MemberEmail,
		Title:         m.Title,
		Author:        m.Author,
		Status:        domain.RecordStatus(m.Status),
		InLibrary:     m.InLibrary,
		TopTen:        m.TopTen,
		Rating:        m.Rating,
		Comment:       m.Comment,
		CoverKey:      m.CoverKey,
		Genre:         m.Genre,
		ChallengeYear: m.ChallengeYear,
		CreatedAt:     m.CreatedAt,
		CompletedAt:   m.CompletedAt,
	}
}

func commentToModel(c domain.Comment) CommentModel {
	return CommentModel{
		ID:          c.ID,
		TopicID:     c.TopicID,
		ParentID:    c.ParentID,
		MemberEmail: c.MemberEmail,
		Body:        c.Body,
		CreatedAt:   c.CreatedAt,
	}
}

func commentFromModel(m CommentModel) domain.Comment {
	return domain.Comment{
		ID:          m.ID,
		TopicID:     m.TopicID,
		ParentID:    m.ParentID,
		MemberEmail: m.MemberEmail,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt,
	}
}

func reactionToModel(r domain.Reaction) ReactionModel {
	return ReactionModel{
		ID:          r.ID,
		CommentID:   r.CommentID,
		MemberEmail: r.MemberEmail,
		Emoji:       r.Emoji,
		CreatedAt:   r.CreatedAt,
	}
}

func reactionFromModel(m ReactionModel) domain.Reaction {
	return domain.Reaction{
		ID:          m.ID,
		CommentID:   m.CommentID,
		MemberEmail: m.MemberEmail,
		Emoji:       m.Emoji,
		CreatedAt:   m.CreatedAt,
	}
}

func mentionToModel(m domain.Mention) MentionModel {
	return MentionModel{
		ID:             m.ID,
		CommentID:      m.CommentID,
		MentionedEmail: m.MentionedEmail,
		CreatedAt:      m.CreatedAt,
	}
}

func mentionFromModel(m MentionModel) domain.Mention {
	return domain.Mention{
		ID:             m.ID,
		CommentID:      m.CommentID,
		MentionedEmail: m.MentionedEmail,
		CreatedAt:      m.CreatedAt,
	}
}

func pickToModel(p domain.MonthlyPick) MonthlyPickModel {
	return MonthlyPickModel{
		ID:          p.ID,
		Year:        p.Year,
		Month:       p.Month,
		MemberEmail: p.MemberEmail,
		Title:       p.Title,
		Author:      p.Author,
		WhyPicked:   p.WhyPicked,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func pickFromModel(m MonthlyPickModel) domain.MonthlyPick {
	return domain.MonthlyPick{
		ID:          m.ID,
		Year:        m.Year,
		Month:       m.Month,
		MemberEmail: m.MemberEmail,
		Title:       m.Title,
		Author:      m.Author,
		WhyPicked:   m.WhyPicked,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func recommendationToModel(s domain.RecommendationSession) (RecommendationSessionModel, error) {
	suggestions, err := json.Marshal(s.Suggestions)
	if err != nil {
		return RecommendationSessionModel{}, fmt.Errorf("marshal suggestions: %w", err)
	}
	return RecommendationSessionModel{
		ID:          s.ID,
		MemberEmail: s.MemberEmail,
		Prompt:      s.Prompt,
		RawReply:    s.RawReply,
		Suggestions: suggestions,
		CreatedAt:   s.CreatedAt,
	}, nil
}

func recommendationFromModel(m RecommendationSessionModel) domain.RecommendationSession {
	var suggestions []domain.Suggestion
	if len(m.Suggestions) > 0 {
		_ = json.Unmarshal(m.Suggestions, &suggestions)
	}
	return domain.RecommendationSession{
		ID:          m.ID,
		MemberEmail: m.MemberEmail,
		Prompt:      m.Prompt,
		RawReply:    m.RawReply,
		Suggestions: suggestions,
		CreatedAt:   m.CreatedAt,
	}
}
