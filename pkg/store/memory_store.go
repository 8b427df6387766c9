package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"bookclub/internal/util"
	"bookclub/pkg/domain"
)

// MemoryStore keeps all club data in-process. Used by tests and local
// development; behavior mirrors GormStore including insertion ordering.
type MemoryStore struct {
	mu          sync.RWMutex
	members     map[string]domain.Member
	memberOrder []string
	records     map[string]domain.BookRecord
	recordOrder []string
	comments    map[string]domain.Comment
	reactions   map[string]domain.Reaction
	mentions    map[string]domain.Mention
	picks       map[[2]int]domain.MonthlyPick
	recs        map[string]domain.RecommendationSession
	sessions    map[string]string // token -> member email
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:   make(map[string]domain.Member),
		records:   make(map[string]domain.BookRecord),
		comments:  make(map[string]domain.Comment),
		reactions: make(map[string]domain.Reaction),
		mentions:  make(map[string]domain.Mention),
		picks:     make(map[[2]int]domain.MonthlyPick),
		recs:      make(map[string]domain.RecommendationSession),
		sessions:  make(map[string]string),
	}
}

// SaveMember registers or updates a member profile.
func (m *MemoryStore) SaveMember(member domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.members[member.Email]; !exists {
		m.memberOrder = append(m.memberOrder, member.Email)
	}
	m.members[member.Email] = member
	return nil
}

// GetMemberByEmail looks up a member.
func (m *MemoryStore) GetMemberByEmail(email string) (domain.Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[email]
	return member, ok, nil
}

// ListMembers returns members in registration order.
func (m *MemoryStore) ListMembers() ([]domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Member, 0, len(m.memberOrder))
	for _, email := range m.memberOrder {
		if member, ok := m.members[email]; ok {
			res = append(res, member)
		}
	}
	return res, nil
}

// InsertRecord stores a new record, assigning id and createdAt when empty.
func (m *MemoryStore) InsertRecord(rec domain.BookRecord) (domain.BookRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = util.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.records[rec.ID]; !exists {
		m.recordOrder = append(m.recordOrder, rec.ID)
	}
	m.records[rec.ID] = rec
	return rec, nil
}

// SaveRecord replaces an existing record's fields.
func (m *MemoryStore) SaveRecord(rec domain.BookRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[rec.ID]
	if !ok {
		return errors.New("record not found")
	}
	rec.CreatedAt = existing.CreatedAt
	m.records[rec.ID] = rec
	return nil
}

// GetRecord retrieves a record by id.
func (m *MemoryStore) GetRecord(id string) (domain.BookRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok, nil
}

// ListRecords filters records in creation order.
func (m *MemoryStore) ListRecords(memberEmails []string, filter RecordFilter) ([]domain.BookRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(memberEmails))
	for _, email := range memberEmails {
		wanted[email] = true
	}
	res := make([]domain.BookRecord, 0, len(m.recordOrder))
	for _, id := range m.recordOrder {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
		if len(wanted) > 0 && !wanted[rec.MemberEmail] {
			continue
		}
		if filter.ChallengeYear != nil && rec.ChallengeYear != *filter.ChallengeYear {
			continue
		}
		if filter.InLibrary != nil && rec.InLibrary != *filter.InLibrary {
			continue
		}
		if filter.TopTen != nil && rec.TopTen != *filter.TopTen {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		res = append(res, rec)
	}
	return res, nil
}

// DeleteRecord removes a record.
func (m *MemoryStore) DeleteRecord(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	filtered := m.recordOrder[:0]
	for _, item := range m.recordOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.recordOrder = filtered
	return nil
}

// SaveComment records a comment.
func (m *MemoryStore) SaveComment(c domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[c.ID] = c
	return nil
}

// GetComment retrieves a comment by id.
func (m *MemoryStore) GetComment(id string) (domain.Comment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	return c, ok, nil
}

// ListComments returns a topic's comments in chronological order.
func (m *MemoryStore) ListComments(topicID string) ([]domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Comment, 0)
	for _, c := range m.comments {
		if c.TopicID == topicID {
			res = append(res, c)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func reactionKey(commentID, memberEmail, emoji string) string {
	return commentID + "\x00" + memberEmail + "\x00" + emoji
}

// SaveReaction records a reaction, rejecting duplicates.
func (m *MemoryStore) SaveReaction(r domain.Reaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reactionKey(r.CommentID, r.MemberEmail, r.Emoji)
	if _, exists := m.reactions[key]; exists {
		return errors.New("duplicate reaction")
	}
	m.reactions[key] = r
	return nil
}

// DeleteReaction removes one member's emoji from a comment.
func (m *MemoryStore) DeleteReaction(commentID, memberEmail, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reactions, reactionKey(commentID, memberEmail, emoji))
	return nil
}

// HasReaction checks for an existing reaction.
func (m *MemoryStore) HasReaction(commentID, memberEmail, emoji string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.reactions[reactionKey(commentID, memberEmail, emoji)]
	return ok, nil
}

// ListReactions returns reactions for a batch of comments.
func (m *MemoryStore) ListReactions(commentIDs []string) ([]domain.Reaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(commentIDs))
	for _, id := range commentIDs {
		wanted[id] = true
	}
	res := make([]domain.Reaction, 0)
	for _, r := range m.reactions {
		if wanted[r.CommentID] {
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// SaveMention records a mention.
func (m *MemoryStore) SaveMention(mention domain.Mention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mentions[mention.ID] = mention
	return nil
}

// ListMentions returns mentions for a batch of comments.
func (m *MemoryStore) ListMentions(commentIDs []string) ([]domain.Mention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(commentIDs))
	for _, id := range commentIDs {
		wanted[id] = true
	}
	res := make([]domain.Mention, 0)
	for _, mention := range m.mentions {
		if wanted[mention.CommentID] {
			res = append(res, mention)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// SavePick upserts the pick for its (year, month).
func (m *MemoryStore) SavePick(p domain.MonthlyPick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int{p.Year, p.Month}
	if existing, ok := m.picks[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	m.picks[key] = p
	return nil
}

// GetPick returns the pick for a calendar month.
func (m *MemoryStore) GetPick(year, month int) (domain.MonthlyPick, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.picks[[2]int{year, month}]
	return p, ok, nil
}

// SaveRecommendationSession persists a recommendation run.
func (m *MemoryStore) SaveRecommendationSession(s domain.RecommendationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[s.ID] = s
	return nil
}

// GetRecommendationSession retrieves a recommendation run.
func (m *MemoryStore) GetRecommendationSession(id string) (domain.RecommendationSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.recs[id]
	return s, ok, nil
}

// NewSession creates an in-memory session token.
func (m *MemoryStore) NewSession(email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := util.NewID()
	m.sessions[token] = email
	return token, nil
}

// GetEmailByToken resolves a session token.
func (m *MemoryStore) GetEmailByToken(token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email, ok := m.sessions[token]
	return email, ok, nil
}

// DeleteSession removes a session token.
func (m *MemoryStore) DeleteSession(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
