package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bookclub/internal/util"
	"bookclub/pkg/ai"
	"bookclub/pkg/auth"
	"bookclub/pkg/challenge"
	"bookclub/pkg/domain"
	"bookclub/pkg/notify"
	"bookclub/pkg/queue"
	"bookclub/pkg/storage"
	"bookclub/pkg/store"
)

// NotificationEnqueuer pushes notification jobs onto the work queue.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, kind, targetEmail, commentID string) (queue.NotificationJob, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SessionSecret string
	SessionTTL    time.Duration
	ChallengeYear int
	Rotation      challenge.RotationConfig
	PresignExpiry time.Duration

	Store     store.Store
	Sessions  store.SessionStore
	Objects   storage.ObjectStore
	Jobs      NotificationEnqueuer
	Events    notify.Publisher
	Generator ai.TextGenerator
}

// App is the core application service wiring storage, sessions, object
// storage, the notification pipeline and the challenge engine together.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	objects       storage.ObjectStore
	jobs          NotificationEnqueuer
	events        notify.Publisher
	generator     ai.TextGenerator
	challengeYear int
	rotation      challenge.RotationConfig
	presignExpiry time.Duration
}

// New constructs the application. Store and session store fall back to
// Postgres and Redis when not injected.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	if cfg.ChallengeYear <= 0 {
		return nil, fmt.Errorf("challenge year required")
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.SessionSecret) != "" {
			var err error
			sessionStore, err = store.NewJWTSessionStore(cfg.SessionSecret, cfg.SessionTTL)
			if err != nil {
				return nil, fmt.Errorf("init jwt session store: %w", err)
			}
		} else {
			if strings.TrimSpace(cfg.RedisAddr) == "" {
				return nil, fmt.Errorf("redisAddr is required for redis session strategy")
			}
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		}
	}

	objects := cfg.Objects
	if objects == nil {
		objects = storage.NewMemoryObjectStore()
	}
	jobs := cfg.Jobs
	if jobs == nil {
		jobs = noopEnqueuer{}
	}
	events := cfg.Events
	if events == nil {
		events = notify.NoopPublisher{}
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		objects:       objects,
		jobs:          jobs,
		events:        events,
		generator:     cfg.Generator,
		challengeYear: cfg.ChallengeYear,
		rotation:      cfg.Rotation,
		presignExpiry: cfg.PresignExpiry,
	}, nil
}

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(context.Context, string, string, string) (queue.NotificationJob, error) {
	return queue.NotificationJob{}, nil
}

// Register creates a member account and issues a session token.
func (a *App) Register(email, password, displayName string) (domain.Member, string, error) {
	email = challenge.Normalize(email)
	if email == "" || password == "" {
		return domain.Member{}, "", ErrEmailAndPasswordRequired
	}
	if len(password) < 8 {
		return domain.Member{}, "", ErrPasswordTooShort
	}
	_, exists, err := a.store.GetMemberByEmail(email)
	if err != nil {
		return domain.Member{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.Member{}, "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Member{}, "", fmt.Errorf("hash password: %w", err)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	now := time.Now().UTC()
	member := domain.Member{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveMember(member); err != nil {
		return domain.Member{}, "", fmt.Errorf("save member: %w", err)
	}
	token, err := a.sessions.NewSession(member.Email)
	if err != nil {
		return domain.Member{}, "", fmt.Errorf("issue session: %w", err)
	}
	return member, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.Member, string, error) {
	email = challenge.Normalize(email)
	member, ok, err := a.store.GetMemberByEmail(email)
	if err != nil {
		return domain.Member{}, "", fmt.Errorf("fetch member: %w", err)
	}
	if !ok || !auth.CheckPassword(password, member.PasswordHash) {
		return domain.Member{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(member.Email)
	if err != nil {
		return domain.Member{}, "", fmt.Errorf("issue session: %w", err)
	}
	return member, token, nil
}

// Logout invalidates the session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// MemberFromToken resolves a member from a session token.
func (a *App) MemberFromToken(token string) (domain.Member, bool) {
	email, ok, err := a.sessions.GetEmailByToken(token)
	if err != nil || !ok {
		return domain.Member{}, false
	}
	member, found, err := a.store.GetMemberByEmail(email)
	if err != nil || !found {
		return domain.Member{}, false
	}
	return member, true
}

// ListMembers returns the club roster.
func (a *App) ListMembers() ([]domain.Member, error) {
	return a.store.ListMembers()
}

// GetMember returns one member's profile.
func (a *App) GetMember(email string) (domain.Member, bool, error) {
	return a.store.GetMemberByEmail(challenge.Normalize(email))
}

// AddBook creates a record through one of the three add paths:
// "wishlist", "current" (challenge reading slot), or "completed".
func (a *App) AddBook(member domain.Member, mode string, req challenge.CreateRequest) (domain.BookRecord, error) {
	req.MemberEmail = member.Email
	existing, err := a.store.ListRecords([]string{member.Email}, store.RecordFilter{})
	if err != nil {
		return domain.BookRecord{}, fmt.Errorf("list records: %w", err)
	}
	now := time.Now().UTC()
	var rec domain.BookRecord
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "wishlist":
		rec, err = challenge.CreateWishlist(existing, req, now)
	case "current":
		rec, err = challenge.CreateCurrent(existing, req, a.challengeYear, now)
	case "completed", "":
		rec, err = challenge.CreateCompleted(existing, req, now)
	default:
		return domain.BookRecord{}, &challenge.Error{Kind: challenge.KindValidation, Reason: "unknown mode"}
	}
	if err != nil {
		return domain.BookRecord{}, err
	}
	saved, err := a.store.InsertRecord(rec)
	if err != nil {
		return domain.BookRecord{}, fmt.Errorf("insert record: %w", err)
	}
	return saved, nil
}

// ListRecords returns the member's records, optionally filtered.
func (a *App) ListRecords(ctx context.Context, member domain.Member, filter store.RecordFilter) ([]domain.BookRecord, error) {
	records, err := a.store.ListRecords([]string{member.Email}, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return a.withCoverURLs(ctx, records), nil
}

// Library returns the member's shelf with duplicate rows collapsed.
func (a *App) Library(ctx context.Context, member domain.Member) ([]domain.BookRecord, error) {
	inLibrary := true
	records, err := a.store.ListRecords([]string{member.Email}, store.RecordFilter{InLibrary: &inLibrary})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return a.withCoverURLs(ctx, challenge.Dedupe(records)), nil
}

// GetRecord returns one of the member's records.
func (a *App) GetRecord(ctx context.Context, member domain.Member, id string) (domain.BookRecord, error) {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return domain.BookRecord{}, err
	}
	return a.withCoverURL(ctx, rec), nil
}

// EditRecord updates descriptive fields on the member's record.
func (a *App) EditRecord(member domain.Member, id string, req challenge.EditRequest) (domain.BookRecord, error) {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return domain.BookRecord{}, err
	}
	updated, err := challenge.Edit(rec, req)
	if err != nil {
		return domain.BookRecord{}, err
	}
	if err := a.store.SaveRecord(updated); err != nil {
		return domain.BookRecord{}, fmt.Errorf("save record: %w", err)
	}
	return updated, nil
}

// DeleteRecord removes the row entirely. Covers are cleaned up best-effort.
func (a *App) DeleteRecord(ctx context.Context, member domain.Member, id string) error {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteRecord(rec.ID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if rec.CoverKey != "" {
		_ = a.objects.Delete(ctx, rec.CoverKey)
	}
	return nil
}

// Complete marks a current book finished. The home flow replaces it with a
// fresh blank current record; the challenge flow does not.
func (a *App) Complete(member domain.Member, id string, rating *int, flow string) (domain.BookRecord, *domain.BookRecord, error) {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return domain.BookRecord{}, nil, err
	}
	withReplacement := strings.ToLower(strings.TrimSpace(flow)) != "challenge"
	updated, replacement, err := challenge.Complete(rec, rating, withReplacement, time.Now().UTC())
	if err != nil {
		return domain.BookRecord{}, nil, err
	}
	if err := a.store.SaveRecord(updated); err != nil {
		return domain.BookRecord{}, nil, fmt.Errorf("save record: %w", err)
	}
	if replacement == nil {
		return updated, nil, nil
	}
	saved, err := a.store.InsertRecord(*replacement)
	if err != nil {
		return domain.BookRecord{}, nil, fmt.Errorf("insert replacement: %w", err)
	}
	return updated, &saved, nil
}

// Promote moves a wishlist record into the library as completed.
func (a *App) Promote(member domain.Member, id string) (domain.BookRecord, error) {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return domain.BookRecord{}, err
	}
	memberRecords, err := a.store.ListRecords([]string{member.Email}, store.RecordFilter{})
	if err != nil {
		return domain.BookRecord{}, fmt.Errorf("list records: %w", err)
	}
	updated, err := challenge.Promote(rec, memberRecords, time.Now().UTC())
	if err != nil {
		return domain.BookRecord{}, err
	}
	if err := a.store.SaveRecord(updated); err != nil {
		return domain.BookRecord{}, fmt.Errorf("save record: %w", err)
	}
	return updated, nil
}

// SetTopTen toggles the member's favorites flag on a record.
func (a *App) SetTopTen(member domain.Member, id string, enable bool) (domain.BookRecord, error) {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return domain.BookRecord{}, err
	}
	memberRecords, err := a.store.ListRecords([]string{member.Email}, store.RecordFilter{})
	if err != nil {
		return domain.BookRecord{}, fmt.Errorf("list records: %w", err)
	}
	updated, err := challenge.SetTopTen(rec, memberRecords, enable)
	if err != nil {
		return domain.BookRecord{}, err
	}
	if err := a.store.SaveRecord(updated); err != nil {
		return domain.BookRecord{}, fmt.Errorf("save record: %w", err)
	}
	return updated, nil
}

// RemoveFromLibrary hides the record from the shelf without losing history.
func (a *App) RemoveFromLibrary(member domain.Member, id string) (domain.BookRecord, error) {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return domain.BookRecord{}, err
	}
	updated := challenge.RemoveFromLibrary(rec)
	if err := a.store.SaveRecord(updated); err != nil {
		return domain.BookRecord{}, fmt.Errorf("save record: %w", err)
	}
	return updated, nil
}

// UploadCover stores a cover image and attaches its key to the record.
func (a *App) UploadCover(ctx context.Context, member domain.Member, id, contentType string, r io.Reader, size int64) (domain.BookRecord, error) {
	rec, err := a.ownedRecord(member, id)
	if err != nil {
		return domain.BookRecord{}, err
	}
	if !storage.AllowedImageType(contentType) {
		return domain.BookRecord{}, &challenge.Error{Kind: challenge.KindValidation, Reason: "unsupported image type"}
	}
	key := storage.CoverKey(rec.ID, contentType)
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.BookRecord{}, fmt.Errorf("store cover: %w", err)
	}
	if rec.CoverKey != "" && rec.CoverKey != key {
		_ = a.objects.Delete(ctx, rec.CoverKey)
	}
	rec.CoverKey = key
	if err := a.store.SaveRecord(rec); err != nil {
		return domain.BookRecord{}, fmt.Errorf("save record: %w", err)
	}
	return a.withCoverURL(ctx, rec), nil
}

// ChallengeView is the reading-challenge page payload: per-member buckets,
// the leaderboard, and the display ordering for a three-member club.
type ChallengeView struct {
	Year        int                          `json:"year"`
	Buckets     map[string]*challenge.Bucket `json:"buckets"`
	Leaderboard []challenge.MemberScore      `json:"leaderboard"`
	Display     []challenge.MemberScore      `json:"display"`
}

// Challenge assembles the challenge view for a year.
func (a *App) Challenge(year int) (ChallengeView, error) {
	if year <= 0 {
		year = a.challengeYear
	}
	members, err := a.store.ListMembers()
	if err != nil {
		return ChallengeView{}, fmt.Errorf("list members: %w", err)
	}
	roster := make([]string, 0, len(members))
	for _, m := range members {
		roster = append(roster, m.Email)
	}
	records, err := a.store.ListRecords(roster, store.RecordFilter{ChallengeYear: &year})
	if err != nil {
		return ChallengeView{}, fmt.Errorf("list records: %w", err)
	}
	buckets := challenge.BucketRecords(records, roster)
	leaderboard := challenge.Rank(buckets, roster)
	return ChallengeView{
		Year:        year,
		Buckets:     buckets,
		Leaderboard: leaderboard,
		Display:     challenge.PodiumOrder(leaderboard),
	}, nil
}

// PickerFor returns whose turn it is for the given month.
func (a *App) PickerFor(year, month int) string {
	return challenge.PickerFor(year, month, a.rotation)
}

// CurrentPick returns this month's pick (if recorded) and whose turn it is.
func (a *App) CurrentPick() (domain.MonthlyPick, bool, string, error) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	pick, ok, err := a.store.GetPick(year, month)
	if err != nil {
		return domain.MonthlyPick{}, false, "", fmt.Errorf("fetch pick: %w", err)
	}
	return pick, ok, a.PickerFor(year, month), nil
}

// GetPick returns the pick for a specific month.
func (a *App) GetPick(year, month int) (domain.MonthlyPick, bool, error) {
	return a.store.GetPick(year, month)
}

// PutPick records the book of the month. Only the member whose rotation
// slot covers (year, month) may write it.
func (a *App) PutPick(ctx context.Context, member domain.Member, year, month int, title, author, whyPicked string) (domain.MonthlyPick, error) {
	if month < 1 || month > 12 {
		return domain.MonthlyPick{}, &challenge.Error{Kind: challenge.KindValidation, Reason: "month must be between 1 and 12"}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.MonthlyPick{}, &challenge.Error{Kind: challenge.KindValidation, Reason: "title required"}
	}
	picker := a.PickerFor(year, month)
	if picker == "" || challenge.Normalize(picker) != challenge.Normalize(member.Email) {
		return domain.MonthlyPick{}, ErrNotYourTurn
	}
	now := time.Now().UTC()
	pick := domain.MonthlyPick{
		ID:          util.NewID(),
		Year:        year,
		Month:       month,
		MemberEmail: member.Email,
		Title:       title,
		Author:      strings.TrimSpace(author),
		WhyPicked:   strings.TrimSpace(whyPicked),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SavePick(pick); err != nil {
		return domain.MonthlyPick{}, fmt.Errorf("save pick: %w", err)
	}
	saved, ok, err := a.store.GetPick(year, month)
	if err == nil && ok {
		pick = saved
	}
	_ = a.events.Publish(ctx, notify.Event{
		Kind:        queue.KindMonthlyPick,
		TargetEmail: member.Email,
		Subject:     "Book of the month updated",
		Body:        fmt.Sprintf("%s picked %q for %04d-%02d", member.DisplayName, pick.Title, year, month),
		CreatedAt:   now,
	})
	return pick, nil
}

func (a *App) ownedRecord(member domain.Member, id string) (domain.BookRecord, error) {
	rec, ok, err := a.store.GetRecord(id)
	if err != nil {
		return domain.BookRecord{}, fmt.Errorf("fetch record: %w", err)
	}
	if !ok {
		return domain.BookRecord{}, &challenge.Error{Kind: challenge.KindNotFound, Reason: "record not found"}
	}
	if challenge.Normalize(rec.MemberEmail) != challenge.Normalize(member.Email) {
		return domain.BookRecord{}, ErrForbidden
	}
	return rec, nil
}

func (a *App) withCoverURL(ctx context.Context, rec domain.BookRecord) domain.BookRecord {
	if rec.CoverKey == "" {
		return rec
	}
	url, err := a.objects.PresignGet(ctx, rec.CoverKey, a.presignExpiry)
	if err != nil {
		return rec
	}
	rec.CoverURL = url
	return rec
}

func (a *App) withCoverURLs(ctx context.Context, records []domain.BookRecord) []domain.BookRecord {
	out := make([]domain.BookRecord, len(records))
	for i, rec := range records {
		out[i] = a.withCoverURL(ctx, rec)
	}
	return out
}
