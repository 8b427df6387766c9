package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bookclub/internal/util"
	"bookclub/pkg/challenge"
	"bookclub/pkg/domain"
	"bookclub/pkg/store"
	"bookclub/services/club/internal/app"
)

// Limiter gates a request by key. The production implementation is the
// Redis fixed-window limiter.
type Limiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App              *app.App
	CommentLimiter   Limiter
	RecommendLimiter Limiter
	TrustedProxies   *util.TrustedProxies
	MaxCoverBytes    int64
}

// Server exposes HTTP endpoints for the club service.
type Server struct {
	app              *app.App
	commentLimiter   Limiter
	recommendLimiter Limiter
	trustedProxies   *util.TrustedProxies
	mux              *http.ServeMux
	maxCoverBytes    int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxCoverBytes := cfg.MaxCoverBytes
	if maxCoverBytes <= 0 {
		maxCoverBytes = 10 * 1024 * 1024
	}
	s := &Server{
		app:              cfg.App,
		commentLimiter:   cfg.CommentLimiter,
		recommendLimiter: cfg.RecommendLimiter,
		trustedProxies:   cfg.TrustedProxies,
		mux:              http.NewServeMux(),
		maxCoverBytes:    maxCoverBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("club", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.Handle("/auth/logout", s.withMember(s.handleLogout))
	s.mux.Handle("/auth/me", s.withMember(s.handleMe))

	// members
	s.mux.Handle("/members", s.withMember(s.handleMembers))
	s.mux.Handle("/members/", s.withMember(s.handleMemberByEmail))

	// book records
	s.mux.Handle("/records", s.withMember(s.handleRecords))
	s.mux.Handle("/records/", s.withMember(s.handleRecordByID))

	// reading challenge
	s.mux.Handle("/challenge", s.withMember(s.handleChallenge))

	// monthly picks
	s.mux.Handle("/picks/current", s.withMember(s.handleCurrentPick))
	s.mux.Handle("/picks/", s.withMember(s.handlePickByMonth))

	// comments
	s.mux.Handle("/comments", s.withMember(s.handleComments))
	s.mux.Handle("/comments/", s.withMember(s.handleCommentByID))

	// AI recommendations
	s.mux.Handle("/recommendations", s.withMember(s.handleRecommendations))
	s.mux.Handle("/recommendations/", s.withMember(s.handleRecommendationByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type memberHandler func(http.ResponseWriter, *http.Request, domain.Member)

func (s *Server) withMember(next memberHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		member, ok := s.app.MemberFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, member)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	member, token, err := s.app.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"member": member, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	member, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member": member, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ domain.Member) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, member domain.Member) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request, _ domain.Member) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	members, err := s.app.ListMembers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": members, "count": len(members)})
}

func (s *Server) handleMemberByEmail(w http.ResponseWriter, r *http.Request, _ domain.Member) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	email := strings.TrimPrefix(r.URL.Path, "/members/")
	if email == "" || strings.Contains(email, "/") {
		notFound(w, "not found")
		return
	}
	member, ok, err := s.app.GetMember(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		notFound(w, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request, member domain.Member) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRecords(w, r, member)
	case http.MethodPost:
		s.handleAddRecord(w, r, member)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request, member domain.Member) {
	q := r.URL.Query()
	if q.Get("view") == "library" {
		records, err := s.app.Library(r.Context(), member)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": records, "count": len(records)})
		return
	}
	var filter store.RecordFilter
	if v := q.Get("status"); v != "" {
		status := domain.RecordStatus(v)
		filter.Status = &status
	}
	if v := q.Get("inLibrary"); v != "" {
		b := v == "true"
		filter.InLibrary = &b
	}
	if v := q.Get("topTen"); v != "" {
		b := v == "true"
		filter.TopTen = &b
	}
	if v := q.Get("year"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			filter.ChallengeYear = &year
		}
	}
	records, err := s.app.ListRecords(r.Context(), member, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": records, "count": len(records)})
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request, member domain.Member) {
	var req struct {
		Mode    string `json:"mode"`
		Title   string `json:"title"`
		Author  string `json:"author"`
		Genre   string `json:"genre"`
		Comment string `json:"comment"`
		Rating  *int   `json:"rating"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.app.AddBook(member, req.Mode, challenge.CreateRequest{
		Title:   req.Title,
		Author:  req.Author,
		Genre:   req.Genre,
		Comment: req.Comment,
		Rating:  req.Rating,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// /records/{id} or /records/{id}/{action}
func (s *Server) handleRecordByID(w http.ResponseWriter, r *http.Request, member domain.Member) {
	path := strings.TrimPrefix(r.URL.Path, "/records/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		s.handleRecordAction(w, r, member, id, parts[1])
		return
	}
	switch r.Method {
	case http.MethodGet:
		rec, err := s.app.GetRecord(r.Context(), member, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPatch:
		var req struct {
			Title   *string `json:"title"`
			Author  *string `json:"author"`
			Comment *string `json:"comment"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		rec, err := s.app.EditRecord(member, id, challenge.EditRequest{
			Title:   req.Title,
			Author:  req.Author,
			Comment: req.Comment,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := s.app.DeleteRecord(r.Context(), member, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request, member domain.Member, id, action string) {
	switch action {
	case "complete":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req struct {
			Rating *int   `json:"rating"`
			Flow   string `json:"flow"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		rec, replacement, err := s.app.Complete(member, id, req.Rating, req.Flow)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"record": rec, "replacement": replacement})
	case "promote":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		rec, err := s.app.Promote(member, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case "topten":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		rec, err := s.app.SetTopTen(member, id, req.Enabled)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case "library":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		rec, err := s.app.RemoveFromLibrary(member, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case "cover":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleUploadCover(w, r, member, id)
	default:
		notFound(w, "not found")
	}
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request, member domain.Member, id string) {
	if s.maxCoverBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxCoverBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "cover image is required (field: cover)")
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")
	rec, err := s.app.UploadCover(r.Context(), member, id, contentType, file, header.Size)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request, _ domain.Member) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = n
	}
	view, err := s.app.Challenge(year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCurrentPick(w http.ResponseWriter, r *http.Request, _ domain.Member) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pick, ok, picker, err := s.app.CurrentPick()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	payload := map[string]any{"picker": picker}
	if ok {
		payload["pick"] = pick
	}
	writeJSON(w, http.StatusOK, payload)
}

// /picks/{year}/{month}
func (s *Server) handlePickByMonth(w http.ResponseWriter, r *http.Request, member domain.Member) {
	path := strings.TrimPrefix(r.URL.Path, "/picks/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		notFound(w, "not found")
		return
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		pick, ok, err := s.app.GetPick(year, month)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		payload := map[string]any{"picker": s.app.PickerFor(year, month)}
		if ok {
			payload["pick"] = pick
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodPut:
		var req struct {
			Title     string `json:"title"`
			Author    string `json:"author"`
			WhyPicked string `json:"whyPicked"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		pick, err := s.app.PutPick(r.Context(), member, year, month, req.Title, req.Author, req.WhyPicked)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pick)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request, member domain.Member) {
	switch r.Method {
	case http.MethodGet:
		thread, err := s.app.ListComments(r.URL.Query().Get("topic"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": thread, "count": len(thread)})
	case http.MethodPost:
		if !s.allow(w, r, s.commentLimiter) {
			return
		}
		var req struct {
			TopicID  string `json:"topicId"`
			ParentID string `json:"parentId"`
			Body     string `json:"body"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		comment, err := s.app.AddComment(r.Context(), member, req.TopicID, req.ParentID, req.Body)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	default:
		methodNotAllowed(w)
	}
}

// /comments/{id}/reactions
func (s *Server) handleCommentByID(w http.ResponseWriter, r *http.Request, member domain.Member) {
	path := strings.TrimPrefix(r.URL.Path, "/comments/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] != "reactions" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Emoji string `json:"emoji"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	enabled, err := s.app.ToggleReaction(member, parts[0], req.Emoji)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request, member domain.Member) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, s.recommendLimiter) {
		return
	}
	session, err := s.app.Recommend(r.Context(), member)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleRecommendationByID(w http.ResponseWriter, r *http.Request, member domain.Member) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/recommendations/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	session, err := s.app.GetRecommendation(member, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, limiter Limiter) bool {
	if limiter == nil {
		return true
	}
	if !limiter.Allow(util.ClientIP(r, s.trustedProxies)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// writeAppError maps app and engine errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case challenge.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case challenge.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case challenge.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrForbidden), errors.Is(err, app.ErrNotYourTurn):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrEmailAndPasswordRequired), errors.Is(err, app.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrRecommendationsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForClub(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForClub(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case strings.Contains(message, "incorrect email"):
		return "AUTH_INVALID_CREDENTIALS"
	case strings.Contains(message, "password"), message == "email and password required":
		return "AUTH_INVALID_REQUEST"
	case message == "email already exists":
		return "AUTH_EMAIL_EXISTS"
	case message == "forbidden":
		return "CLUB_FORBIDDEN"
	case message == "not your month to pick":
		return "PICK_NOT_YOUR_TURN"
	case message == "too many requests":
		return "SYSTEM_RATE_LIMITED"
	case message == "recommendations not configured":
		return "AI_UNAVAILABLE"
	case message == "invalid json body", message == "invalid form data":
		return "CLUB_INVALID_REQUEST"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "CLUB_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "CLUB_FORBIDDEN"
	case http.StatusNotFound:
		return "CLUB_NOT_FOUND"
	case http.StatusConflict:
		return "CLUB_CONFLICT"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
