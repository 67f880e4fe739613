package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"prepwise/server/internal/config"
	"prepwise/server/internal/conversation"
	"prepwise/server/internal/crypto"
	"prepwise/server/internal/hub"
	"prepwise/server/internal/model"
	"prepwise/server/internal/token"
)

type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, userID string) (model.User, error)
}

type MessageStore interface {
	ListMessages(ctx context.Context, channel string, limit, offset int) ([]model.ChannelMessage, error)
	GetMessage(ctx context.Context, messageID int64) (model.ChannelMessage, error)
	ToggleReaction(ctx context.Context, messageID int64, userID, emoji string) (bool, error)
	FlagMessage(ctx context.Context, messageID int64, userID, reason string) error
	UpdateMessageContent(ctx context.Context, messageID int64, authorID, content string) (model.ChannelMessage, error)
	DeleteMessage(ctx context.Context, messageID int64, authorID string) error
	SetMessageStatus(ctx context.Context, messageID int64, status string) error
}

type OnlineTracker interface {
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

type Server struct {
	cfg       config.Config
	authority *token.Authority
	users     UserStore
	messages  MessageStore
	hub       *hub.Hub
	assembler *conversation.Assembler
	tracker   OnlineTracker
	limiter   RateLimiter
	logger    *zap.Logger
}

func NewServer(cfg config.Config, authority *token.Authority, users UserStore, messages MessageStore, chatHub *hub.Hub, assembler *conversation.Assembler, tracker OnlineTracker, limiter RateLimiter, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		authority: authority,
		users:     users,
		messages:  messages,
		hub:       chatHub,
		assembler: assembler,
		tracker:   tracker,
		limiter:   limiter,
		logger:    logger,
	}
}

func (s *Server) Router(wsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.With(s.authMiddleware).Get("/channels", s.handleListChannels)
	r.With(s.authMiddleware).Get("/channels/{channel}/messages", s.handleChannelHistory)
	r.With(s.authMiddleware).Get("/channels/{channel}/members", s.handleChannelMembers)

	r.With(s.authMiddleware).Post("/messages/{messageID}/reactions", s.handleReact)
	r.With(s.authMiddleware).Post("/messages/{messageID}/flags", s.handleFlag)
	r.With(s.authMiddleware).Patch("/messages/{messageID}", s.handleEditMessage)
	r.With(s.authMiddleware).Delete("/messages/{messageID}", s.handleDeleteMessage)
	r.With(s.authMiddleware, s.requireModerator).Post("/messages/{messageID}/moderation", s.handleModerate)

	r.With(s.authMiddleware).Post("/ai/chat", s.handleChat)
	r.With(s.authMiddleware).Post("/ai/chat/{turnID}/feedback", s.handleFeedback)
	r.With(s.authMiddleware).Get("/ai/history", s.handleChatHistory)

	if wsHandler != nil {
		r.Handle("/ws", wsHandler)
	}

	return r
}

// Auth

type registerRequest struct {
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	DisplayName   string   `json:"displayName"`
	AcademicLevel string   `json:"academicLevel"`
	TargetExams   []string `json:"targetExams"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         userSummary `json:"user"`
}

type userSummary struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"displayName"`
	Role          string   `json:"role"`
	AcademicLevel string   `json:"academicLevel,omitempty"`
	TargetExams   []string `json:"targetExams,omitempty"`
	Level         int      `json:"level"`
	XP            int      `json:"xp"`
}

func summarize(user model.User) userSummary {
	return userSummary{
		ID:            user.ID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		Role:          user.Role,
		AcademicLevel: user.AcademicLevel,
		TargetExams:   user.TargetExams,
		Level:         user.Level,
		XP:            user.XP,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}

	now := time.Now().UTC()
	user := model.User{
		ID:            uuid.NewString(),
		Email:         req.Email,
		PasswordHash:  hash,
		DisplayName:   req.DisplayName,
		Role:          model.RoleStudent,
		AcademicLevel: strings.TrimSpace(req.AcademicLevel),
		TargetExams:   req.TargetExams,
		Level:         1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.CreateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusBadRequest, "user_create_failed")
		return
	}

	pair, err := s.authority.Issue(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         summarize(user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	pair, err := s.authority.Issue(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         summarize(user),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	pair, user, err := s.authority.Rotate(r.Context(), req.RefreshToken, r.UserAgent(), clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, token.ErrUnknownCredential):
			writeError(w, http.StatusUnauthorized, "unknown_refresh_token")
		case errors.Is(err, token.ErrExpiredCredential):
			writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		case errors.Is(err, token.ErrRevokedPrincipal):
			writeError(w, http.StatusUnauthorized, "user_not_found")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         summarize(user),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}
	if err := s.authority.Revoke(r.Context(), user.ID, req.RefreshToken); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarize(userFromContext(r.Context())))
}

// Channels

func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	channels := s.hub.Channels()
	sort.Strings(channels)
	writeJSON(w, http.StatusOK, map[string][]string{"channels": channels})
}

type messageView struct {
	ID          int64          `json:"id"`
	Channel     string         `json:"channel"`
	AuthorID    string         `json:"authorId"`
	AuthorName  string         `json:"authorName"`
	Content     string         `json:"content"`
	MessageType string         `json:"messageType"`
	Status      string         `json:"status"`
	IsFlagged   bool           `json:"isFlagged"`
	Reactions   []reactionView `json:"reactions"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type reactionView struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

func viewMessage(msg model.ChannelMessage) messageView {
	view := messageView{
		ID:          msg.ID,
		Channel:     msg.Channel,
		AuthorID:    msg.AuthorID,
		AuthorName:  msg.AuthorName,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		Status:      msg.Status,
		IsFlagged:   msg.IsFlagged,
		Reactions:   make([]reactionView, 0, len(msg.Reactions)),
		CreatedAt:   msg.CreatedAt,
	}
	for _, reaction := range msg.Reactions {
		view.Reactions = append(view.Reactions, reactionView{UserID: reaction.UserID, Emoji: reaction.Emoji})
	}
	return view
}

func (s *Server) handleChannelHistory(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if !s.hub.Valid(channel) {
		writeError(w, http.StatusNotFound, "unknown_channel")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	messages, err := s.messages.ListMessages(r.Context(), channel, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, viewMessage(msg))
	}
	writeJSON(w, http.StatusOK, views)
}

type memberView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Online      bool   `json:"online"`
}

func (s *Server) handleChannelMembers(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	members, err := s.hub.Members(channel)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_channel")
		return
	}

	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.ID)
	}
	online := map[string]bool{}
	if s.tracker != nil {
		if marks, err := s.tracker.Online(r.Context(), ids); err == nil {
			online = marks
		}
	}

	views := make([]memberView, 0, len(members))
	for _, member := range members {
		views = append(views, memberView{ID: member.ID, DisplayName: member.DisplayName, Online: online[member.ID]})
	}
	writeJSON(w, http.StatusOK, views)
}

// Messages

type reactRequest struct {
	Emoji string `json:"emoji"`
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	messageID, ok := messageIDParam(w, r)
	if !ok {
		return
	}

	var req reactRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Emoji) == "" {
		writeError(w, http.StatusBadRequest, "missing_emoji")
		return
	}

	added, err := s.messages.ToggleReaction(r.Context(), messageID, user.ID, strings.TrimSpace(req.Emoji))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

type flagRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	messageID, ok := messageIDParam(w, r)
	if !ok {
		return
	}

	var req flagRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "missing_reason")
		return
	}

	if err := s.messages.FlagMessage(r.Context(), messageID, user.ID, strings.TrimSpace(req.Reason)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flagged"})
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	messageID, ok := messageIDParam(w, r)
	if !ok {
		return
	}

	var req editMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "empty_content")
		return
	}

	msg, err := s.messages.UpdateMessageContent(r.Context(), messageID, user.ID, content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, viewMessage(msg))
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	messageID, ok := messageIDParam(w, r)
	if !ok {
		return
	}

	if err := s.messages.DeleteMessage(r.Context(), messageID, user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type moderateRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	messageID, ok := messageIDParam(w, r)
	if !ok {
		return
	}

	var req moderateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	status := strings.TrimSpace(strings.ToLower(req.Status))
	if status != model.MessageStatusFlagged && status != model.MessageStatusActive && status != model.MessageStatusDeleted {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	if err := s.messages.SetMessageStatus(r.Context(), messageID, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// AI chat

type chatRequest struct {
	Message     string      `json:"message"`
	Attachments []string    `json:"attachments"`
	Context     chatContext `json:"context"`
}

type chatContext struct {
	Subject   string `json:"subject"`
	Topic     string `json:"topic"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response       string `json:"response"`
	MessageID      string `json:"messageId"`
	Tokens         int    `json:"tokens"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "empty_message")
		return
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(r.Context(), user.ID)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
	}

	result, err := s.assembler.Converse(r.Context(), user.ID, message, req.Attachments, conversation.PromptContext{
		Subject:   req.Context.Subject,
		Topic:     req.Context.Topic,
		SessionID: req.Context.SessionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrNotFound):
			writeError(w, http.StatusNotFound, "user_not_found")
		case errors.Is(err, conversation.ErrUpstream):
			// Upstream detail stays in the logs; the caller gets a generic,
			// retryable failure.
			writeError(w, http.StatusBadGateway, "assistant_unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       result.Text,
		MessageID:      result.TurnID,
		Tokens:         result.TokensUsed,
		ResponseTimeMs: result.ResponseTimeMs,
	})
}

type feedbackRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	turnID := chi.URLParam(r, "turnID")

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "invalid_rating")
		return
	}

	if err := s.assembler.Feedback(r.Context(), turnID, user.ID, req.Rating, req.Comment); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type turnView struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	Subject        *string   `json:"subject,omitempty"`
	Topic          *string   `json:"topic,omitempty"`
	TokensUsed     *int      `json:"tokensUsed,omitempty"`
	ResponseTimeMs *int64    `json:"responseTimeMs,omitempty"`
	Rating         *int      `json:"rating,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	turns, err := s.assembler.History(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	views := make([]turnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, turnView{
			ID:             turn.ID,
			Sender:         turn.Sender,
			Content:        turn.Content,
			Subject:        turn.Subject,
			Topic:          turn.Topic,
			TokensUsed:     turn.TokensUsed,
			ResponseTimeMs: turn.ResponseTimeMs,
			Rating:         turn.Rating,
			CreatedAt:      turn.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// Middleware and helpers

type userKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := bearerToken(r.Header.Get("Authorization"))
		if bearer == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		user, err := s.authority.VerifyAccess(r.Context(), bearer)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpiredCredential):
				writeError(w, http.StatusUnauthorized, "token_expired")
			case errors.Is(err, token.ErrRevokedPrincipal):
				writeError(w, http.StatusUnauthorized, "user_not_found")
			default:
				writeError(w, http.StatusUnauthorized, "invalid_token")
			}
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user.Role != model.RoleEducator && user.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "moderator_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) model.User {
	user, _ := ctx.Value(userKey{}).(model.User)
	return user
}

func messageIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "messageID")
	messageID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || messageID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_message_id")
		return 0, false
	}
	return messageID, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
