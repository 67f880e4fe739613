// Package conversation assembles the bounded context for a user's AI
// conversation, calls the upstream provider, and persists the exchange
// atomically with the user's XP award.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"prepwise/server/internal/ai"
	"prepwise/server/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrUpstream means the AI provider failed or timed out. Nothing was
	// persisted, so the caller may retry with backoff.
	ErrUpstream = errors.New("upstream assistant error")
)

type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (model.User, error)
}

type TurnStore interface {
	ListRecentTurns(ctx context.Context, userID string, n int) ([]model.ConversationTurn, error)
	CreateTurnPair(ctx context.Context, userTurn, aiTurn model.ConversationTurn, xpAward int) error
	SetTurnFeedback(ctx context.Context, turnID, userID string, rating int, comment *string) error
	ListTurns(ctx context.Context, userID string, limit, offset int) ([]model.ConversationTurn, error)
}

type Completer interface {
	Complete(ctx context.Context, model string, messages []ai.Message, maxTokens int) (ai.Completion, error)
}

type Assembler struct {
	users     UserStore
	turns     TurnStore
	llm       Completer
	logger    *zap.Logger
	model     string
	window    int
	maxTokens int
	timeout   time.Duration
	xpAward   int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAssembler(users UserStore, turns TurnStore, llm Completer, logger *zap.Logger, modelName string, window, maxTokens int, timeout time.Duration, xpAward int) *Assembler {
	if window <= 0 {
		window = 10
	}
	return &Assembler{
		users:     users,
		turns:     turns,
		llm:       llm,
		logger:    logger,
		model:     modelName,
		window:    window,
		maxTokens: maxTokens,
		timeout:   timeout,
		xpAward:   xpAward,
		locks:     make(map[string]*sync.Mutex),
	}
}

// userLock serializes Converse per principal so two overlapping calls cannot
// interleave their window reads and turn writes.
func (a *Assembler) userLock(userID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[userID] = lock
	}
	return lock
}

type Result struct {
	Text           string
	TurnID         string
	TokensUsed     int
	ResponseTimeMs int64
}

// Converse runs one exchange: read the last N turns, build the window, call
// the provider under a hard timeout, then persist both turns and the XP
// award in one transaction. If the provider call fails, nothing is
// persisted and a retry re-sends the identical window.
func (a *Assembler) Converse(ctx context.Context, userID, userText string, attachments []string, pctx PromptContext) (Result, error) {
	lock := a.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}

	history, err := a.turns.ListRecentTurns(ctx, userID, a.window)
	if err != nil {
		return Result{}, err
	}

	messages := buildWindow(user, pctx, history, userText, attachments)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	completion, err := a.llm.Complete(callCtx, a.model, messages, a.maxTokens)
	if err != nil {
		a.logger.Warn("assistant call failed", zap.String("user_id", userID), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	now := time.Now().UTC()
	userTurn := model.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Sender:    model.SenderUser,
		Content:   userText,
		CreatedAt: now,
	}
	aiTurn := model.ConversationTurn{
		ID:             uuid.NewString(),
		UserID:         userID,
		Sender:         model.SenderAI,
		Content:        completion.Text,
		TokensUsed:     &completion.TotalTokens,
		ResponseTimeMs: &completion.LatencyMs,
		CreatedAt:      now,
	}
	if pctx.Subject != "" {
		userTurn.Subject = &pctx.Subject
		aiTurn.Subject = &pctx.Subject
	}
	if pctx.Topic != "" {
		userTurn.Topic = &pctx.Topic
		aiTurn.Topic = &pctx.Topic
	}
	if pctx.SessionID != "" {
		userTurn.SessionID = &pctx.SessionID
		aiTurn.SessionID = &pctx.SessionID
	}

	if err := a.turns.CreateTurnPair(ctx, userTurn, aiTurn, a.xpAward); err != nil {
		return Result{}, err
	}

	return Result{
		Text:           completion.Text,
		TurnID:         aiTurn.ID,
		TokensUsed:     completion.TotalTokens,
		ResponseTimeMs: completion.LatencyMs,
	}, nil
}

// Feedback overwrites the single feedback slot on one of the caller's turns.
func (a *Assembler) Feedback(ctx context.Context, turnID, userID string, rating int, comment *string) error {
	if err := a.turns.SetTurnFeedback(ctx, turnID, userID, rating, comment); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// History returns one offset page of the user's turns, oldest-first.
func (a *Assembler) History(ctx context.Context, userID string, limit, offset int) ([]model.ConversationTurn, error) {
	return a.turns.ListTurns(ctx, userID, limit, offset)
}
