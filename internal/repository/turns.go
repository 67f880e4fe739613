package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"prepwise/server/internal/model"
)

const turnSelect = `
	SELECT id, user_id, sender, content, subject, topic, session_id, tokens_used, response_time_ms, rating, feedback_text, created_at
	FROM conversation_turns
`

func (s *Store) scanTurn(row pgx.Row) (model.ConversationTurn, error) {
	var turn model.ConversationTurn
	err := row.Scan(
		&turn.ID,
		&turn.UserID,
		&turn.Sender,
		&turn.Content,
		&turn.Subject,
		&turn.Topic,
		&turn.SessionID,
		&turn.TokensUsed,
		&turn.ResponseTimeMs,
		&turn.Rating,
		&turn.FeedbackText,
		&turn.CreatedAt,
	)
	return turn, err
}

// ListRecentTurns returns the user's last n turns, oldest-first. The seq
// column gives a strict per-user order even when both halves of an exchange
// share a commit timestamp.
func (s *Store) ListRecentTurns(ctx context.Context, userID string, n int) ([]model.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, turnSelect+`
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.ConversationTurn
	for rows.Next() {
		turn, err := s.scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into oldest-first order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *Store) ListTurns(ctx context.Context, userID string, limit, offset int) ([]model.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, turnSelect+`
		WHERE user_id = $1
		ORDER BY seq ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.ConversationTurn
	for rows.Next() {
		turn, err := s.scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (s *Store) CountTurns(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM conversation_turns WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (s *Store) GetTurn(ctx context.Context, turnID string) (model.ConversationTurn, error) {
	return s.scanTurn(s.pool.QueryRow(ctx, turnSelect+`WHERE id = $1`, turnID))
}

// CreateTurnPair persists a user turn and the answering ai turn along with
// the user's XP award in a single transaction. Either the whole exchange is
// recorded or none of it is.
func (s *Store) CreateTurnPair(ctx context.Context, userTurn, aiTurn model.ConversationTurn, xpAward int) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, turn := range []model.ConversationTurn{userTurn, aiTurn} {
			if _, err := tx.Exec(ctx, `
				INSERT INTO conversation_turns (id, user_id, sender, content, subject, topic, session_id, tokens_used, response_time_ms, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, turn.ID, turn.UserID, turn.Sender, turn.Content, turn.Subject, turn.Topic, turn.SessionID, turn.TokensUsed, turn.ResponseTimeMs, turn.CreatedAt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			UPDATE users
			SET xp = xp + $1, level = (xp + $1) / 100 + 1, updated_at = now()
			WHERE id = $2
		`, xpAward, userTurn.UserID)
		return err
	})
}

// SetTurnFeedback overwrites the turn's single feedback slot. The turn must
// belong to the caller; otherwise pgx.ErrNoRows.
func (s *Store) SetTurnFeedback(ctx context.Context, turnID, userID string, rating int, comment *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversation_turns
		SET rating = $1, feedback_text = $2
		WHERE id = $3 AND user_id = $4
	`, rating, comment, turnID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
