package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"prepwise/server/internal/model"
)

// AppendMessage persists a new channel message and returns the canonical
// stored record with its database-assigned id and timestamp. The id is a
// bigserial, so ids are monotonic within a channel.
func (s *Store) AppendMessage(ctx context.Context, channel, authorID, authorName, content, messageType string) (model.ChannelMessage, error) {
	msg := model.ChannelMessage{
		Channel:     channel,
		AuthorID:    authorID,
		AuthorName:  authorName,
		Content:     content,
		MessageType: messageType,
		Status:      model.MessageStatusActive,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO channel_messages (channel, author_id, author_name, content, message_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, channel, authorID, authorName, content, messageType, msg.Status)
	if err := row.Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return model.ChannelMessage{}, err
	}
	return msg, nil
}

func (s *Store) GetMessage(ctx context.Context, messageID int64) (model.ChannelMessage, error) {
	msg, err := s.scanMessage(s.pool.QueryRow(ctx, messageSelect+`WHERE id = $1`, messageID))
	if err != nil {
		return model.ChannelMessage{}, err
	}
	reactions, err := s.listReactions(ctx, []int64{msg.ID})
	if err != nil {
		return model.ChannelMessage{}, err
	}
	msg.Reactions = reactions[msg.ID]
	return msg, nil
}

// ListMessages returns one offset-based page of a channel's messages,
// oldest-first. Pages are stable only while no messages are deleted between
// reads; that weak consistency is accepted.
func (s *Store) ListMessages(ctx context.Context, channel string, limit, offset int) ([]model.ChannelMessage, error) {
	rows, err := s.pool.Query(ctx, messageSelect+`
		WHERE channel = $1 AND status <> 'deleted'
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`, channel, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.ChannelMessage
	var ids []int64
	for rows.Next() {
		msg, err := s.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reactions, err := s.listReactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Reactions = reactions[messages[i].ID]
	}
	return messages, nil
}

const messageSelect = `
	SELECT id, channel, author_id, author_name, content, message_type, status, is_flagged, created_at, updated_at
	FROM channel_messages
`

func (s *Store) scanMessage(row pgx.Row) (model.ChannelMessage, error) {
	var msg model.ChannelMessage
	err := row.Scan(
		&msg.ID,
		&msg.Channel,
		&msg.AuthorID,
		&msg.AuthorName,
		&msg.Content,
		&msg.MessageType,
		&msg.Status,
		&msg.IsFlagged,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	return msg, err
}

func (s *Store) listReactions(ctx context.Context, messageIDs []int64) (map[int64][]model.Reaction, error) {
	result := make(map[int64][]model.Reaction, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY created_at ASC
	`, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var reaction model.Reaction
		if err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			return nil, err
		}
		result[reaction.MessageID] = append(result[reaction.MessageID], reaction)
	}
	return result, rows.Err()
}

// ToggleReaction removes the (user, emoji) reaction if present, otherwise
// adds it. Each reaction is an independent row keyed by the triple, so
// concurrent toggles from different users cannot corrupt each other.
func (s *Store) ToggleReaction(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND emoji = $3
	`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`, messageID, userID, emoji, time.Now().UTC())
	return true, err
}

// FlagMessage appends a moderation entry and marks the message flagged
// without changing its status; a separate moderator action transitions
// status.
func (s *Store) FlagMessage(ctx context.Context, messageID int64, userID, reason string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var exists int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM channel_messages WHERE id = $1`, messageID).Scan(&exists); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO message_flags (id, message_id, user_id, reason, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), messageID, userID, reason, time.Now().UTC()); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE channel_messages SET is_flagged = true WHERE id = $1`, messageID)
		return err
	})
}

// UpdateMessageContent edits a message. Only the author may edit; returns
// pgx.ErrNoRows when the message does not exist or belongs to someone else.
func (s *Store) UpdateMessageContent(ctx context.Context, messageID int64, authorID, content string) (model.ChannelMessage, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE channel_messages
		SET content = $1, status = 'edited', updated_at = now()
		WHERE id = $2 AND author_id = $3 AND status <> 'deleted'
	`, content, messageID, authorID)
	if err != nil {
		return model.ChannelMessage{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.ChannelMessage{}, pgx.ErrNoRows
	}
	return s.GetMessage(ctx, messageID)
}

func (s *Store) DeleteMessage(ctx context.Context, messageID int64, authorID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE channel_messages
		SET status = 'deleted', updated_at = now()
		WHERE id = $1 AND author_id = $2
	`, messageID, authorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetMessageStatus applies a moderator status transition.
func (s *Store) SetMessageStatus(ctx context.Context, messageID int64, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE channel_messages SET status = $1, updated_at = now() WHERE id = $2
	`, status, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
