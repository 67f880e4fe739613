package hub

import (
	"encoding/json"
	"time"

	"prepwise/server/internal/model"
)

// Wire event names.
const (
	EventJoinChannel    = "join_channel"
	EventLeaveChannel   = "leave_channel"
	EventSendMessage    = "send_message"
	EventNewMessage     = "new_message"
	EventPresenceJoined = "presence_joined"
	EventPresenceLeft   = "presence_left"
	EventMessageError   = "message_error"
)

// Event is one server-to-client frame.
type Event struct {
	Type string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// clientEvent is one client-to-server frame; Data is decoded per event type.
type clientEvent struct {
	Type string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

type joinPayload struct {
	Channel string `json:"channel"`
}

type sendPayload struct {
	Channel     string `json:"channel"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type PresencePayload struct {
	PrincipalID string `json:"principalId"`
	DisplayName string `json:"displayName"`
	Channel     string `json:"channel"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

type MessagePayload struct {
	ID          int64             `json:"id"`
	Channel     string            `json:"channel"`
	AuthorID    string            `json:"authorId"`
	AuthorName  string            `json:"authorName"`
	Content     string            `json:"content"`
	MessageType string            `json:"messageType"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	Reactions   []ReactionPayload `json:"reactions,omitempty"`
}

type ReactionPayload struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

func messagePayload(msg model.ChannelMessage) MessagePayload {
	payload := MessagePayload{
		ID:          msg.ID,
		Channel:     msg.Channel,
		AuthorID:    msg.AuthorID,
		AuthorName:  msg.AuthorName,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		Status:      msg.Status,
		CreatedAt:   msg.CreatedAt,
	}
	for _, reaction := range msg.Reactions {
		payload.Reactions = append(payload.Reactions, ReactionPayload{UserID: reaction.UserID, Emoji: reaction.Emoji})
	}
	return payload
}
