package model

import "time"

// Role values for a user account.
const (
	RoleStudent  = "student"
	RoleEducator = "educator"
	RoleAdmin    = "admin"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	DisplayName   string
	Role          string
	AcademicLevel string
	TargetExams   []string
	Level         int
	XP            int
	LastActiveAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RefreshSession is one stored renewal credential. A user holds one row per
// device; rotation revokes the presented row and inserts a fresh one.
type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

// Channel message status transitions: active -> edited | deleted | flagged.
const (
	MessageStatusActive  = "active"
	MessageStatusEdited  = "edited"
	MessageStatusDeleted = "deleted"
	MessageStatusFlagged = "flagged"
)

type ChannelMessage struct {
	ID          int64
	Channel     string
	AuthorID    string
	AuthorName  string
	Content     string
	MessageType string
	Status      string
	IsFlagged   bool
	Reactions   []Reaction
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Reaction struct {
	MessageID int64
	UserID    string
	Emoji     string
	CreatedAt time.Time
}

type MessageFlag struct {
	ID        string
	MessageID int64
	UserID    string
	Reason    string
	CreatedAt time.Time
}

// Conversation turn senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// ConversationTurn is one message in a user's private AI conversation.
// Token and latency metadata are set only on ai turns.
type ConversationTurn struct {
	ID             string
	UserID         string
	Sender         string
	Content        string
	Subject        *string
	Topic          *string
	SessionID      *string
	TokensUsed     *int
	ResponseTimeMs *int64
	Rating         *int
	FeedbackText   *string
	CreatedAt      time.Time
}
