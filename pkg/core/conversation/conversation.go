// Package conversation keeps per-user question/answer threads.
package conversation

import (
	"context"
	"errors"
	"time"

	"filing_qa/pkg/core/utils"
)

// ErrNotFoundOrForbidden is returned when a conversation does not exist or
// belongs to another user. The two cases are deliberately indistinguishable.
var ErrNotFoundOrForbidden = errors.New("conversation not found or not owned by user")

// Placeholder titles that get replaced by the first question.
const (
	PlaceholderNew     = "New conversation"
	PlaceholderDefault = "Default conversation"
)

// DefaultTitleMaxLen is the rune limit for auto-generated titles.
const DefaultTitleMaxLen = 30

// DefaultListLimit caps ListForUser when the caller passes no limit.
const DefaultListLimit = 20

type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one immutable question/answer pair.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	FilingID       *int64    `json:"filing_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage is the input to AppendMessage.
type NewMessage struct {
	ConversationID int64
	UserID         int64
	Question       string
	Answer         string
	FilingID       *int64
}

// Summary is a conversation listing row with the latest question as a preview.
type Summary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastQuestion string    `json:"last_question"`
}

// Store persists conversations. Every operation that takes a conversation id
// also takes the caller's user id and re-checks ownership.
type Store interface {
	// GetOrCreate returns the most recently updated conversation of user with
	// this exact title, touching its updated_at, or creates one.
	GetOrCreate(ctx context.Context, userID int64, title string) (int64, error)
	// AppendMessage records a question/answer pair and the matching history row
	// atomically, and touches the conversation.
	AppendMessage(ctx context.Context, msg NewMessage) (int64, error)
	// SetTitleIfPlaceholder replaces the title only while it is still a
	// placeholder. It reports whether the title changed.
	SetTitleIfPlaceholder(ctx context.Context, conversationID, userID int64, title string) (bool, error)
	Rename(ctx context.Context, conversationID, userID int64, title string) error
	Get(ctx context.Context, conversationID, userID int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]Summary, error)
	// Messages returns the thread oldest first.
	Messages(ctx context.Context, conversationID, userID int64) ([]Message, error)
	Delete(ctx context.Context, conversationID, userID int64) error
}

// IsPlaceholder reports whether title may be overwritten automatically.
func IsPlaceholder(title string) bool {
	return title == "" || title == PlaceholderNew || title == PlaceholderDefault
}

// Placeholders lists the titles IsPlaceholder accepts, for SQL conditions.
func Placeholders() []string {
	return []string{"", PlaceholderNew, PlaceholderDefault}
}

// TitleFromQuestion derives a conversation title from the first question.
func TitleFromQuestion(question string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTitleMaxLen
	}
	return utils.TruncateTitle(question, maxLen)
}
