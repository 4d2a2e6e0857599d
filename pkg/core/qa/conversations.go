package qa

import (
	"context"
	"strings"

	"filing_qa/pkg/core/conversation"
)

// Conversations lists the user's most recently updated conversations.
func (o *Orchestrator) Conversations(ctx context.Context, userID int64, limit int) ([]conversation.Summary, error) {
	list, err := o.deps.Conversations.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, o.convErr("list conversations", err)
	}
	return list, nil
}

// Conversation returns one conversation owned by the user.
func (o *Orchestrator) Conversation(ctx context.Context, conversationID, userID int64) (*conversation.Conversation, error) {
	c, err := o.deps.Conversations.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, o.convErr("load conversation", err)
	}
	return c, nil
}

// Messages returns a conversation's thread oldest first.
func (o *Orchestrator) Messages(ctx context.Context, conversationID, userID int64) ([]conversation.Message, error) {
	msgs, err := o.deps.Conversations.Messages(ctx, conversationID, userID)
	if err != nil {
		return nil, o.convErr("load messages", err)
	}
	return msgs, nil
}

// Rename sets a user-chosen title. Custom titles are never replaced automatically.
func (o *Orchestrator) Rename(ctx context.Context, conversationID, userID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if err := o.deps.Conversations.Rename(ctx, conversationID, userID, title); err != nil {
		return o.convErr("rename conversation", err)
	}
	return nil
}

// Delete removes a conversation with its messages and history rows.
func (o *Orchestrator) Delete(ctx context.Context, conversationID, userID int64) error {
	if err := o.deps.Conversations.Delete(ctx, conversationID, userID); err != nil {
		return o.convErr("delete conversation", err)
	}
	return nil
}
