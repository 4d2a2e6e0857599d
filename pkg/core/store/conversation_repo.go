package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"filing_qa/pkg/core/conversation"

	"github.com/jackc/pgx/v5"
)

// ConversationRepo persists conversations, their questions and the per-user
// question history.
type ConversationRepo struct {
	db DBTX
}

var _ conversation.Store = (*ConversationRepo)(nil)

func NewConversationRepo(db DBTX) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) GetOrCreate(ctx context.Context, userID int64, title string) (int64, error) {
	touch := `
		UPDATE conversations SET updated_at = NOW()
		WHERE id = (
			SELECT id FROM conversations
			WHERE user_id = $1 AND title = $2
			ORDER BY updated_at DESC, id DESC
			LIMIT 1
		)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRow(ctx, touch, userID, title).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up conversation: %w", err)
	}

	insert := `
		INSERT INTO conversations (user_id, title, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id
	`
	if err := r.db.QueryRow(ctx, insert, userID, title).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// lockOwned locks the conversation row for the rest of tx, serializing writers
// on the same conversation.
func lockOwned(ctx context.Context, tx pgx.Tx, conversationID, userID int64) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		conversationID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.ErrNotFoundOrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to lock conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) AppendMessage(ctx context.Context, msg conversation.NewMessage) (int64, error) {
	var questionID int64
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, msg.ConversationID, msg.UserID); err != nil {
			return err
		}

		insert := `
			INSERT INTO questions (conversation_id, user_id, question, answer, filing_id, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id
		`
		if err := tx.QueryRow(ctx, insert, msg.ConversationID, msg.UserID, msg.Question, msg.Answer, msg.FilingID).Scan(&questionID); err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_question_history (user_id, question_id, conversation_id, created_at)
			VALUES ($1, $2, $3, NOW())
		`, msg.UserID, questionID, msg.ConversationID); err != nil {
			return fmt.Errorf("failed to insert question history: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, msg.ConversationID); err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return questionID, nil
}

// SetTitleIfPlaceholder is a single conditional UPDATE, so concurrent askers
// cannot both rename the same conversation.
func (r *ConversationRepo) SetTitleIfPlaceholder(ctx context.Context, conversationID, userID int64, title string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations SET title = $1
		WHERE id = $2 AND user_id = $3 AND (title IS NULL OR title = ANY($4))
	`, title, conversationID, userID, conversation.Placeholders())
	if err != nil {
		return false, fmt.Errorf("failed to update conversation title: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if err := r.checkOwned(ctx, conversationID, userID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *ConversationRepo) Rename(ctx context.Context, conversationID, userID int64, title string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations SET title = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
	`, strings.TrimSpace(title), conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrNotFoundOrForbidden
	}
	return nil
}

func (r *ConversationRepo) Get(ctx context.Context, conversationID, userID int64) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, COALESCE(title, ''), created_at, updated_at
		FROM conversations WHERE id = $1 AND user_id = $2
	`, conversationID, userID).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversation.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &c, nil
}

func (r *ConversationRepo) checkOwned(ctx context.Context, conversationID, userID int64) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check conversation owner: %w", err)
	}
	if !exists {
		return conversation.ErrNotFoundOrForbidden
	}
	return nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]conversation.Summary, error) {
	if limit <= 0 {
		limit = conversation.DefaultListLimit
	}
	rows, err := r.db.Query(ctx, `
		SELECT c.id, COALESCE(c.title, ''), c.updated_at,
		       COALESCE((
		           SELECT q.question FROM questions q
		           WHERE q.conversation_id = c.id
		           ORDER BY q.created_at DESC, q.id DESC
		           LIMIT 1
		       ), '')
		FROM conversations c
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []conversation.Summary
	for rows.Next() {
		var s conversation.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.UpdatedAt, &s.LastQuestion); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ConversationRepo) Messages(ctx context.Context, conversationID, userID int64) ([]conversation.Message, error) {
	if err := r.checkOwned(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, user_id, question, COALESCE(answer, ''), filing_id, created_at
		FROM questions
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Question, &m.Answer, &m.FilingID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ConversationRepo) Delete(ctx context.Context, conversationID, userID int64) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, conversationID, userID); err != nil {
			return err
		}
		steps := []struct {
			what  string
			query string
		}{
			{"history", `DELETE FROM user_question_history WHERE conversation_id = $1`},
			{"questions", `DELETE FROM questions WHERE conversation_id = $1`},
			{"conversation", `DELETE FROM conversations WHERE id = $1`},
		}
		for _, step := range steps {
			if _, err := tx.Exec(ctx, step.query, conversationID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", step.what, err)
			}
		}
		return nil
	})
}
