package conversation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// IN-MEMORY STORE (For development/testing)
// Production uses store.ConversationRepo
// =============================================================================

// MemoryStore implements Store in memory. One mutex serializes writes, which
// also makes the placeholder title check-and-set atomic.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[int64]*Conversation
	messages      map[int64][]Message
	history       map[int64][]int64 // user id -> question ids
	nextConvID    int64
	nextMsgID     int64
	now           func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[int64]*Conversation),
		messages:      make(map[int64][]Message),
		history:       make(map[int64][]int64),
		now:           time.Now,
	}
}

// WithClock overrides the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) owned(conversationID, userID int64) (*Conversation, error) {
	c, ok := s.conversations[conversationID]
	if !ok || c.UserID != userID {
		return nil, ErrNotFoundOrForbidden
	}
	return c, nil
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID int64, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var found *Conversation
	for _, c := range s.conversations {
		if c.UserID != userID || c.Title != title {
			continue
		}
		if found == nil || c.UpdatedAt.After(found.UpdatedAt) || (c.UpdatedAt.Equal(found.UpdatedAt) && c.ID > found.ID) {
			found = c
		}
	}
	if found != nil {
		found.UpdatedAt = now
		return found.ID, nil
	}

	s.nextConvID++
	c := &Conversation{ID: s.nextConvID, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	s.conversations[c.ID] = c
	return c.ID, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg NewMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.owned(msg.ConversationID, msg.UserID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	s.nextMsgID++
	m := Message{
		ID:             s.nextMsgID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Question:       msg.Question,
		Answer:         msg.Answer,
		FilingID:       msg.FilingID,
		CreatedAt:      now,
	}
	s.messages[c.ID] = append(s.messages[c.ID], m)
	s.history[msg.UserID] = append(s.history[msg.UserID], m.ID)
	c.UpdatedAt = now
	return m.ID, nil
}

func (s *MemoryStore) SetTitleIfPlaceholder(ctx context.Context, conversationID, userID int64, title string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.owned(conversationID, userID)
	if err != nil {
		return false, err
	}
	if !IsPlaceholder(c.Title) {
		return false, nil
	}
	c.Title = title
	return true, nil
}

func (s *MemoryStore) Rename(ctx context.Context, conversationID, userID int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.owned(conversationID, userID)
	if err != nil {
		return err
	}
	c.Title = strings.TrimSpace(title)
	c.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, conversationID, userID int64) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.owned(conversationID, userID)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID int64, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []Summary
	for _, c := range s.conversations {
		if c.UserID != userID {
			continue
		}
		sum := Summary{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt}
		if msgs := s.messages[c.ID]; len(msgs) > 0 {
			sum.LastQuestion = msgs[len(msgs)-1].Question
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Messages(ctx context.Context, conversationID, userID int64) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.owned(conversationID, userID); err != nil {
		return nil, err
	}
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversationID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(conversationID, userID); err != nil {
		return err
	}
	removed := make(map[int64]bool)
	for _, m := range s.messages[conversationID] {
		removed[m.ID] = true
	}
	kept := s.history[userID][:0]
	for _, id := range s.history[userID] {
		if !removed[id] {
			kept = append(kept, id)
		}
	}
	s.history[userID] = kept
	delete(s.messages, conversationID)
	delete(s.conversations, conversationID)
	return nil
}

// HistoryLen returns how many history rows the user has, for tests.
func (s *MemoryStore) HistoryLen(userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[userID])
}
