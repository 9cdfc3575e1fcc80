package history

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xiaokk2024/mymanus1/internal/store"
	"github.com/xiaokk2024/mymanus1/llm"
)

const sessionVersion = "1.0"

// ErrNoSessions is returned by LastSession when nothing was saved yet.
var ErrNoSessions = errors.New("no saved sessions")

var lastSessionKey = store.Key(store.KindMeta, "last_session")

// Manager persists conversation snapshots in the local store.
type Manager struct {
	store store.Store
	mu    sync.Mutex
	now   func() time.Time
}

// NewManager creates a history manager backed by s.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s, now: time.Now}
}

// StartSession creates a new, unsaved session.
func (m *Manager) StartSession(model, baseURL string) *Session {
	now := m.now()
	return &Session{
		ID:        uuid.NewString(),
		Version:   sessionVersion,
		CreatedAt: now,
		UpdatedAt: now,
		Model:     model,
		BaseURL:   baseURL,
		Messages:  []Message{},
	}
}

// SaveSession writes the session and marks it as the most recent one.
func (m *Manager) SaveSession(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session.UpdatedAt = m.now()

	// Generate title if empty
	if session.Metadata.Title == "" {
		session.Metadata.Title = generateTitle(session)
	}

	key := store.Key(store.KindSession, session.ID)
	err := m.store.Update(key, session)
	if errors.Is(err, store.ErrNotFound) {
		err = m.store.Create(key, session)
	}
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := m.store.Put(lastSessionKey, pointer{SessionID: session.ID, UpdatedAt: session.UpdatedAt}); err != nil {
		return fmt.Errorf("failed to update last session: %w", err)
	}
	return nil
}

// LoadSession reads one session by ID.
func (m *Manager) LoadSession(id string) (*Session, error) {
	var session Session
	if err := m.store.Get(store.Key(store.KindSession, id), &session); err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return &session, nil
}

// LastSession returns the most recently saved session.
func (m *Manager) LastSession() (*Session, error) {
	var p pointer
	if err := m.store.Get(lastSessionKey, &p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSessions
		}
		return nil, err
	}
	return m.LoadSession(p.SessionID)
}

// DeleteSession removes a session. Deleting the most recent session also
// clears the pointer LastSession follows.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(store.Key(store.KindSession, id)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	var p pointer
	if err := m.store.Get(lastSessionKey, &p); err == nil && p.SessionID == id {
		if err := m.store.Delete(lastSessionKey); err != nil {
			return fmt.Errorf("failed to clear last session: %w", err)
		}
	}
	return nil
}

// ListSessions returns summaries of every saved session, newest first.
func (m *Manager) ListSessions() ([]SessionInfo, error) {
	objs, err := m.store.List(store.Prefix(store.KindSession), func() interface{} { return &Session{} })
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(objs))
	for _, obj := range objs {
		session := obj.(*Session)
		sessions = append(sessions, SessionInfo{
			ID:        session.ID,
			Title:     session.Metadata.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
			Messages:  len(session.Messages),
			Model:     session.Model,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// ConvertFromLLMMessages stamps transcript messages for saving.
func (m *Manager) ConvertFromLLMMessages(llmMessages []llm.Message) []Message {
	now := m.now()
	messages := make([]Message, len(llmMessages))
	for i, msg := range llmMessages {
		messages[i] = Message{Message: msg, Timestamp: now}
	}
	return messages
}

// ConvertToLLMMessages returns the transcript stored in a session.
func (m *Manager) ConvertToLLMMessages(histMessages []Message) []llm.Message {
	messages := make([]llm.Message, len(histMessages))
	for i, msg := range histMessages {
		messages[i] = msg.Message
	}
	return messages
}

func generateTitle(session *Session) string {
	for _, msg := range session.Messages {
		if msg.Role == llm.RoleUser && msg.Content != nil {
			content := strings.TrimSpace(*msg.Content)
			if idx := strings.IndexByte(content, '\n'); idx != -1 {
				content = content[:idx]
			}
			if utf8.RuneCountInString(content) > 50 {
				content = string([]rune(content)[:47]) + "..."
			}
			if content != "" {
				return content
			}
		}
	}

	// Fallback to timestamp
	return fmt.Sprintf("Session %s", session.CreatedAt.Format("Jan 02 15:04"))
}
