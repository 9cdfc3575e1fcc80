package agent

import (
	"sync"

	"github.com/xiaokk2024/mymanus1/llm"
)

// DefaultTranscriptCap is the number of messages kept after trimming.
const DefaultTranscriptCap = 20

// Transcript is the ordered message list sent to the model. Message 0 is
// the system message whenever the transcript is not empty.
type Transcript struct {
	mu       sync.RWMutex
	messages []llm.Message
	cap      int
}

// NewTranscript creates a transcript holding only the system prompt. A cap
// of zero or less disables trimming.
func NewTranscript(systemPrompt string, cap int) *Transcript {
	t := &Transcript{cap: cap}
	if systemPrompt != "" {
		t.messages = []llm.Message{systemMessage(systemPrompt)}
	}
	return t
}

// Append adds messages at the end.
func (t *Transcript) Append(msgs ...llm.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
}

// Trim collapses the transcript to message 0 plus the last cap-1 messages
// when it is longer than cap.
func (t *Transcript) Trim() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trim()
}

// AppendAndTrim appends msg and then applies the retention policy.
func (t *Transcript) AppendAndTrim(msg llm.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	t.trim()
}

func (t *Transcript) trim() {
	if t.cap <= 0 || len(t.messages) <= t.cap {
		return
	}
	kept := make([]llm.Message, 0, t.cap)
	kept = append(kept, t.messages[0])
	kept = append(kept, t.messages[len(t.messages)-(t.cap-1):]...)
	t.messages = kept
}

// Messages returns a copy of the messages.
func (t *Transcript) Messages() []llm.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]llm.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// First returns message 0.
func (t *Transcript) First() (llm.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return llm.Message{}, false
	}
	return t.messages[0], true
}

// Replace swaps in a new message list.
func (t *Transcript) Replace(msgs []llm.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append([]llm.Message(nil), msgs...)
}

// Reset leaves only a fresh system message.
func (t *Transcript) Reset(systemPrompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = []llm.Message{systemMessage(systemPrompt)}
}

// SetSystemPrompt rewrites message 0, inserting it when missing.
func (t *Transcript) SetSystemPrompt(prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) > 0 && t.messages[0].Role == llm.RoleSystem {
		t.messages[0] = systemMessage(prompt)
		return
	}
	t.messages = append([]llm.Message{systemMessage(prompt)}, t.messages...)
}

func systemMessage(content string) llm.Message {
	return llm.Message{Role: llm.RoleSystem, Content: llm.StringPtr(content)}
}
