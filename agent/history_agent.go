package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/history"
)

// HistoryAgent wraps an agent and snapshots the transcript after every
// successful turn.
type HistoryAgent struct {
	Agent
	historyManager *history.Manager
	currentSession *history.Session
	logger         *zap.Logger
}

// NewHistoryAgent creates a new agent with history support
func NewHistoryAgent(agent Agent, historyManager *history.Manager, session *history.Session, logger *zap.Logger) *HistoryAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryAgent{
		Agent:          agent,
		historyManager: historyManager,
		currentSession: session,
		logger:         logger,
	}
}

// Query runs a chat turn and saves the conversation on success
func (ha *HistoryAgent) Query(ctx context.Context, query string) (*Response, error) {
	response, err := ha.Agent.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	if response.Usage != nil && ha.currentSession != nil {
		ha.currentSession.Metadata.TokenCount += response.Usage.TotalTokens
	}
	ha.save()
	return response, nil
}

// QueryStream streams a chat turn and saves the conversation once it
// completes.
func (ha *HistoryAgent) QueryStream(ctx context.Context, query string) (<-chan StreamEvent, error) {
	events, err := ha.Agent.QueryStream(ctx, query)
	if err != nil {
		return nil, err
	}

	intercepted := make(chan StreamEvent, 100)
	go func() {
		defer close(intercepted)
		for event := range events {
			if event.Type == EventTypeComplete {
				if saveErr := ha.save(); saveErr != nil {
					intercepted <- StreamEvent{
						Type:  EventTypeError,
						Error: fmt.Errorf("failed to save conversation history: %w", saveErr),
					}
				}
			}
			intercepted <- event
		}
	}()
	return intercepted, nil
}

// Research runs a research task and records the report in the session
func (ha *HistoryAgent) Research(ctx context.Context, question string, clarify Clarifier) (*Report, error) {
	report, err := ha.Agent.Research(ctx, question, clarify)
	if err != nil {
		return nil, err
	}
	if ha.currentSession != nil {
		if report.Path != "" {
			ha.currentSession.Metadata.Reports = append(ha.currentSession.Metadata.Reports, report.Path)
		}
		if report.Usage != nil {
			ha.currentSession.Metadata.TokenCount += report.Usage.TotalTokens
		}
	}
	ha.save()
	return report, nil
}

// Clear resets the agent and saves the cleared snapshot
func (ha *HistoryAgent) Clear() {
	ha.Agent.Clear()
	ha.save()
}

// GetSession returns the current session
func (ha *HistoryAgent) GetSession() *history.Session {
	return ha.currentSession
}

// RestoreMemoryFromSession restores the agent's memory from a session
func (ha *HistoryAgent) RestoreMemoryFromSession(session *history.Session) {
	if session == nil {
		return
	}
	ha.currentSession = session
	if len(session.Messages) == 0 {
		return
	}
	ha.Agent.SetMemory(ha.historyManager.ConvertToLLMMessages(session.Messages))
}

func (ha *HistoryAgent) save() error {
	if ha.currentSession == nil || ha.historyManager == nil {
		return nil
	}
	ha.currentSession.Messages = ha.historyManager.ConvertFromLLMMessages(ha.Agent.GetMemory())
	if err := ha.historyManager.SaveSession(ha.currentSession); err != nil {
		ha.logger.Warn("failed to save conversation history", zap.String("session", ha.currentSession.ID), zap.Error(err))
		return err
	}
	return nil
}
