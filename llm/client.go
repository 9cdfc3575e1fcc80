// Package llm defines the wire types and client contract for
// OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"
)

// Client is a chat completion endpoint.
type Client interface {
	// Chat performs one completion round-trip.
	Chat(ctx context.Context, request *ChatRequest) (*ChatResponse, error)

	// ListModels returns the models the endpoint serves.
	ListModels(ctx context.Context) ([]Model, error)

	Close() error
}

// Model is one entry of the endpoint's model list.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
