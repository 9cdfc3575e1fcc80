package agent

import (
	"context"
	"fmt"

	"github.com/xiaokk2024/mymanus1/llm"
)

// ProbeResult reports whether the configured model is served.
type ProbeResult struct {
	Model     string
	Found     bool
	Available []string
}

// ProbeModel lists the endpoint's models and looks for model.
func ProbeModel(ctx context.Context, client llm.Client, model string) (*ProbeResult, error) {
	if client == nil {
		return nil, ErrNotReady
	}
	models, err := client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	result := &ProbeResult{Model: model, Available: make([]string, 0, len(models))}
	for _, m := range models {
		result.Available = append(result.Available, m.ID)
		if m.ID == model {
			result.Found = true
		}
	}
	return result, nil
}
