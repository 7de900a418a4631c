package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/digibiz/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// LLMClient answers as an agent by prompting a language model with the
// agent's system prompt.
type LLMClient struct {
	Model   llms.Model
	Prompts *PromptManager
	Logger  *observability.Logger
	Timeout time.Duration
}

var _ Invoker = (*LLMClient)(nil)

func NewLLMClient(model llms.Model, prompts *PromptManager, logger *observability.Logger, timeout time.Duration) *LLMClient {
	if timeout <= 0 || timeout > 60*time.Second {
		timeout = 60 * time.Second
	}
	return &LLMClient{Model: model, Prompts: prompts, Logger: logger, Timeout: timeout}
}

func (c *LLMClient) Invoke(ctx context.Context, agentID, message string, _ map[string]any) (string, error) {
	if c.Model == nil {
		return "", fmt.Errorf("%w: no model configured", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	systemPrompt := c.Prompts.GetAgentPrompt(agentID)
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(message)},
		},
	}

	resp, err := c.Model.GenerateContent(ctx, messages, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("%w: model returned no content", ErrUnavailable)
	}

	content := resp.Choices[0].Content
	c.Logger.LogLLM(agentID, message, content)
	return content, nil
}
