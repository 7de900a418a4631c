package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rahul/digibiz/internal/auth"
)

// ErrUnavailable marks every way a remote agent call can fail. Callers fall
// back to simulation on it instead of surfacing the error.
var ErrUnavailable = errors.New("agent unavailable")

// Invoker sends one message to a remote agent and returns its reply text.
type Invoker interface {
	Invoke(ctx context.Context, agentID, message string, extra map[string]any) (string, error)
}

// OrchestrateClient talks to the orchestrate agents REST API.
type OrchestrateClient struct {
	endpoint        string
	orchestrationID string
	tokens          auth.TokenSource
	client          *http.Client
}

var _ Invoker = (*OrchestrateClient)(nil)

func NewOrchestrateClient(reg *Registry, tokens auth.TokenSource, timeout time.Duration) *OrchestrateClient {
	if timeout <= 0 || timeout > 60*time.Second {
		timeout = 60 * time.Second
	}
	return &OrchestrateClient{
		endpoint:        reg.Endpoint,
		orchestrationID: reg.OrchestrationID,
		tokens:          tokens,
		client:          &http.Client{Timeout: timeout},
	}
}

func (c *OrchestrateClient) Invoke(ctx context.Context, agentID, message string, extra map[string]any) (string, error) {
	if c.endpoint == "" || c.orchestrationID == "" || agentID == "" {
		return "", fmt.Errorf("%w: endpoint, orchestration id or agent id not configured", ErrUnavailable)
	}

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: credential exchange: %v", ErrUnavailable, err)
	}

	agentCtx := map[string]any{}
	for k, v := range extra {
		agentCtx[k] = v
	}
	agentCtx["global"] = map[string]any{
		"system": map[string]any{
			"orchestration_id": c.orchestrationID,
			"agent_id":         agentID,
		},
	}
	payload, err := json.Marshal(map[string]any{
		"input":   map[string]any{"text": message},
		"context": agentCtx,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode payload: %v", ErrUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/agents/%s/messages", c.endpoint, url.PathEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read reply: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: agent %s returned status %d", ErrUnavailable, agentID, resp.StatusCode)
	}
	return ExtractReplyText(body), nil
}
