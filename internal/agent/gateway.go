package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rahul/digibiz/internal/observability"
)

// Request is one agent call made by the pipeline.
type Request struct {
	Role       Role
	BusinessID string
	RunID      string
	Message    string
	Context    map[string]any
	Input      SimulationInput
}

// Reply is the text an agent answered with.
type Reply struct {
	Text      string
	AgentID   string
	Simulated bool
}

// Caller is what the pipeline needs from the gateway.
type Caller interface {
	Call(ctx context.Context, req Request) Reply
}

// Gateway routes calls to the remote agents and answers locally when they
// cannot be reached. Call never fails.
type Gateway struct {
	registry   *Registry
	invoker    Invoker
	simulators map[Role]Simulator
	logger     *observability.Logger
}

var _ Caller = (*Gateway)(nil)

// NewGateway builds a gateway. A nil invoker or registry means every call is
// simulated.
func NewGateway(registry *Registry, invoker Invoker, logger *observability.Logger) *Gateway {
	return &Gateway{
		registry:   registry,
		invoker:    invoker,
		simulators: DefaultSimulators(),
		logger:     logger,
	}
}

// WithSimulator replaces the simulator used for role.
func (g *Gateway) WithSimulator(role Role, sim Simulator) *Gateway {
	g.simulators[role] = sim
	return g
}

func (g *Gateway) Call(ctx context.Context, req Request) Reply {
	agentID, ok := g.registry.AgentID(req.Role)
	if !ok || g.invoker == nil {
		g.logger.LogFallback(req.BusinessID, req.RunID, string(req.Role), "agent not configured")
		return g.simulate(req)
	}

	start := time.Now()
	text, err := g.invoker.Invoke(ctx, agentID, req.Message, req.Context)
	g.logger.LogAgentCall(req.BusinessID, req.RunID, string(req.Role), agentID, time.Since(start))
	if err != nil {
		reason := err.Error()
		if !errors.Is(err, ErrUnavailable) {
			reason = "unexpected invoker error: " + reason
		}
		g.logger.LogFallback(req.BusinessID, req.RunID, string(req.Role), reason)
		return g.simulate(req)
	}
	return Reply{Text: text, AgentID: agentID}
}

func (g *Gateway) simulate(req Request) Reply {
	sim, ok := g.simulators[req.Role]
	if !ok {
		return Reply{Text: "{}", Simulated: true}
	}
	data, err := json.Marshal(sim.Simulate(req.Input))
	if err != nil {
		data = []byte("{}")
	}
	return Reply{Text: string(data), Simulated: true}
}
