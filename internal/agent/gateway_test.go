package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rahul/digibiz/internal/observability"
	"github.com/rahul/digibiz/pkg/config"
)

type stubInvoker struct {
	reply   string
	err     error
	calls   int
	agentID string
	message string
}

func (s *stubInvoker) Invoke(ctx context.Context, agentID, message string, extra map[string]any) (string, error) {
	s.calls++
	s.agentID = agentID
	s.message = message
	return s.reply, s.err
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(config.AgentsConfig{
		Endpoint:        "https://orchestrate.example",
		OrchestrationID: "orch",
		AssessmentID:    "assess-1",
		LeanCoachID:     "coach-1",
		ExecutionID:     "exec-1",
		ValidationID:    "valid-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func testLogger(t *testing.T) *observability.Logger {
	t.Helper()
	return observability.NewLoggerTo(&bytes.Buffer{}, t.TempDir())
}

func TestGateway_Remote(t *testing.T) {
	inv := &stubInvoker{reply: `{"mission_id": "remote_mission"}`}
	gw := NewGateway(testRegistry(t), inv, testLogger(t))

	reply := gw.Call(context.Background(), Request{Role: RoleLeanCoach, Message: "findings"})
	if reply.Simulated {
		t.Error("Expected a remote reply")
	}
	if inv.agentID != "coach-1" || inv.message != "findings" {
		t.Errorf("Unexpected invocation: agent=%s message=%s", inv.agentID, inv.message)
	}
	if reply.Text != inv.reply {
		t.Errorf("Expected remote text, got %q", reply.Text)
	}
}

func TestGateway_FallbackOnUnavailable(t *testing.T) {
	inv := &stubInvoker{err: fmt.Errorf("%w: timeout", ErrUnavailable)}
	gw := NewGateway(testRegistry(t), inv, testLogger(t))

	reply := gw.Call(context.Background(), Request{
		Role:  RoleAssessment,
		Input: SimulationInput{Description: "Long waiting times during restocking"},
	})
	if !reply.Simulated {
		t.Fatal("Expected a simulated reply")
	}
	res := Resolve(reply.Text)
	if !res.IsStructured() {
		t.Fatalf("Expected simulated reply to be structured, got %q", reply.Text)
	}
	if inv.calls != 1 {
		t.Errorf("Expected exactly one remote attempt, got %d", inv.calls)
	}
}

func TestGateway_FallbackOnAnyError(t *testing.T) {
	inv := &stubInvoker{err: errors.New("boom")}
	gw := NewGateway(testRegistry(t), inv, testLogger(t))

	reply := gw.Call(context.Background(), Request{Role: RoleExecution})
	if !reply.Simulated {
		t.Error("Expected invoker errors never to surface")
	}
}

func TestGateway_Unconfigured(t *testing.T) {
	inv := &stubInvoker{reply: "{}"}
	reg, _ := NewRegistry(config.AgentsConfig{})
	gw := NewGateway(reg, inv, testLogger(t))

	reply := gw.Call(context.Background(), Request{Role: RoleValidation})
	if !reply.Simulated || inv.calls != 0 {
		t.Errorf("Expected simulation without a remote call, simulated=%v calls=%d", reply.Simulated, inv.calls)
	}

	gw = NewGateway(nil, nil, testLogger(t))
	if reply := gw.Call(context.Background(), Request{Role: RoleAssessment}); !reply.Simulated {
		t.Error("Expected nil registry to simulate")
	}
}

type fixedSimulator struct{ out map[string]any }

func (f fixedSimulator) Simulate(SimulationInput) map[string]any { return f.out }

func TestGateway_WithSimulator(t *testing.T) {
	gw := NewGateway(nil, nil, testLogger(t)).
		WithSimulator(RoleValidation, fixedSimulator{out: map[string]any{"approved": true}})

	res := Resolve(gw.Call(context.Background(), Request{Role: RoleValidation}).Text)
	if res.Structured["approved"] != true {
		t.Errorf("Expected the replaced simulator to answer, got %v", res.Structured)
	}
}
