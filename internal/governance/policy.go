package governance

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request is caller-supplied text on its way into the pipeline.
type Request struct {
	Operation  string
	BusinessID string
	Text       string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

func (r Result) Denied() bool { return r.Effect == EffectDeny }

// PolicyEngine decides whether a request may reach the agents.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies operations by name, text by pattern and text
// longer than MaxTextLen runes.
type DefaultPolicyEngine struct {
	DeniedOperations map[string]bool
	DeniedRegex      []*regexp.Regexp
	MaxTextLen       int
}

var _ PolicyEngine = (*DefaultPolicyEngine)(nil)

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedOperations: make(map[string]bool),
		DeniedRegex:      make([]*regexp.Regexp, 0),
	}
}

// NewPolicyEngine builds an engine from configured deny patterns.
func NewPolicyEngine(patterns []string, maxTextLen int) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	e.MaxTextLen = maxTextLen
	for _, p := range patterns {
		if err := e.DenyPattern(p); err != nil {
			return nil, fmt.Errorf("policy pattern %q: %w", p, err)
		}
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenyOperation(name string) {
	e.DeniedOperations[name] = true
}

func (e *DefaultPolicyEngine) DenyPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedOperations[req.Operation] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Operation '%s' is restricted by system policy", req.Operation),
		}, nil
	}

	if e.MaxTextLen > 0 && utf8.RuneCountInString(req.Text) > e.MaxTextLen {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Text exceeds %d characters", e.MaxTextLen),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Text) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Text matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
