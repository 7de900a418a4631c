// Package mission runs the assessment, coaching, execution and validation
// pipeline against a business's process document.
package mission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/digibiz/internal/agent"
	"github.com/rahul/digibiz/internal/notify"
	"github.com/rahul/digibiz/internal/observability"
	"github.com/rahul/digibiz/internal/store"
)

// ErrProcessNotFound is returned when a business has never started a mission.
var ErrProcessNotFound = errors.New("process not found")

// Processes is the slice of the process store the pipeline uses.
type Processes interface {
	LoadByBusinessID(ctx context.Context, businessID string) (*store.BusinessProcess, error)
	Create(ctx context.Context, p *store.BusinessProcess) (*store.BusinessProcess, error)
	Update(ctx context.Context, p *store.BusinessProcess) (*store.BusinessProcess, error)
}

var _ Processes = (*store.ProcessStore)(nil)

// PageFetcher returns readable text for a web page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type StartRequest struct {
	BusinessID  string
	Description string
	Website     string
}

// AgentResults are step outputs produced outside this service, for example
// by a chat surface where a person talked to the agents directly.
type AgentResults struct {
	Assessment map[string]any `json:"assessment"`
	Mission    map[string]any `json:"mission"`
	Execution  map[string]any `json:"execution"`
}

type StartResult struct {
	Assessment map[string]any
	Mission    map[string]any
	Execution  map[string]any
	Process    *store.BusinessProcess
}

type ValidationResult struct {
	Approved bool
	Feedback string
	Result   map[string]any
	Process  *store.BusinessProcess
}

const notifyTimeout = 10 * time.Second

// Service drives the pipeline. Agent failures never reach it: the caller
// always answers, remotely or from a simulator.
type Service struct {
	processes Processes
	agents    agent.Caller
	logger    *observability.Logger
	notifier  notify.Notifier
	pages     PageFetcher
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithPageFetcher(f PageFetcher) Option {
	return func(s *Service) { s.pages = f }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(processes Processes, agents agent.Caller, logger *observability.Logger, opts ...Option) *Service {
	s := &Service{
		processes: processes,
		agents:    agents,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartMission runs assessment, coaching and execution for a business and
// records the chosen mission as active.
func (s *Service) StartMission(ctx context.Context, req StartRequest) (*StartResult, error) {
	runID := s.newID()
	defer observability.RunFinished()

	p, err := s.loadOrCreate(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}

	observability.SetStatus(observability.StageAssessing, req.BusinessID)
	reply := s.agents.Call(ctx, agent.Request{
		Role:       agent.RoleAssessment,
		BusinessID: req.BusinessID,
		RunID:      runID,
		Message:    s.assessmentMessage(ctx, req),
		Context:    map[string]any{"businessId": req.BusinessID},
		Input:      agent.SimulationInput{Description: req.Description},
	})
	// Once assessment has answered the run completes even if the caller leaves.
	ctx = context.WithoutCancel(ctx)
	assessment := s.resolve(req.BusinessID, runID, store.StepAssessment, reply.Text, assessmentFallback)

	observability.SetStatus(observability.StageCoaching, req.BusinessID)
	state := map[string]any{
		"currentLevel":      p.CurrentLevel,
		"completedMissions": p.CompletedMissions,
		"activeMission":     p.ActiveMission,
	}
	reply = s.agents.Call(ctx, agent.Request{
		Role:       agent.RoleLeanCoach,
		BusinessID: req.BusinessID,
		RunID:      runID,
		Message:    fmt.Sprintf("Assessment findings: %s\nBusiness state: %s", toJSON(assessment), toJSON(state)),
		Context:    map[string]any{"businessId": req.BusinessID},
		Input: agent.SimulationInput{
			Findings:          assessment,
			CurrentLevel:      string(p.CurrentLevel),
			CompletedMissions: p.CompletedMissions,
			ActiveMission:     deref(p.ActiveMission),
		},
	})
	mission := s.resolve(req.BusinessID, runID, store.StepLeanCoach, reply.Text, missionFallback)

	observability.SetStatus(observability.StageExecuting, req.BusinessID)
	reply = s.agents.Call(ctx, agent.Request{
		Role:       agent.RoleExecution,
		BusinessID: req.BusinessID,
		RunID:      runID,
		Message:    toJSON(mission),
		Context:    map[string]any{"businessId": req.BusinessID},
		Input:      agent.SimulationInput{Mission: mission},
	})
	execution := s.resolve(req.BusinessID, runID, store.StepExecution, reply.Text, executionFallback)

	return s.finishStart(ctx, runID, p, AgentResults{
		Assessment: assessment,
		Mission:    mission,
		Execution:  execution,
	})
}

// StartMissionWithResults records results computed elsewhere exactly as
// StartMission records its own.
func (s *Service) StartMissionWithResults(ctx context.Context, businessID string, results AgentResults) (*StartResult, error) {
	runID := s.newID()
	defer observability.RunFinished()

	p, err := s.loadOrCreate(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if results.Assessment == nil {
		results.Assessment = map[string]any{}
	}
	if results.Mission == nil {
		results.Mission = map[string]any{}
	}
	if results.Execution == nil {
		results.Execution = map[string]any{}
	}
	return s.finishStart(ctx, runID, p, results)
}

func (s *Service) finishStart(ctx context.Context, runID string, p *store.BusinessProcess, results AgentResults) (*StartResult, error) {
	observability.SetStatus(observability.StagePersisting, p.BusinessID)

	now := s.now()
	if id := agent.MissionIDOf(results.Mission); id != "" {
		p.ActiveMission = &id
	} else {
		p.ActiveMission = nil
	}
	p.AppendStep(store.StepAssessment, results.Assessment, now)
	p.AppendStep(store.StepLeanCoach, results.Mission, now)
	p.AppendStep(store.StepExecution, results.Execution, now)

	updated, err := s.commitStart(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.LogStoreWrite(updated.BusinessID, runID, updated.ID, updated.Version)

	s.publish(ctx, notify.EventMissionStarted, updated.BusinessID, map[string]any{
		"activeMission": updated.ActiveMission,
		"currentLevel":  updated.CurrentLevel,
		"mission":       results.Mission,
	})

	return &StartResult{
		Assessment: results.Assessment,
		Mission:    results.Mission,
		Execution:  results.Execution,
		Process:    updated,
	}, nil
}

// ValidateEvidence asks the validation agent to review evidence for a
// mission. Only an explicit boolean approval completes the mission.
func (s *Service) ValidateEvidence(ctx context.Context, businessID string, evidence map[string]any, missionID string) (*ValidationResult, error) {
	runID := s.newID()
	defer observability.RunFinished()

	p, err := s.processes.LoadByBusinessID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("validate %s: %w", businessID, ErrProcessNotFound)
	}

	observability.SetStatus(observability.StageValidating, businessID)
	reply := s.agents.Call(ctx, agent.Request{
		Role:       agent.RoleValidation,
		BusinessID: businessID,
		RunID:      runID,
		Message:    fmt.Sprintf("Mission ID: %s\nEvidence: %s", missionID, toJSON(evidence)),
		Context:    map[string]any{"businessId": businessID, "missionId": missionID},
		Input:      agent.SimulationInput{MissionID: missionID, Evidence: evidence},
	})
	ctx = context.WithoutCancel(ctx)
	result := s.resolve(businessID, runID, store.StepValidation, reply.Text, validationFallback)

	approved, _ := result["approved"].(bool)
	feedback, _ := result["feedback"].(string)

	observability.SetStatus(observability.StagePersisting, businessID)
	now := s.now()
	if approved {
		p.AddCompletedMission(missionID)
		p.ActiveMission = nil
		p.AddProgress(store.ProgressStep)
	}
	p.LastValidation = &store.Validation{
		MissionID: missionID,
		Approved:  approved,
		Feedback:  feedback,
		Timestamp: now,
	}
	p.AppendStep(store.StepValidation, result, now)

	updated, err := s.processes.Update(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("validate %s: %w", businessID, ErrProcessNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.logger.LogStoreWrite(businessID, runID, updated.ID, updated.Version)

	progress := Project(updated).Progress
	s.logger.LogValidation(businessID, runID, missionID, approved, progress)
	s.publish(ctx, notify.EventEvidenceValidated, businessID, map[string]any{
		"missionId": missionID,
		"approved":  approved,
		"feedback":  feedback,
		"progress":  progress,
	})

	return &ValidationResult{
		Approved: approved,
		Feedback: feedback,
		Result:   result,
		Process:  updated,
	}, nil
}

// Progress returns the externally visible view of a business's process.
func (s *Service) Progress(ctx context.Context, businessID string) (Progress, error) {
	p, err := s.processes.LoadByBusinessID(ctx, businessID)
	if err != nil {
		return Progress{}, err
	}
	if p == nil {
		return Progress{}, fmt.Errorf("progress %s: %w", businessID, ErrProcessNotFound)
	}
	return Project(p), nil
}

func (s *Service) loadOrCreate(ctx context.Context, businessID string) (*store.BusinessProcess, error) {
	p, err := s.processes.LoadByBusinessID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	created, err := s.processes.Create(ctx, store.NewBusinessProcess(s.newID(), businessID, s.now()))
	if errors.Is(err, store.ErrExists) {
		// Lost a create race; use the winner's document.
		p, err = s.processes.LoadByBusinessID(ctx, businessID)
		if err == nil && p == nil {
			err = fmt.Errorf("load process %s after create race: %w", businessID, store.ErrNotFound)
		}
		return p, err
	}
	return created, err
}

// commitStart writes p. If the document disappeared since it was loaded, a
// new one is created carrying the computed state.
func (s *Service) commitStart(ctx context.Context, p *store.BusinessProcess) (*store.BusinessProcess, error) {
	updated, err := s.processes.Update(ctx, p)
	if !errors.Is(err, store.ErrNotFound) {
		return updated, err
	}
	fresh := *p
	fresh.ID = s.newID()
	fresh.Version = ""
	fresh.CreatedAt = s.now()
	fresh.UpdatedAt = fresh.CreatedAt
	return s.processes.Create(ctx, &fresh)
}

func (s *Service) resolve(businessID, runID string, step store.StepName, raw string, fallback func(string) map[string]any) map[string]any {
	res := agent.Resolve(raw)
	s.logger.LogStep(businessID, runID, string(step), res.IsStructured())
	return res.Or(fallback)
}

func (s *Service) assessmentMessage(ctx context.Context, req StartRequest) string {
	if req.Website == "" || s.pages == nil {
		return req.Description
	}
	excerpt, err := s.pages.Fetch(ctx, req.Website)
	if err != nil || strings.TrimSpace(excerpt) == "" {
		s.logger.LogFallback(req.BusinessID, "", "website", fmt.Sprintf("fetch %s: %v", req.Website, err))
		return req.Description
	}
	return req.Description + "\n\nWebsite excerpt:\n" + excerpt
}

// publish blocks the caller for at most notifyTimeout after the write has
// committed. Failures are only logged.
func (s *Service) publish(ctx context.Context, event, businessID string, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	err := s.notifier.Notify(ctx, notify.Event{
		Name:       event,
		BusinessID: businessID,
		Payload:    payload,
		At:         s.now(),
	})
	s.logger.LogNotify(businessID, event, err)
}

func assessmentFallback(raw string) map[string]any {
	return map[string]any{"wastes_detected": []any{}, "raw_response": raw}
}

func missionFallback(raw string) map[string]any {
	return map[string]any{"mission_id": agent.MissionMapProcess, "raw_response": raw}
}

func executionFallback(raw string) map[string]any {
	return map[string]any{"steps": []any{}, "raw_response": raw}
}

// Unreadable validation replies never approve.
func validationFallback(raw string) map[string]any {
	return map[string]any{
		"approved":     false,
		"feedback":     "Could not parse validation response",
		"raw_response": raw,
	}
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
