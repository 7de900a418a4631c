package store

import "time"

// Level is the maturity stage a business is working through.
type Level string

const (
	LevelOrganize Level = "organize"
	LevelImprove  Level = "improve"
	LevelGrow     Level = "grow"
)

// StepName identifies the pipeline step that produced a log entry.
type StepName string

const (
	StepAssessment StepName = "assessment"
	StepLeanCoach  StepName = "lean_coach"
	StepExecution  StepName = "execution"
	StepValidation StepName = "validation"
)

const (
	ProcessType     = "process"
	StatusStarted   = "started"
	ProgressStep    = 20
	ProgressMaximum = 100
)

// StepEntry is one record of the append-only pipeline log.
type StepEntry struct {
	Step      StepName       `json:"step"`
	Output    map[string]any `json:"output"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Validation is the outcome of the most recent evidence review.
type Validation struct {
	MissionID string    `json:"missionId"`
	Approved  bool      `json:"approved"`
	Feedback  string    `json:"feedback"`
	Timestamp time.Time `json:"timestamp"`
}

type Meta struct {
	Progress int `json:"progress"`
}

// BusinessProcess is the per-business document the pipeline reads and writes.
// Version is the store's concurrency token; it is not part of the body.
type BusinessProcess struct {
	ID                string      `json:"id"`
	Version           string      `json:"-"`
	Type              string      `json:"type"`
	BusinessID        string      `json:"businessId"`
	CurrentLevel      Level       `json:"currentLevel"`
	CompletedMissions []string    `json:"completedMissions"`
	EvidenceURLs      []string    `json:"evidenceUrls"`
	ActiveMission     *string     `json:"activeMission"`
	LastValidation    *Validation `json:"lastValidation"`
	Status            string      `json:"status"`
	Steps             []StepEntry `json:"steps"`
	Meta              *Meta       `json:"meta,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// NewBusinessProcess returns the initial document for an unseen business.
func NewBusinessProcess(id, businessID string, now time.Time) *BusinessProcess {
	return &BusinessProcess{
		ID:                id,
		Type:              ProcessType,
		BusinessID:        businessID,
		CurrentLevel:      LevelOrganize,
		CompletedMissions: []string{},
		EvidenceURLs:      []string{},
		Status:            StatusStarted,
		Steps:             []StepEntry{},
		Meta:              &Meta{Progress: 0},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// HasCompleted reports whether missionID is in the completed set.
func (p *BusinessProcess) HasCompleted(missionID string) bool {
	for _, m := range p.CompletedMissions {
		if m == missionID {
			return true
		}
	}
	return false
}

// AddCompletedMission inserts missionID unless it is already present.
func (p *BusinessProcess) AddCompletedMission(missionID string) {
	if p.HasCompleted(missionID) {
		return
	}
	p.CompletedMissions = append(p.CompletedMissions, missionID)
}

// AppendStep adds an entry to the step log.
func (p *BusinessProcess) AppendStep(step StepName, output map[string]any, at time.Time) {
	if output == nil {
		output = map[string]any{}
	}
	p.Steps = append(p.Steps, StepEntry{Step: step, Output: output, CreatedAt: at})
}

// AddProgress raises meta.progress by delta, clamped to [0, 100].
func (p *BusinessProcess) AddProgress(delta int) {
	if p.Meta == nil {
		p.Meta = &Meta{}
	}
	v := p.Meta.Progress + delta
	if v > ProgressMaximum {
		v = ProgressMaximum
	}
	if v < 0 {
		v = 0
	}
	p.Meta.Progress = v
}
