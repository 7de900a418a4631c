package observability

import (
	"sync"
	"time"
)

// Stage is the pipeline step the process is currently working on.
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageAssessing  Stage = "ASSESS"
	StageCoaching   Stage = "COACH"
	StageExecuting  Stage = "EXECUTE"
	StageValidating Stage = "VALIDATE"
	StagePersisting Stage = "PERSIST"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentStage  Stage
	BusinessID    string
	Runs          int
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentStage:  StageIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(stage Stage, businessID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentStage = stage
	globalStatus.BusinessID = businessID
}

// RunFinished returns the status to idle and counts the run.
func RunFinished() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentStage = StageIdle
	globalStatus.BusinessID = ""
	globalStatus.Runs++
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Stage, string, int, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentStage, globalStatus.BusinessID, globalStatus.Runs, globalStatus.LastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
