package mission

import "github.com/rahul/digibiz/internal/store"

// Progress is what a business sees of its process document.
type Progress struct {
	BusinessID        string            `json:"businessId"`
	CurrentLevel      store.Level       `json:"currentLevel"`
	CompletedMissions []string          `json:"completedMissions"`
	ActiveMission     *string           `json:"activeMission"`
	Progress          int               `json:"progress"`
	LastValidation    *store.Validation `json:"lastValidation"`
}

// Project derives the progress view from a process document.
func Project(p *store.BusinessProcess) Progress {
	completed := p.CompletedMissions
	if completed == nil {
		completed = []string{}
	}
	progress := 0
	if p.Meta != nil {
		progress = p.Meta.Progress
	}
	if progress < 0 {
		progress = 0
	}
	if progress > store.ProgressMaximum {
		progress = store.ProgressMaximum
	}
	return Progress{
		BusinessID:        p.BusinessID,
		CurrentLevel:      p.CurrentLevel,
		CompletedMissions: completed,
		ActiveMission:     p.ActiveMission,
		Progress:          progress,
		LastValidation:    p.LastValidation,
	}
}
