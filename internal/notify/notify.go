// Package notify publishes mission events to outside listeners.
package notify

import (
	"context"
	"errors"
	"time"
)

const (
	EventMissionStarted    = "mission_started"
	EventEvidenceValidated = "evidence_validated"
)

// Event is one mission lifecycle notification.
type Event struct {
	Name       string         `json:"event"`
	BusinessID string         `json:"businessId"`
	Payload    map[string]any `json:"payload"`
	At         time.Time      `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Multi sends every event to each notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
