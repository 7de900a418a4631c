package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ProcessStore persists BusinessProcess documents with version-token writes.
type ProcessStore struct {
	docs Documents
	now  func() time.Time
}

func NewProcessStore(docs Documents) *ProcessStore {
	return &ProcessStore{docs: docs, now: time.Now}
}

// LoadByBusinessID returns the process for businessID, or nil when none exists.
func (s *ProcessStore) LoadByBusinessID(ctx context.Context, businessID string) (*BusinessProcess, error) {
	doc, err := s.docs.Find(ctx, Selector{Type: ProcessType, BusinessID: businessID})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find process %s: %w", businessID, err)
	}
	return decode(doc)
}

// Create stores p as a new document. A second process for the same business
// fails with ErrExists.
func (s *ProcessStore) Create(ctx context.Context, p *BusinessProcess) (*BusinessProcess, error) {
	if p.ID == "" || p.BusinessID == "" {
		return nil, fmt.Errorf("create process: id and business id are required")
	}
	p.Type = ProcessType
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.Create(ctx, Document{
		ID:         p.ID,
		Type:       p.Type,
		BusinessID: p.BusinessID,
		Body:       body,
	})
	if err != nil {
		return nil, err
	}
	created := *p
	created.Version = doc.Rev
	return &created, nil
}

// Update writes p over the stored document. p.Version must be the token the
// caller read; if the stored document moved on since, ErrVersionConflict is
// returned and nothing is written. A missing document yields ErrNotFound.
func (s *ProcessStore) Update(ctx context.Context, p *BusinessProcess) (*BusinessProcess, error) {
	doc, err := s.docs.Get(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("update process %s: %w", p.ID, err)
	}
	current, err := decode(doc)
	if err != nil {
		return nil, err
	}
	if current.Version != p.Version {
		return nil, fmt.Errorf("update process %s: have %s, stored %s: %w", p.ID, p.Version, current.Version, ErrVersionConflict)
	}
	if len(p.Steps) < len(current.Steps) {
		return nil, fmt.Errorf("update process %s: step log cannot shrink from %d to %d", p.ID, len(current.Steps), len(p.Steps))
	}

	merged := *p
	merged.ID = current.ID
	merged.Type = current.Type
	merged.BusinessID = current.BusinessID
	merged.CreatedAt = current.CreatedAt
	merged.UpdatedAt = s.now()

	body, err := json.Marshal(&merged)
	if err != nil {
		return nil, err
	}
	written, err := s.docs.Put(ctx, Document{
		ID:         current.ID,
		Rev:        current.Version,
		Type:       current.Type,
		BusinessID: current.BusinessID,
		Body:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("update process %s: %w", p.ID, err)
	}
	merged.Version = written.Rev
	return &merged, nil
}

func decode(doc *Document) (*BusinessProcess, error) {
	var p BusinessProcess
	if err := json.Unmarshal(doc.Body, &p); err != nil {
		return nil, fmt.Errorf("decode process %s: %w", doc.ID, err)
	}
	p.ID = doc.ID
	p.Version = doc.Rev
	if p.CompletedMissions == nil {
		p.CompletedMissions = []string{}
	}
	if p.Steps == nil {
		p.Steps = []StepEntry{}
	}
	return &p, nil
}
