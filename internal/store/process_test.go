package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ProcessStore {
	t.Helper()
	docs, err := NewSQLiteDocuments(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDocuments failed: %v", err)
	}
	t.Cleanup(func() { docs.Close() })
	return NewProcessStore(docs)
}

func TestProcessStore_CreateAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.LoadByBusinessID(ctx, "b1")
	if err != nil {
		t.Fatalf("LoadByBusinessID failed: %v", err)
	}
	if p != nil {
		t.Fatalf("Expected no process for unseen business, got %+v", p)
	}

	created, err := s.Create(ctx, NewBusinessProcess("doc-1", "b1", time.Now()))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Version == "" {
		t.Error("Expected a version token after create")
	}

	loaded, err := s.LoadByBusinessID(ctx, "b1")
	if err != nil {
		t.Fatalf("LoadByBusinessID failed: %v", err)
	}
	if loaded == nil || loaded.ID != "doc-1" {
		t.Fatalf("Expected doc-1, got %+v", loaded)
	}
	if loaded.Version != created.Version {
		t.Errorf("Expected version %s, got %s", created.Version, loaded.Version)
	}
	if loaded.CurrentLevel != LevelOrganize || loaded.Meta == nil || loaded.Meta.Progress != 0 {
		t.Errorf("Unexpected initial state: %+v", loaded)
	}
}

func TestProcessStore_CreateDuplicateBusiness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, NewBusinessProcess("doc-1", "b1", time.Now())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := s.Create(ctx, NewBusinessProcess("doc-2", "b1", time.Now()))
	if !errors.Is(err, ErrExists) {
		t.Errorf("Expected ErrExists for a second process of b1, got %v", err)
	}
}

func TestProcessStore_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, NewBusinessProcess("doc-1", "b1", time.Now()))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mission := "mission_map_process"
	created.ActiveMission = &mission
	created.AppendStep(StepAssessment, map[string]any{"wastes_detected": []any{}}, time.Now())
	created.BusinessID = "someone-else"

	updated, err := s.Update(ctx, created)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Version == created.Version {
		t.Error("Expected a new version token after update")
	}
	if updated.BusinessID != "b1" {
		t.Errorf("Expected business id to stay b1, got %s", updated.BusinessID)
	}

	loaded, _ := s.LoadByBusinessID(ctx, "b1")
	if loaded == nil || loaded.ActiveMission == nil || *loaded.ActiveMission != mission {
		t.Fatalf("Expected active mission to be persisted, got %+v", loaded)
	}
	if len(loaded.Steps) != 1 || loaded.Steps[0].Step != StepAssessment {
		t.Errorf("Expected one assessment step, got %+v", loaded.Steps)
	}
}

func TestProcessStore_UpdateStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, NewBusinessProcess("doc-1", "b1", time.Now()))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	first := *created
	second := *created

	first.AddProgress(ProgressStep)
	if _, err := s.Update(ctx, &first); err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	second.Status = "changed"
	_, err = s.Update(ctx, &second)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict for stale writer, got %v", err)
	}

	loaded, _ := s.LoadByBusinessID(ctx, "b1")
	if loaded.Status != StatusStarted || loaded.Meta.Progress != ProgressStep {
		t.Errorf("Expected the first writer's state to survive, got status=%s progress=%d", loaded.Status, loaded.Meta.Progress)
	}
}

func TestProcessStore_UpdateMissing(t *testing.T) {
	s := newTestStore(t)
	p := NewBusinessProcess("ghost", "b1", time.Now())
	p.Version = "1-abc"

	_, err := s.Update(context.Background(), p)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	// No implicit create.
	if loaded, _ := s.LoadByBusinessID(context.Background(), "b1"); loaded != nil {
		t.Errorf("Expected update of a missing document not to create one, got %+v", loaded)
	}
}

func TestBusinessProcess_Helpers(t *testing.T) {
	p := NewBusinessProcess("doc-1", "b1", time.Now())

	p.AddCompletedMission("m1")
	p.AddCompletedMission("m1")
	if len(p.CompletedMissions) != 1 {
		t.Errorf("Expected set semantics, got %v", p.CompletedMissions)
	}

	for i := 0; i < 7; i++ {
		p.AddProgress(ProgressStep)
	}
	if p.Meta.Progress != ProgressMaximum {
		t.Errorf("Expected progress clamped at %d, got %d", ProgressMaximum, p.Meta.Progress)
	}

	p.Meta = nil
	p.AddProgress(ProgressStep)
	if p.Meta == nil || p.Meta.Progress != ProgressStep {
		t.Errorf("Expected meta to be created, got %+v", p.Meta)
	}
}

func TestNextRev(t *testing.T) {
	r1 := nextRev("")
	if r1[:2] != "1-" {
		t.Errorf("Expected first revision to start with 1-, got %s", r1)
	}
	r2 := nextRev(r1)
	if r2[:2] != "2-" {
		t.Errorf("Expected second revision to start with 2-, got %s", r2)
	}
}
