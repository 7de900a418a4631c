package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rahul/digibiz/internal/agent"
)

func newTestTelegram(t *testing.T) *TelegramGateway {
	t.Helper()
	return &TelegramGateway{Missions: newTestService(t), sanitizer: bluemonday.StrictPolicy()}
}

func TestTelegram_Handle(t *testing.T) {
	tg := newTestTelegram(t)
	ctx := context.Background()

	if got := tg.handle(ctx, 42, "/progress"); !strings.Contains(got, "No mission yet") {
		t.Errorf("Expected no-mission reply, got %q", got)
	}

	got := tg.handle(ctx, 42, "/mission Long waiting times during restocking")
	if !strings.Contains(got, "/evidence "+agent.MissionMapProcess) {
		t.Errorf("Expected evidence hint for the active mission, got %q", got)
	}

	got = tg.handle(ctx, 42, "/evidence "+agent.MissionMapProcess+" photo a fully detailed evidence description exceeding twenty chars")
	if !strings.HasPrefix(got, "Approved!") || !strings.Contains(got, "20%") {
		t.Errorf("Expected approval with progress, got %q", got)
	}

	got = tg.handle(ctx, 42, "/progress")
	if !strings.Contains(got, "Active mission: none") || !strings.Contains(got, "Completed: 1") {
		t.Errorf("Unexpected progress reply: %q", got)
	}
}

func TestTelegram_Usage(t *testing.T) {
	tg := newTestTelegram(t)
	ctx := context.Background()

	if got := tg.handle(ctx, 1, "hello"); got != telegramHelp {
		t.Errorf("Expected help text, got %q", got)
	}
	if got := tg.handle(ctx, 1, "/mission"); !strings.Contains(got, "/mission <description>") {
		t.Errorf("Expected mission usage, got %q", got)
	}
	if got := tg.handle(ctx, 1, "/evidence m1 photo"); !strings.HasPrefix(got, "Usage:") {
		t.Errorf("Expected evidence usage, got %q", got)
	}
}

func TestBusinessID(t *testing.T) {
	if got := BusinessID(-1001); got != "tg--1001" {
		t.Errorf("Unexpected business id %q", got)
	}
}

func TestTelegram_EvidenceKeepsPunctuation(t *testing.T) {
	tg := newTestTelegram(t)
	ctx := context.Background()

	tg.handle(ctx, 7, "/mission Long waiting times during restocking")
	got := tg.handle(ctx, 7, "/evidence "+agent.MissionMapProcess+" photo Tom's & Ann's map")
	if !strings.HasPrefix(got, "Not approved yet.") || !strings.Contains(got, "0%") {
		t.Errorf("Expected short evidence to be rejected, got %q", got)
	}
}
