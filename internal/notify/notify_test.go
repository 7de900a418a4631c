package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWebhookNotifier_Notify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Decode failed: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Notify(context.Background(), Event{
		Name:       EventMissionStarted,
		BusinessID: "b1",
		Payload:    map[string]any{"activeMission": "mission_map_process"},
		At:         time.Now(),
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if got["event"] != EventMissionStarted {
		t.Errorf("Unexpected event field: %v", got["event"])
	}
	if len(got) != 2 {
		t.Errorf("Expected only event and payload fields, got %v", got)
	}
	payload, _ := got["payload"].(map[string]any)
	if payload["businessId"] != "b1" || payload["activeMission"] != "mission_map_process" {
		t.Errorf("Unexpected payload: %v", payload)
	}
	for _, key := range []string{"event", "Name", "BusinessID", "payload", "at"} {
		if _, ok := payload[key]; ok {
			t.Errorf("Expected payload without envelope field %q, got %v", key, payload)
		}
	}
}

func TestWebhookNotifier_Retries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.InitialDelay = time.Millisecond
	if err := n.Notify(context.Background(), Event{Name: EventEvidenceValidated}); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if c := atomic.LoadInt32(&calls); c != 3 {
		t.Errorf("Expected 3 attempts, got %d", c)
	}
}

func TestWebhookNotifier_ClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.InitialDelay = time.Millisecond
	if err := n.Notify(context.Background(), Event{Name: EventEvidenceValidated}); err == nil {
		t.Error("Expected error for 400 response")
	}
	if c := atomic.LoadInt32(&calls); c != 1 {
		t.Errorf("Expected no retry on 4xx, got %d attempts", c)
	}
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("down")}

	err := Multi{failing, ok}.Notify(context.Background(), Event{Name: EventMissionStarted})
	if err == nil {
		t.Error("Expected joined error")
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Errorf("Expected every notifier to receive the event, got %d and %d", len(ok.events), len(failing.events))
	}
}

func TestDial_BadURL(t *testing.T) {
	if _, err := Dial("not-a-redis-url"); err == nil {
		t.Error("Expected error for malformed redis url")
	}
}
