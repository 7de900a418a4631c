package agent

import "testing"

func TestResolve_WholeObject(t *testing.T) {
	res := Resolve(`  {"mission_id": "mission_map_process", "level": "organize"}  `)
	if !res.IsStructured() {
		t.Fatal("Expected structured result for a JSON object")
	}
	if res.Structured["mission_id"] != "mission_map_process" {
		t.Errorf("Unexpected mission id: %v", res.Structured["mission_id"])
	}
}

func TestResolve_EmbeddedInProse(t *testing.T) {
	raw := "Here is my analysis:\n```json\n{\"wastes_detected\": [{\"type\": \"waiting\"}]}\n```\nLet me know."
	res := Resolve(raw)
	if !res.IsStructured() {
		t.Fatal("Expected embedded JSON to be found")
	}
	wastes, ok := res.Structured["wastes_detected"].([]any)
	if !ok || len(wastes) != 1 {
		t.Errorf("Unexpected wastes: %v", res.Structured["wastes_detected"])
	}
	if res.Raw != raw {
		t.Error("Expected raw text to be kept")
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	res := Resolve(`first {"a": 1} then {"b": 2, "c": 3}`)
	if !res.IsStructured() {
		t.Fatal("Expected structured result")
	}
	if _, ok := res.Structured["a"]; !ok {
		t.Errorf("Expected the first object to win, got %v", res.Structured)
	}
	if _, ok := res.Structured["b"]; ok {
		t.Errorf("Expected the second object to be ignored, got %v", res.Structured)
	}
}

func TestResolve_SkipsBrokenCandidate(t *testing.T) {
	res := Resolve(`{broken {"ok": true}`)
	if !res.IsStructured() {
		t.Fatal("Expected the later valid object to be found")
	}
	if res.Structured["ok"] != true {
		t.Errorf("Unexpected result: %v", res.Structured)
	}
}

func TestResolve_BracesInsideStrings(t *testing.T) {
	res := Resolve(`note: {"feedback": "use {curly} braces", "approved": true} end`)
	if !res.IsStructured() {
		t.Fatal("Expected structured result")
	}
	if res.Structured["feedback"] != "use {curly} braces" {
		t.Errorf("Unexpected feedback: %v", res.Structured["feedback"])
	}
}

func TestResolve_Unstructured(t *testing.T) {
	cases := []string{
		"",
		"I could not analyse this business.",
		"half an object {\"a\": ",
		`["an", "array"]`,
		`"just a string"`,
	}
	for _, raw := range cases {
		res := Resolve(raw)
		if res.IsStructured() {
			t.Errorf("Expected %q to be unstructured, got %v", raw, res.Structured)
		}
		if res.Raw != raw {
			t.Errorf("Expected raw text unchanged, got %q", res.Raw)
		}
	}
}

func TestResult_Or(t *testing.T) {
	fallback := func(raw string) map[string]any {
		return map[string]any{"steps": []any{}, "raw_response": raw}
	}

	got := Resolve("no json here").Or(fallback)
	if got["raw_response"] != "no json here" {
		t.Errorf("Expected fallback with raw response, got %v", got)
	}

	got = Resolve(`{"steps": ["a"]}`).Or(fallback)
	if _, ok := got["raw_response"]; ok {
		t.Errorf("Expected structured value, got fallback %v", got)
	}
}
