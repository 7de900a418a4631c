package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_GetAgentPrompt(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"identity.md":   "Identity Content",
		"assessment.md": "Assessment Content",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(tempDir)

	prompt := pm.GetAgentPrompt("assessment")
	if !strings.Contains(prompt, "Identity Content") || !strings.Contains(prompt, "Assessment Content") {
		t.Errorf("Prompt missing expected parts: %q", prompt)
	}
	if strings.Index(prompt, "Identity Content") >= strings.Index(prompt, "Assessment Content") {
		t.Error("Identity should be before the agent prompt")
	}
	if strings.Contains(prompt, "wastes_detected") {
		t.Error("File prompt should replace the built-in one")
	}

	prompt = pm.GetAgentPrompt("validation")
	if !strings.Contains(prompt, "Identity Content") || !strings.Contains(prompt, `"approved"`) {
		t.Errorf("Expected identity plus built-in validation prompt, got %q", prompt)
	}
}

func TestPromptManager_NoDirectory(t *testing.T) {
	pm := NewPromptManager(filepath.Join(t.TempDir(), "missing"))
	if prompt := pm.GetAgentPrompt("lean_coach"); !strings.Contains(prompt, "mission_id") {
		t.Errorf("Expected built-in coach prompt, got %q", prompt)
	}
	if prompt := pm.GetAgentPrompt("custom-agent"); prompt != "" {
		t.Errorf("Expected empty prompt for unknown agent, got %q", prompt)
	}
}

func TestPromptManager_NoPathTraversal(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "prompts")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.md"), []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}
	pm := NewPromptManager(sub)
	if prompt := pm.GetAgentPrompt("../secret"); strings.Contains(prompt, "secret") {
		t.Errorf("Expected prompt lookup to stay inside the directory, got %q", prompt)
	}
}
