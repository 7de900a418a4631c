package agent

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// PromptManager loads agent system prompts from a directory. A prompt is the
// shared identity.md followed by <agentID>.md; built-in prompts cover the
// four roles when no file exists.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

var defaultPrompts = map[string]string{
	string(RoleAssessment): `You are a Lean assessment agent for small businesses.
Read the business description and reply with JSON only:
{"wastes_detected": [{"type": "...", "description": "...", "severity": "low|medium|high", "impact": "..."}], "summary": "...", "next_action": "..."}`,
	string(RoleLeanCoach): `You are a Lean coach. Given assessment findings and the business state,
choose the single next mission and reply with JSON only:
{"mission_id": "...", "mission_name": "...", "level": "organize|improve|grow", "reason": "...", "next_steps": "..."}`,
	string(RoleExecution): `You turn a mission into an action plan. Reply with JSON only:
{"mission_id": "...", "mission_name": "...", "steps": ["..."], "template_url": "...", "estimated_time": "...", "success_criteria": "..."}`,
	string(RoleValidation): `You review evidence that a mission was completed. Approve only clear, detailed evidence.
Reply with JSON only: {"approved": true|false, "feedback": "...", "score": 0-100, "improvements": ["..."]}`,
}

// GetAgentPrompt returns the system prompt for agentID.
func (pm *PromptManager) GetAgentPrompt(agentID string) string {
	var parts []string
	if identity := pm.read("identity.md"); identity != "" {
		parts = append(parts, identity)
	}
	if specific := pm.read(agentID + ".md"); specific != "" {
		parts = append(parts, specific)
	} else if def, ok := defaultPrompts[agentID]; ok {
		parts = append(parts, def)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (pm *PromptManager) read(name string) string {
	if pm == nil || pm.Directory == "" {
		return ""
	}
	path := filepath.Join(pm.Directory, filepath.Base(name))
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}
