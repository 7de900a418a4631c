package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SimulationInput is the structured context a simulator answers from. Each
// simulator reads only the fields its role needs.
type SimulationInput struct {
	Description       string
	Findings          map[string]any
	CurrentLevel      string
	CompletedMissions []string
	ActiveMission     string
	Mission           map[string]any
	MissionID         string
	Evidence          map[string]any
}

// Simulator produces a deterministic local reply for one role.
type Simulator interface {
	Simulate(in SimulationInput) map[string]any
}

// DefaultSimulators returns one simulator per pipeline role.
func DefaultSimulators() map[Role]Simulator {
	return map[Role]Simulator{
		RoleAssessment: AssessmentSimulator{},
		RoleLeanCoach:  CoachSimulator{},
		RoleExecution:  ExecutionSimulator{},
		RoleValidation: ValidationSimulator{},
	}
}

const (
	MissionMapProcess = "mission_map_process"
	MissionDefineKPIs = "mission_define_kpis"
)

// AssessmentSimulator flags lean wastes from keywords in the description.
type AssessmentSimulator struct{}

type wasteRule struct {
	keywords    []string
	waste       string
	description string
	severity    string
	impact      string
}

var wasteRules = []wasteRule{
	{
		keywords:    []string{"waiting", "delay"},
		waste:       "waiting",
		description: "Long waiting times identified in operations",
		severity:    "high",
		impact:      "Delays customer service and increases operational costs",
	},
	{
		keywords:    []string{"inventory", "stock"},
		waste:       "overproduction",
		description: "Inventory management inefficiencies detected",
		severity:    "medium",
		impact:      "Excess inventory ties up capital and storage space",
	},
	{
		keywords:    []string{"movement", "transport"},
		waste:       "transportation",
		description: "Unnecessary movement of materials or information",
		severity:    "medium",
		impact:      "Increases time and costs without adding value",
	},
}

func (AssessmentSimulator) Simulate(in SimulationInput) map[string]any {
	desc := strings.ToLower(in.Description)

	wastes := []any{}
	for _, rule := range wasteRules {
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				wastes = append(wastes, map[string]any{
					"type":        rule.waste,
					"description": rule.description,
					"severity":    rule.severity,
					"impact":      rule.impact,
				})
				break
			}
		}
	}
	if len(wastes) == 0 {
		wastes = append(wastes, map[string]any{
			"type":        "waiting",
			"description": "Operational inefficiencies requiring process optimization",
			"severity":    "medium",
			"impact":      "Opportunity for Lean improvement",
		})
	}

	return map[string]any{
		"wastes_detected": wastes,
		"summary":         fmt.Sprintf("Analysis identified %d type(s) of waste requiring attention.", len(wastes)),
		"next_action":     "Proceed to mission selection with Lean Coach Agent",
	}
}

// CoachSimulator picks the first mission the business has not completed.
type CoachSimulator struct{}

func (CoachSimulator) Simulate(in SimulationInput) map[string]any {
	level := in.CurrentLevel
	if level == "" {
		level = "organize"
	}

	missionID := MissionMapProcess
	for _, m := range in.CompletedMissions {
		if m == MissionMapProcess {
			missionID = MissionDefineKPIs
			break
		}
	}

	return map[string]any{
		"mission_id":   missionID,
		"mission_name": missionCatalog[missionID].name,
		"level":        level,
		"reason":       "Based on assessment findings, this mission addresses the identified waste",
		"next_steps":   "Proceed to Execution Agent for detailed action steps",
	}
}

type missionPlan struct {
	name     string
	steps    []string
	template string
	criteria string
}

var missionCatalog = map[string]missionPlan{
	MissionMapProcess: {
		name: "Mission 1: Map Your Core Process",
		steps: []string{
			"Identify your core business process",
			"Document each step from start to finish",
			"Mark decision points and handoffs",
			"Create a visual process map",
			"Review and validate with your team",
		},
		template: "/templates/core-process-map.pdf",
		criteria: "Complete process map with all steps documented",
	},
	MissionDefineKPIs: {
		name: "Mission 2: Define Key Performance Indicators",
		steps: []string{
			"Identify key metrics for your process",
			"Define measurement methods",
			"Set target values",
			"Establish tracking frequency",
			"Document KPI definitions",
		},
		template: "/templates/kpi-definition.pdf",
		criteria: "KPI sheet with targets and tracking frequency for each metric",
	},
}

// ExecutionSimulator expands a mission into its step plan.
type ExecutionSimulator struct{}

func (ExecutionSimulator) Simulate(in SimulationInput) map[string]any {
	missionID := MissionIDOf(in.Mission)
	if missionID == "" {
		missionID = MissionMapProcess
	}
	plan, ok := missionCatalog[missionID]
	if !ok {
		plan = missionCatalog[MissionMapProcess]
	}

	steps := make([]any, len(plan.steps))
	for i, s := range plan.steps {
		steps[i] = s
	}
	return map[string]any{
		"mission_id":       missionID,
		"mission_name":     plan.name,
		"steps":            steps,
		"template_url":     plan.template,
		"estimated_time":   "2-4 hours",
		"success_criteria": plan.criteria,
	}
}

// ValidationSimulator approves evidence that carries a detailed description
// and an evidence type.
type ValidationSimulator struct{}

// minEvidenceDescription is the length a description must exceed.
const minEvidenceDescription = 20

func (ValidationSimulator) Simulate(in SimulationInput) map[string]any {
	desc, _ := in.Evidence["description"].(string)
	approved := utf8.RuneCountInString(desc) > minEvidenceDescription && truthy(in.Evidence["type"])

	if approved {
		return map[string]any{
			"approved":     true,
			"feedback":     "Evidence meets mission requirements. Process map is complete and shows clear steps.",
			"score":        85,
			"improvements": []any{},
		}
	}
	return map[string]any{
		"approved":     false,
		"feedback":     "Evidence incomplete. Please provide a detailed description and evidence type.",
		"score":        40,
		"improvements": []any{"Add more detail to description", "Include evidence type"},
	}
}

// MissionIDOf reads mission_id (or missionId) from an agent result.
func MissionIDOf(m map[string]any) string {
	for _, key := range []string{"mission_id", "missionId"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}
