package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/digibiz/pkg/config"
)

// Role is the position an agent holds in the pipeline.
type Role string

const (
	RoleAssessment Role = "assessment"
	RoleLeanCoach  Role = "lean_coach"
	RoleExecution  Role = "execution"
	RoleValidation Role = "validation"
)

// Roles lists the pipeline roles in call order.
var Roles = []Role{RoleAssessment, RoleLeanCoach, RoleExecution, RoleValidation}

var ErrRegistryUnavailable = errors.New("agent registry unavailable")

// Registry maps roles to remote agent ids.
type Registry struct {
	Transport       string
	Endpoint        string
	OrchestrationID string
	ids             map[Role]string
}

// NewRegistry validates the agent configuration. When something required for
// the chosen transport is missing it still returns a usable registry for
// logging, together with an error wrapping ErrRegistryUnavailable.
func NewRegistry(cfg config.AgentsConfig) (*Registry, error) {
	r := &Registry{
		Transport:       cfg.Transport,
		Endpoint:        strings.TrimRight(firstNonEmpty(cfg.Endpoint, cfg.HostURL), "/"),
		OrchestrationID: cfg.OrchestrationID,
		ids: map[Role]string{
			RoleAssessment: cfg.AssessmentID,
			RoleLeanCoach:  cfg.LeanCoachID,
			RoleExecution:  cfg.ExecutionID,
			RoleValidation: cfg.ValidationID,
		},
	}

	var missing []string
	switch r.Transport {
	case "llm":
		// The model stands in for every agent; the role doubles as agent id.
		for _, role := range Roles {
			if r.ids[role] == "" {
				r.ids[role] = string(role)
			}
		}
	case "", "orchestrate":
		r.Transport = "orchestrate"
		if r.Endpoint == "" {
			missing = append(missing, "endpoint")
		}
		if r.OrchestrationID == "" {
			missing = append(missing, "orchestration_id")
		}
		for _, role := range Roles {
			if r.ids[role] == "" {
				missing = append(missing, string(role)+"_id")
			}
		}
	default:
		return r, fmt.Errorf("%w: unknown transport %q", ErrRegistryUnavailable, r.Transport)
	}

	if len(missing) > 0 {
		return r, fmt.Errorf("%w: missing %s", ErrRegistryUnavailable, strings.Join(missing, ", "))
	}
	return r, nil
}

// AgentID returns the configured agent id for role.
func (r *Registry) AgentID(role Role) (string, bool) {
	if r == nil {
		return "", false
	}
	id := r.ids[role]
	return id, id != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
