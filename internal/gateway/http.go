package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rahul/digibiz/internal/auth"
	"github.com/rahul/digibiz/internal/governance"
	"github.com/rahul/digibiz/internal/mission"
	"github.com/rahul/digibiz/internal/store"
	"github.com/rahul/digibiz/pkg/config"
)

// Missions is the pipeline as the transport layers see it.
type Missions interface {
	StartMission(ctx context.Context, req mission.StartRequest) (*mission.StartResult, error)
	StartMissionWithResults(ctx context.Context, businessID string, results mission.AgentResults) (*mission.StartResult, error)
	ValidateEvidence(ctx context.Context, businessID string, evidence map[string]any, missionID string) (*mission.ValidationResult, error)
	Progress(ctx context.Context, businessID string) (mission.Progress, error)
}

var _ Missions = (*mission.Service)(nil)

const conflictMessage = "the business process was changed by another request, please try again"

// API serves the mission endpoints.
type API struct {
	missions  Missions
	tokens    auth.TokenSource
	policy    governance.PolicyEngine
	sanitizer *bluemonday.Policy
}

// New builds the HTTP router. tokens and policy may be nil.
func New(cfg config.ServerConfig, missions Missions, tokens auth.TokenSource, policy governance.PolicyEngine) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	api := &API{
		missions:  missions,
		tokens:    tokens,
		policy:    policy,
		sanitizer: bluemonday.StrictPolicy(),
	}

	r.GET("/", api.Health)
	r.POST("/start", api.Start)
	r.GET("/progress", api.Progress)
	r.POST("/validate", api.Validate)
	r.POST("/auth/token", api.Token)
	return r
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Digibiz backend server is running"})
}

func (a *API) Start(c *gin.Context) {
	var req struct {
		BusinessID          string                `json:"businessId"`
		BusinessDescription string                `json:"businessDescription"`
		Website             string                `json:"website"`
		AgentResults        *mission.AgentResults `json:"agentResults"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	description := plainText(a.sanitizer, req.BusinessDescription)
	if req.BusinessID == "" || description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "businessId and businessDescription are required"})
		return
	}
	if !a.allowed(c, "start", req.BusinessID, description) {
		return
	}

	var (
		res *mission.StartResult
		err error
	)
	if req.AgentResults != nil {
		res, err = a.missions.StartMissionWithResults(c.Request.Context(), req.BusinessID, *req.AgentResults)
	} else {
		res, err = a.missions.StartMission(c.Request.Context(), mission.StartRequest{
			BusinessID:  req.BusinessID,
			Description: description,
			Website:     req.Website,
		})
	}
	if err != nil {
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"businessId":    res.Process.BusinessID,
		"currentLevel":  res.Process.CurrentLevel,
		"activeMission": res.Process.ActiveMission,
		"assessment":    res.Assessment,
		"mission":       res.Mission,
		"execution":     res.Execution,
	})
}

func (a *API) Progress(c *gin.Context) {
	businessID := c.Query("businessId")
	if businessID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "businessId is required"})
		return
	}
	p, err := a.missions.Progress(c.Request.Context(), businessID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "business": p})
}

func (a *API) Validate(c *gin.Context) {
	var req struct {
		BusinessID   string         `json:"businessId"`
		EvidenceData map[string]any `json:"evidenceData"`
		MissionID    string         `json:"missionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.BusinessID == "" || req.EvidenceData == nil || req.MissionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "businessId, evidenceData, and missionId are required"})
		return
	}
	if desc, ok := req.EvidenceData["description"].(string); ok {
		req.EvidenceData["description"] = plainText(a.sanitizer, desc)
	}
	evidence, _ := json.Marshal(req.EvidenceData)
	if !a.allowed(c, "validate", req.BusinessID, string(evidence)) {
		return
	}

	res, err := a.missions.ValidateEvidence(c.Request.Context(), req.BusinessID, req.EvidenceData, req.MissionID)
	if err != nil {
		a.fail(c, err)
		return
	}
	p := mission.Project(res.Process)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"approved": res.Approved,
		"feedback": res.Feedback,
		"business": gin.H{
			"businessId":        p.BusinessID,
			"currentLevel":      p.CurrentLevel,
			"completedMissions": p.CompletedMissions,
			"progress":          p.Progress,
		},
	})
}

// Token hands the browser chat widget a bearer token for the agent service.
func (a *API) Token(c *gin.Context) {
	if a.tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token exchange not configured"})
		return
	}
	tok, err := a.tokens.Token(c.Request.Context())
	if errors.Is(err, auth.ErrNoAPIKey) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (a *API) allowed(c *gin.Context, op, businessID, text string) bool {
	if a.policy == nil {
		return true
	}
	res, err := a.policy.Evaluate(c.Request.Context(), governance.Request{
		Operation:  op,
		BusinessID: businessID,
		Text:       text,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if res.Denied() {
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Reason})
		return false
	}
	return true
}

// plainText strips markup from s. The sanitizer escapes entities for HTML
// output; agents and the JSON document want the characters themselves.
func plainText(p *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(s)))
}

// fail answers pipeline errors. Unknown businesses stay 500 for existing
// clients; write conflicts ask the caller to retry.
func (a *API) fail(c *gin.Context, err error) {
	if errors.Is(err, store.ErrVersionConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": conflictMessage})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
