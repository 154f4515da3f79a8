package orchestrator

import (
	"github.com/nodecanvas/askgate/internal/integration"
)

// NodeConfig is a canvas node as sent by the web app. The asking node only
// needs ID and Name; the answering node carries the model settings and its
// integrations.
type NodeConfig struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ModelProvider    string   `json:"model_provider"`
	ModelName        string   `json:"model_name"`
	SystemPrompt     string   `json:"system_prompt"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	WebSearchEnabled bool     `json:"web_search_enabled"`

	Gmail    *integration.IntegrationConfig `json:"gmail_integration,omitempty"`
	Sheets   *integration.IntegrationConfig `json:"sheets_integration,omitempty"`
	Docs     *integration.IntegrationConfig `json:"docs_integration,omitempty"`
	Slack    *integration.IntegrationConfig `json:"slack_integration,omitempty"`
	Calendar *integration.IntegrationConfig `json:"calendar_integration,omitempty"`
}

// Integrations returns the node's integration configs keyed by family name.
// Families the node does not configure are absent.
func (n NodeConfig) Integrations() map[string]*integration.IntegrationConfig {
	out := make(map[string]*integration.IntegrationConfig, 5)
	for name, cfg := range map[string]*integration.IntegrationConfig{
		integration.FamilyGmail:    n.Gmail,
		integration.FamilySheets:   n.Sheets,
		integration.FamilyDocs:     n.Docs,
		integration.FamilySlack:    n.Slack,
		integration.FamilyCalendar: n.Calendar,
	} {
		if cfg != nil {
			out[name] = cfg
		}
	}
	return out
}

// DisplayName is the node's name, falling back to its id.
func (n NodeConfig) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Exchange is one earlier question and answer between the same two nodes.
type Exchange struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// Query is one Ask from a node to another.
type Query struct {
	ID          string
	UserID      string
	Text        string
	From        NodeConfig
	To          NodeConfig
	History     []Exchange
	Attachments []integration.Attachment
}

// Result is the outcome of a completed run.
type Result struct {
	Answer        string
	Iterations    int // tool dispatch rounds
	ProviderCalls int
	ToolCalls     int // calls that reached an executor
	DroppedCalls  int
	// Shortcut is set when the answer was synthesized from tool results.
	Shortcut bool
	// Prepared is set when the query preparer answered without the provider.
	Prepared bool
}
