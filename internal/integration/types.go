package integration

import "encoding/json"

// Capability is a named permission within a family. It gates one or more tools.
type Capability string

const (
	CanRead   Capability = "canRead"
	CanSend   Capability = "canSend"
	CanDraft  Capability = "canDraft"
	CanModify Capability = "canModify"
	CanWrite  Capability = "canWrite"
	CanCreate Capability = "canCreate"
	CanUpdate Capability = "canUpdate"
	CanDelete Capability = "canDelete"
)

// Permissions maps a capability to whether it is granted. Missing means not granted.
type Permissions map[Capability]bool

func (p Permissions) Has(c Capability) bool {
	return p[c]
}

func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// IntegrationConfig is a node's declared setup for one family.
// It is request input and is never mutated.
type IntegrationConfig struct {
	Enabled      bool        `json:"enabled" yaml:"enabled"`
	ConnectionID string      `json:"connectionId,omitempty" yaml:"connection_id,omitempty"`
	Permissions  Permissions `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// ToolDefinition is a static, family-prefixed tool with the capability it needs.
type ToolDefinition struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	InputSchema        json.RawMessage `json:"input_schema"`
	RequiredCapability Capability      `json:"-"`
}

// ToolCallRequest is a tool call extracted from a provider turn, independent of wire shape.
type ToolCallRequest struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolCallResult is the outcome of one tool call. Result holds JSON text.
type ToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
	IsError    bool   `json:"isError"`
}

// Attachment is a file the user uploaded alongside the query.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ErrorResult builds an error result with a JSON {"error": msg} payload.
func ErrorResult(callID, msg string) ToolCallResult {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	return ToolCallResult{ToolCallID: callID, Result: string(payload), IsError: true}
}
