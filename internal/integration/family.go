package integration

import (
	"fmt"
	"strings"
)

const (
	FamilyGmail    = "gmail"
	FamilySheets   = "sheets"
	FamilyDocs     = "docs"
	FamilySlack    = "slack"
	FamilyCalendar = "calendar"
)

// OAuth providers a family's connection comes from.
const (
	ProviderGoogle = "google"
	ProviderSlack  = "slack"
)

// Family is one integration domain: its tools, permission shape and prompt blurb.
type Family interface {
	Name() string
	Prefix() string
	OAuthProvider() string
	Tools() []ToolDefinition
	FullPermissions() Permissions
	ListTools(perms Permissions) []ToolDefinition
	Describe(perms Permissions) string
}

type family struct {
	name  string
	title string
	oauth string
	intro string
	tools []ToolDefinition
}

func (f *family) Name() string          { return f.name }
func (f *family) Prefix() string        { return f.name + "_" }
func (f *family) OAuthProvider() string { return f.oauth }

func (f *family) Tools() []ToolDefinition {
	out := make([]ToolDefinition, len(f.tools))
	copy(out, f.tools)
	return out
}

// FullPermissions grants every capability any of the family's tools require.
func (f *family) FullPermissions() Permissions {
	perms := make(Permissions)
	for _, t := range f.tools {
		perms[t.RequiredCapability] = true
	}
	return perms
}

func (f *family) ListTools(perms Permissions) []ToolDefinition {
	var out []ToolDefinition
	for _, t := range f.tools {
		if perms.Has(t.RequiredCapability) {
			out = append(out, t)
		}
	}
	return out
}

// Describe lists exactly the granted operations. Empty when nothing is granted.
func (f *family) Describe(perms Permissions) string {
	tools := f.ListTools(perms)
	if len(tools) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n%s\n", f.title, f.intro))
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}
	return sb.String()
}

// Registry is the lookup table of families keyed by tool-name prefix.
// Families keep their registration order.
type Registry struct {
	families []Family
	byPrefix map[string]Family
}

func NewRegistry(families ...Family) (*Registry, error) {
	r := &Registry{byPrefix: make(map[string]Family, len(families))}
	for _, f := range families {
		if _, exists := r.byPrefix[f.Prefix()]; exists {
			return nil, fmt.Errorf("family %q already registered", f.Name())
		}
		r.byPrefix[f.Prefix()] = f
		r.families = append(r.families, f)
	}
	return r, nil
}

// DefaultRegistry holds the five built-in families in canonical order:
// Gmail, Sheets, Docs, Slack, Calendar.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Gmail(), Sheets(), Docs(), Slack(), Calendar())
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Families() []Family {
	out := make([]Family, len(r.families))
	copy(out, r.families)
	return out
}

func (r *Registry) Get(name string) (Family, bool) {
	f, ok := r.byPrefix[name+"_"]
	return f, ok
}

// Lookup routes a tool name to its family by prefix.
func (r *Registry) Lookup(toolName string) (Family, bool) {
	i := strings.Index(toolName, "_")
	if i <= 0 {
		return nil, false
	}
	f, ok := r.byPrefix[toolName[:i+1]]
	return f, ok
}
