package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecanvas/askgate/internal/capability"
	"github.com/nodecanvas/askgate/internal/integration"
)

func caps(entries ...capability.EffectiveCapability) capability.Capabilities {
	return capability.Capabilities(entries)
}

func toolNames(c Catalog) []string {
	var names []string
	for _, t := range c.Tools {
		names = append(names, t.Name)
	}
	return names
}

func TestBuildReadOnlySheets(t *testing.T) {
	c := Build(caps(capability.EffectiveCapability{
		Family:       integration.Sheets(),
		Enabled:      true,
		ConnectionID: "c1",
		Permissions:  integration.Permissions{integration.CanRead: true},
	}))

	assert.Equal(t, []string{"sheets_list", "sheets_read"}, toolNames(c))
	assert.Equal(t, []string{integration.FamilySheets}, c.Families)
	assert.Contains(t, c.SystemPromptAddendum, "sheets_read")
	assert.NotContains(t, c.SystemPromptAddendum, "sheets_write")
	assert.NotContains(t, c.SystemPromptAddendum, "sheets_create")
	for _, tool := range c.Tools {
		assert.NotEmpty(t, tool.Description)
		assert.Contains(t, string(tool.InputSchema), `"type":"object"`)
	}
}

func TestBuildSkipsUnusableFamilies(t *testing.T) {
	c := Build(caps(
		capability.EffectiveCapability{
			Family:      integration.Gmail(),
			Enabled:     true,
			Permissions: integration.Permissions{integration.CanRead: true},
		},
		capability.EffectiveCapability{
			Family:       integration.Docs(),
			Enabled:      false,
			ConnectionID: "c1",
			Permissions:  integration.Permissions{integration.CanRead: true},
		},
	))
	assert.True(t, c.Empty())
	assert.Empty(t, c.SystemPromptAddendum)
	assert.Empty(t, c.Families)
}

func TestBuildOrdersFamiliesAndJoinsBlurbs(t *testing.T) {
	c := Build(caps(
		capability.EffectiveCapability{
			Family:       integration.Gmail(),
			Enabled:      true,
			ConnectionID: "g",
			Permissions:  integration.Permissions{integration.CanSend: true},
		},
		capability.EffectiveCapability{
			Family:       integration.Calendar(),
			Enabled:      true,
			ConnectionID: "g",
			Permissions:  integration.Permissions{integration.CanRead: true, integration.CanCreate: true},
		},
	))

	assert.Equal(t, []string{"gmail_send", "calendar_list_events", "calendar_create_event"}, toolNames(c))
	gmailAt := strings.Index(c.SystemPromptAddendum, "gmail_send")
	calAt := strings.Index(c.SystemPromptAddendum, "calendar_create_event")
	require.GreaterOrEqual(t, gmailAt, 0)
	assert.Greater(t, calAt, gmailAt)
	assert.Contains(t, c.SystemPromptAddendum, "\n\n## ")
}

func TestBuildNoGrantedTools(t *testing.T) {
	c := Build(caps(capability.EffectiveCapability{
		Family:       integration.Slack(),
		Enabled:      true,
		ConnectionID: "s",
		Permissions:  integration.Permissions{},
	}))
	assert.True(t, c.Empty())
	assert.Empty(t, c.SystemPromptAddendum)
	assert.Empty(t, c.Families)
}
