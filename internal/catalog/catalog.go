// Package catalog turns resolved capabilities into the tool list and prompt
// addendum sent to the model.
package catalog

import (
	"strings"

	"github.com/nodecanvas/askgate/internal/capability"
	"github.com/nodecanvas/askgate/internal/provider"
)

// Catalog is what the model is told it can do on this turn.
type Catalog struct {
	Tools                []provider.Tool
	SystemPromptAddendum string
	// Families names the families that contributed at least one tool.
	Families []string
}

// Empty reports whether no tools are offered.
func (c Catalog) Empty() bool { return len(c.Tools) == 0 }

// Build lists the granted tools of every usable family, in family order,
// together with one blurb per family describing exactly those operations.
func Build(caps capability.Capabilities) Catalog {
	var (
		out    Catalog
		blurbs []string
	)
	for _, c := range caps.Usable() {
		defs := c.Family.ListTools(c.Permissions)
		if len(defs) > 0 {
			out.Families = append(out.Families, c.Family.Name())
		}
		for _, def := range defs {
			out.Tools = append(out.Tools, provider.Tool{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: def.InputSchema,
			})
		}
		if blurb := c.Family.Describe(c.Permissions); blurb != "" {
			blurbs = append(blurbs, strings.TrimRight(blurb, "\n"))
		}
	}
	out.SystemPromptAddendum = strings.Join(blurbs, "\n\n")
	return out
}
