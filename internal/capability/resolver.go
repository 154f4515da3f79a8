// Package capability decides, per request, which integration families the
// target node may use and with which permissions.
package capability

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nodecanvas/askgate/internal/connection"
	"github.com/nodecanvas/askgate/internal/integration"
)

// EffectiveCapability is one family's resolved state for a request.
type EffectiveCapability struct {
	Family       integration.Family
	Enabled      bool
	ConnectionID string
	Permissions  integration.Permissions
	// Widened is set when Gmail was granted full permissions because a
	// Google account is connected.
	Widened bool
}

// Usable reports whether the family's tools may be offered and dispatched.
func (c EffectiveCapability) Usable() bool {
	return c.Enabled && c.ConnectionID != ""
}

// Capabilities holds one entry per registered family, in registry order.
type Capabilities []EffectiveCapability

// Get returns the entry for a family name.
func (cs Capabilities) Get(name string) (EffectiveCapability, bool) {
	for _, c := range cs {
		if c.Family.Name() == name {
			return c, true
		}
	}
	return EffectiveCapability{}, false
}

// Usable returns the usable entries in order.
func (cs Capabilities) Usable() Capabilities {
	var out Capabilities
	for _, c := range cs {
		if c.Usable() {
			out = append(out, c)
		}
	}
	return out
}

// Only returns the entries whose family name satisfies keep, in order.
func (cs Capabilities) Only(keep func(family string) bool) Capabilities {
	var out Capabilities
	for _, c := range cs {
		if keep(c.Family.Name()) {
			out = append(out, c)
		}
	}
	return out
}

// Resolver resolves node integration configs into Capabilities.
type Resolver struct {
	registry    *integration.Registry
	lookup      connection.Lookup
	gmailWidens bool
	logger      zerolog.Logger
}

type Option func(*Resolver)

// WithGmailWidening toggles granting Gmail full permissions whenever a
// Google account is connected. On by default.
func WithGmailWidening(on bool) Option {
	return func(r *Resolver) { r.gmailWidens = on }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l.With().Str("component", "capability").Logger() }
}

func NewResolver(registry *integration.Registry, lookup connection.Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		registry:    registry,
		lookup:      lookup,
		gmailWidens: true,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the effective capability of every family. configs is
// keyed by family name; a missing entry is treated as disabled. Lookup
// failures degrade the affected family to unusable and are only logged.
func (r *Resolver) Resolve(ctx context.Context, userID string, configs map[string]*integration.IntegrationConfig) Capabilities {
	googleID := r.resolveGoogleConnection(ctx, userID, configs)

	out := make(Capabilities, 0, len(r.registry.Families()))
	for _, f := range r.registry.Families() {
		cfg := configs[f.Name()]
		var ec EffectiveCapability
		switch f.OAuthProvider() {
		case integration.ProviderGoogle:
			ec = r.resolveGoogleFamily(f, cfg, googleID)
		default:
			ec = r.resolveOwnFamily(ctx, f, cfg, userID)
		}
		out = append(out, ec)
	}
	return out
}

// resolveGoogleConnection returns the Google connection id shared by the
// Google families: the first configured one, else a single live lookup
// when any Google family could use it.
func (r *Resolver) resolveGoogleConnection(ctx context.Context, userID string, configs map[string]*integration.IntegrationConfig) string {
	anyEnabled := false
	for _, f := range r.registry.Families() {
		if f.OAuthProvider() != integration.ProviderGoogle {
			continue
		}
		cfg := configs[f.Name()]
		if cfg == nil {
			continue
		}
		if cfg.ConnectionID != "" {
			return cfg.ConnectionID
		}
		if cfg.Enabled {
			anyEnabled = true
		}
	}
	if !anyEnabled && !r.gmailWidens {
		return ""
	}
	return r.lookupConnection(ctx, userID, integration.ProviderGoogle)
}

func (r *Resolver) resolveGoogleFamily(f integration.Family, cfg *integration.IntegrationConfig, googleID string) EffectiveCapability {
	ec := EffectiveCapability{Family: f, Permissions: integration.Permissions{}}
	if cfg != nil {
		ec.Enabled = cfg.Enabled
		ec.ConnectionID = cfg.ConnectionID
		ec.Permissions = cfg.Permissions.Clone()
	}
	if ec.ConnectionID == "" {
		ec.ConnectionID = googleID
	}

	if f.Name() == integration.FamilyGmail && r.gmailWidens && googleID != "" {
		if !ec.Enabled || !ec.Permissions.Has(integration.CanSend) {
			ec.Enabled = true
			ec.Permissions = f.FullPermissions()
			ec.Widened = true
		}
	}
	return ec
}

func (r *Resolver) resolveOwnFamily(ctx context.Context, f integration.Family, cfg *integration.IntegrationConfig, userID string) EffectiveCapability {
	ec := EffectiveCapability{Family: f, Permissions: integration.Permissions{}}
	if cfg == nil {
		return ec
	}
	ec.Enabled = cfg.Enabled
	ec.ConnectionID = cfg.ConnectionID
	ec.Permissions = cfg.Permissions.Clone()
	if ec.ConnectionID == "" && ec.Enabled {
		ec.ConnectionID = r.lookupConnection(ctx, userID, f.OAuthProvider())
	}
	return ec
}

func (r *Resolver) lookupConnection(ctx context.Context, userID, provider string) string {
	if r.lookup == nil || userID == "" {
		return ""
	}
	conn, err := r.lookup.GetConnection(ctx, userID, provider)
	if err != nil {
		r.logger.Warn().Err(err).Str("provider", provider).Str("user_id", userID).Msg("connection lookup failed")
		return ""
	}
	if !conn.Active() {
		return ""
	}
	return conn.ID
}
