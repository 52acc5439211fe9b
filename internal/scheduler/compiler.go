package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/index"
	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/metrics"
	"github.com/MrSnakeDoc/georoute/internal/policy"
)

// StateReader is the persisted state the compiler reads.
type StateReader interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	GetUserSites(ctx context.Context) ([]string, error)
	GetGeo(ctx context.Context) (domain.GeoSnapshot, error)
}

// Compiler rebuilds the routing policy from persisted state and publishes it
// to the index. Requests are coalesced through a buffer-1 channel.
type Compiler struct {
	store     StateReader
	index     *index.MemoryIndex
	auth      *policy.Authenticator
	logger    logger.Logger
	metrics   *metrics.Metrics
	trigger   chan struct{}
	credDirty atomic.Bool
}

// NewCompiler creates a compiler runner
func NewCompiler(
	store StateReader,
	idx *index.MemoryIndex,
	auth *policy.Authenticator,
	log logger.Logger,
	m *metrics.Metrics,
) *Compiler {
	return &Compiler{
		store:   store,
		index:   idx,
		auth:    auth,
		logger:  log,
		metrics: m,
		trigger: make(chan struct{}, 1),
	}
}

// RequestCompile queues a recompilation
func (c *Compiler) RequestCompile() bool {
	return signal(c.trigger)
}

// RequestCredential queues a credential refresh followed by a recompilation
func (c *Compiler) RequestCredential() bool {
	c.credDirty.Store(true)
	return signal(c.trigger)
}

// Run processes requests until ctx is done
func (c *Compiler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.trigger:
			if c.credDirty.Swap(false) {
				if err := c.RefreshCredential(ctx); err != nil {
					c.logger.Error("failed to refresh proxy credential", logger.Error(err))
				}
			}
			if err := c.Compile(ctx); err != nil {
				c.logger.Error("failed to compile policy, keeping previous one", logger.Error(err))
			}
		}
	}
}

// RefreshCredential re-parses the stored proxy string into the auth
// responder. An unparseable string clears the credential.
func (c *Compiler) RefreshCredential(ctx context.Context) error {
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return err
	}

	if settings.ProxyConfig == "" {
		c.auth.SetCredential(nil)
		c.logger.Info("no proxy configured")
		return nil
	}

	cred, err := policy.ParseCredential(settings.ProxyConfig)
	if err != nil {
		// ConfigError only forces DIRECT routing
		c.auth.SetCredential(nil)
		c.logger.Warn("invalid proxy configuration", logger.Error(err))
		return nil
	}

	c.auth.SetCredential(cred)
	c.logger.Info("proxy credential updated",
		logger.String("proxy_host", cred.Host),
		logger.String("proxy_port", cred.Port),
		logger.Bool("login", cred.HasLogin()))
	return nil
}

// Compile reads the geo set, user sites and enabled flag, compiles them with
// the cached credential and swaps the result into the index
func (c *Compiler) Compile(ctx context.Context) error {
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	sites, err := c.store.GetUserSites(ctx)
	if err != nil {
		return err
	}
	geo, err := c.store.GetGeo(ctx)
	if err != nil {
		return err
	}

	p := policy.Compile(policy.Input{
		GeoDomains: geo.Domains,
		UserSites:  sites,
		Credential: c.auth.Credential(),
		Enabled:    settings.Enabled,
	})

	c.index.Update(index.Snapshot{
		Policy:    p,
		Enabled:   settings.Enabled,
		GeoReady:  geo.Ready,
		GeoCount:  len(geo.Domains),
		UserSites: len(sites),
		GeoMeta:   geo.Meta,
	})
	c.metrics.RecordCompile(p.Len(), p.Active())

	fields := []logger.Field{
		logger.Int("geo_domains", len(geo.Domains)),
		logger.Int("user_sites", len(sites)),
		logger.Int("merged", p.Len()),
		logger.Bool("active", p.Active()),
	}
	if !p.Active() {
		fields = append(fields, logger.String("reason", p.Reason()))
	}
	c.logger.Info("policy compiled", fields...)
	return nil
}
