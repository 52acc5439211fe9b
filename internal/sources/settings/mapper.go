package settings

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/policy"
)

// Writer stores operator settings. Each setter reports whether the stored
// value changed.
type Writer interface {
	SetEnabled(ctx context.Context, enabled bool) (bool, error)
	SetProxyConfig(ctx context.Context, raw string) (bool, error)
	SetUserSites(ctx context.Context, sites []string) (bool, error)
}

// Mapper converts a settings file into store writes
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// Apply writes every key present in f and returns the fields that changed
func (m *Mapper) Apply(ctx context.Context, w Writer, f File) ([]domain.Field, error) {
	var changed []domain.Field

	if f.Enabled != nil {
		ok, err := w.SetEnabled(ctx, *f.Enabled)
		if err != nil {
			return changed, fmt.Errorf("failed to apply enabled: %w", err)
		}
		if ok {
			changed = append(changed, domain.FieldEnabled)
		}
	}

	if f.Proxy != nil {
		ok, err := w.SetProxyConfig(ctx, strings.TrimSpace(*f.Proxy))
		if err != nil {
			return changed, fmt.Errorf("failed to apply proxy: %w", err)
		}
		if ok {
			changed = append(changed, domain.FieldProxyConfig)
		}
	}

	if f.UserSites != nil {
		ok, err := w.SetUserSites(ctx, m.MapSites(f.UserSites))
		if err != nil {
			return changed, fmt.Errorf("failed to apply user sites: %w", err)
		}
		if ok {
			changed = append(changed, domain.FieldUserSites)
		}
	}

	return changed, nil
}

// MapSites reduces each entry to a bare hostname and drops duplicates and
// entries without one. Order is kept.
func (m *Mapper) MapSites(raw []string) []string {
	sites := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		host := extractHost(r)
		if host == "" {
			continue
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		sites = append(sites, host)
	}
	return sites
}

// extractHost accepts a hostname, a URL or a wildcard pattern
// Example: "https://Mail.Example.com:8443/inbox" -> "mail.example.com"
// Example: "*.example.com" -> "example.com"
func extractHost(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "#") {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Hostname()
	} else {
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		if h, _, err := net.SplitHostPort(s); err == nil {
			s = h
		}
	}

	s = strings.TrimPrefix(s, "*.")
	s = strings.TrimPrefix(s, ".")
	return policy.NormalizeHost(s)
}
