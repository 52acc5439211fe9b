package policy

import (
	"fmt"
	"strings"
)

// Credential is the upstream proxy endpoint and optional login parsed from
// the "host:port[:user[:pass]]" configuration string.
type Credential struct {
	Host string
	Port string
	User string
	Pass string
}

// HasLogin reports whether both user and password are set.
func (c *Credential) HasLogin() bool {
	return c != nil && c.User != "" && c.Pass != ""
}

// ConfigError reports an unusable proxy configuration string.
type ConfigError struct {
	Raw    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("policy: invalid proxy config %q: %s", redact(e.Raw), e.Reason)
}

// ParseCredential splits raw on ':' into host, port, user and password.
// Host and port are required and are reduced to their safe character class;
// a host or port that is empty after sanitizing is rejected.
func ParseCredential(raw string) (*Credential, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 {
		return nil, &ConfigError{Raw: raw, Reason: "expected host:port"}
	}

	c := &Credential{
		Host: SanitizeHost(parts[0]),
		Port: SanitizePort(parts[1]),
	}
	if c.Host == "" {
		return nil, &ConfigError{Raw: raw, Reason: "empty host"}
	}
	if c.Port == "" {
		return nil, &ConfigError{Raw: raw, Reason: "empty port"}
	}
	if len(parts) > 2 {
		c.User = parts[2]
	}
	if len(parts) > 3 {
		c.Pass = parts[3]
	}
	return c, nil
}

// SanitizeHost keeps only ASCII letters, digits, '.' and '-'.
func SanitizeHost(s string) string {
	return keep(s, func(r rune) bool {
		return r == '.' || r == '-' || isAlnum(r)
	})
}

// SanitizePort keeps only ASCII digits.
func SanitizePort(s string) string {
	return keep(s, func(r rune) bool { return r >= '0' && r <= '9' })
}

func keep(s string, ok func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if ok(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// redact hides everything after the port.
func redact(raw string) string {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 3 {
		return raw
	}
	return parts[0] + ":" + parts[1] + ":***"
}
