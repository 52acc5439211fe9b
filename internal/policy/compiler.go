// Package policy compiles the merged domain sets and the proxy credential
// into a routing decision function, its PAC rendering and the proxy
// authentication responder.
package policy

import (
	"net"
)

// Action is the outcome of a routing decision.
type Action string

const (
	ActionDirect Action = "DIRECT"
	ActionProxy  Action = "PROXY"
)

// Decision is the routing result for one host.
type Decision struct {
	Action  Action
	Host    string // proxy host, set for ActionProxy
	Port    string // proxy port, set for ActionProxy
	Matched string // listed domain that matched, set for ActionProxy
}

// ProxyAddr returns "host:port" for proxy decisions.
func (d Decision) ProxyAddr() string {
	if d.Action != ActionProxy {
		return ""
	}
	return net.JoinHostPort(d.Host, d.Port)
}

// Input is everything the compiler reads.
type Input struct {
	GeoDomains []string
	UserSites  []string
	Credential *Credential
	Enabled    bool
}

// Policy is an immutable compiled routing policy. A nil or inactive policy
// routes every host DIRECT.
type Policy struct {
	active bool
	reason string
	set    *SuffixSet
	proxy  Credential
	script string
}

// Compile merges GeoDomains then UserSites into one suffix set and binds it
// to the credential. The result is "always DIRECT" when the policy is
// disabled, the merged set is empty, or the credential is missing.
func Compile(in Input) *Policy {
	set := NewSuffixSet(in.GeoDomains, in.UserSites)
	p := &Policy{set: set}

	switch {
	case !in.Enabled:
		p.reason = "disabled"
	case in.Credential == nil:
		p.reason = "no proxy configured"
	case set.Len() == 0:
		p.reason = "empty domain set"
	default:
		p.active = true
		p.proxy = Credential{
			Host: SanitizeHost(in.Credential.Host),
			Port: SanitizePort(in.Credential.Port),
		}
		if p.proxy.Host == "" || p.proxy.Port == "" {
			p.active = false
			p.reason = "invalid proxy address"
		}
	}

	if p.active {
		p.script = renderPAC(set.Domains(), p.proxy.Host, p.proxy.Port)
	} else {
		p.script = directPAC
	}
	return p
}

// Active reports whether the policy can return PROXY for any host.
func (p *Policy) Active() bool { return p != nil && p.active }

// Reason explains why an inactive policy routes everything DIRECT.
func (p *Policy) Reason() string {
	if p == nil {
		return "not compiled"
	}
	return p.reason
}

// Len returns the number of merged domains.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return p.set.Len()
}

// Route decides how a host is reached.
func (p *Policy) Route(host string) Decision {
	if !p.Active() {
		return Decision{Action: ActionDirect}
	}
	matched, ok := p.set.Match(host)
	if !ok {
		return Decision{Action: ActionDirect}
	}
	return Decision{
		Action:  ActionProxy,
		Host:    p.proxy.Host,
		Port:    p.proxy.Port,
		Matched: matched,
	}
}

// Script returns the policy as a PAC script.
func (p *Policy) Script() string {
	if p == nil {
		return directPAC
	}
	return p.script
}
