package policy

import "sync/atomic"

// Challenge is an authentication request raised while loading a resource.
type Challenge struct {
	IsProxy bool
	Host    string
	Realm   string
}

// Answer carries the login returned for a proxy challenge.
type Answer struct {
	Username string
	Password string
}

// Authenticator answers proxy authentication challenges from the most
// recently configured credential. Reads never block; the credential is
// swapped whole by SetCredential.
type Authenticator struct {
	cred atomic.Pointer[Credential]
}

// NewAuthenticator returns a responder with no credential.
func NewAuthenticator() *Authenticator {
	return &Authenticator{}
}

// SetCredential replaces the cached credential. nil clears it.
func (a *Authenticator) SetCredential(c *Credential) {
	if c == nil {
		a.cred.Store(nil)
		return
	}
	cp := *c
	a.cred.Store(&cp)
}

// Credential returns a copy of the cached credential, or nil.
func (a *Authenticator) Credential() *Credential {
	c := a.cred.Load()
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Respond returns the cached login for proxy challenges when both user and
// password are set. ok is false when the challenge should fall through to
// default handling.
func (a *Authenticator) Respond(ch Challenge) (Answer, bool) {
	if !ch.IsProxy {
		return Answer{}, false
	}
	c := a.cred.Load()
	if !c.HasLogin() {
		return Answer{}, false
	}
	return Answer{Username: c.User, Password: c.Pass}, true
}
