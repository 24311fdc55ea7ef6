// Package auth gates host elevation behind a shared secret.
package auth

import "crypto/subtle"

// Gate compares presented secrets against the configured one. A Gate with an
// empty secret never grants host.
type Gate struct {
	secret []byte
}

func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// IsHost reports whether presented matches the shared secret.
func (g *Gate) IsHost(presented string) bool {
	if g == nil || len(g.secret) == 0 || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare(g.secret, []byte(presented)) == 1
}

func (g *Gate) Enabled() bool { return g != nil && len(g.secret) > 0 }
