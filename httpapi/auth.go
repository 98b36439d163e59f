// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator resolves a request's credential to a stable user
// identity. The relay never derives identity from message content;
// whatever the authenticator says at handshake time is the identity
// for the connection's whole life.
type Authenticator interface {
	// Authenticate returns the identity for token, or false when the
	// token is unknown.
	Authenticate(token string) (identity string, ok bool)
}

// Compile-time interface check.
var _ Authenticator = (*StaticTokenAuthenticator)(nil)

// StaticTokenAuthenticator authenticates against a fixed token table,
// for deployments where users and their tokens are provisioned out of
// band. Lookup is by constant-time comparison over every entry so that
// timing does not leak which tokens exist; the table is two parallel
// slices, immutable after construction.
type StaticTokenAuthenticator struct {
	tokens     []string
	identities []string
}

// NewStaticTokenAuthenticator builds an authenticator from a
// token → identity map.
func NewStaticTokenAuthenticator(table map[string]string) *StaticTokenAuthenticator {
	auth := &StaticTokenAuthenticator{}
	for token, identity := range table {
		auth.tokens = append(auth.tokens, token)
		auth.identities = append(auth.identities, identity)
	}
	return auth
}

// Authenticate implements Authenticator.
func (a *StaticTokenAuthenticator) Authenticate(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	match := -1
	for i, candidate := range a.tokens {
		if len(candidate) == len(token) &&
			subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			match = i
		}
	}
	if match < 0 {
		return "", false
	}
	return a.identities[match], true
}

// requestToken extracts the bearer token from a request. The
// Authorization header wins; the "token" query parameter exists for
// WebSocket dials, where browsers cannot set headers.
func requestToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return token
	}
	return r.URL.Query().Get("token")
}
