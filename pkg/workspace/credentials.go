package workspace

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// CredentialsProvider yields the auth method for a git network operation.
// Every clone, listing, and push call receives one explicitly; nothing in
// this package captures ambient credential state.
type CredentialsProvider interface {
	AuthMethod() (transport.AuthMethod, error)
}

// TokenCredentials authenticates HTTPS remotes with an access token.
type TokenCredentials struct {
	// Username is the basic-auth username. GitHub ignores it for token auth;
	// empty defaults to the conventional "x-access-token".
	Username string
	Token    string
}

// AuthMethod returns basic auth over the token, or nil when no token is set.
func (c TokenCredentials) AuthMethod() (transport.AuthMethod, error) {
	if c.Token == "" {
		return nil, nil
	}
	username := c.Username
	if username == "" {
		username = "x-access-token"
	}
	return &githttp.BasicAuth{Username: username, Password: c.Token}, nil
}

// AnonymousCredentials accesses public remotes without authentication.
type AnonymousCredentials struct{}

// AuthMethod returns nil, selecting the transport's unauthenticated path.
func (AnonymousCredentials) AuthMethod() (transport.AuthMethod, error) {
	return nil, nil
}
