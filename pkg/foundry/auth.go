package foundry

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultAuthorityHost is the Entra ID login host
	DefaultAuthorityHost = "https://login.microsoftonline.com"

	// DefaultScope is the token audience for hosted agent projects
	DefaultScope = "https://ai.azure.com/.default"
)

// Credentials is an Entra ID service principal
type Credentials struct {
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string
	Scope         string
}

// TokenURL returns the tenant's OAuth2 token endpoint
func (c Credentials) TokenURL() string {
	host := c.AuthorityHost
	if host == "" {
		host = DefaultAuthorityHost
	}
	return strings.TrimSuffix(host, "/") + "/" + c.TenantID + "/oauth2/v2.0/token"
}

// CredentialsHTTPClient returns an HTTP client that attaches bearer tokens
// obtained with the client credentials grant. Tokens are cached and refreshed
// by the oauth2 package.
func CredentialsHTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	if creds.TenantID == "" || creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New("foundry: incomplete client credentials")
	}
	scope := creds.Scope
	if scope == "" {
		scope = DefaultScope
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL(),
		Scopes:       []string{scope},
	}
	return cfg.Client(ctx), nil
}
