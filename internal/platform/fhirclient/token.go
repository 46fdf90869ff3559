package fhirclient

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// StaticToken returns a source that always yields token.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// DefaultRefreshMargin keeps a cached token from being used close to its
// expiry.
const DefaultRefreshMargin = 30 * time.Minute

// ClientCredentials configures the OAuth2 client-credentials grant (e.g. Azure
// AD for Azure Health Data Services).
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	// RefreshMargin defaults to DefaultRefreshMargin. Tokens that live
	// shorter than the margin are fetched again on every request.
	RefreshMargin time.Duration
}

// TokenSource returns a cached source of client-credentials tokens. ctx is
// used for every token request; an *http.Client stored under oauth2.HTTPClient
// is honoured.
func (cc ClientCredentials) TokenSource(ctx context.Context) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		TokenURL:     cc.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cc.Scope != "" {
		cfg.Scopes = []string{cc.Scope}
	}
	margin := cc.RefreshMargin
	if margin == 0 {
		margin = DefaultRefreshMargin
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, grant{ctx: ctx, cfg: cfg}, margin)
}

// grant requests a fresh token on every call; caching is left to the reuse
// wrapper so the refresh margin applies.
type grant struct {
	ctx context.Context
	cfg *clientcredentials.Config
}

func (g grant) Token() (*oauth2.Token, error) {
	return g.cfg.Token(g.ctx)
}
