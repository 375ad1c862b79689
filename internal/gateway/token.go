package gateway

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/naka-gawa/tap-mssql/internal/config"
)

// tokenSource returns a static source for a pre-acquired token, otherwise a
// client credentials flow against the Azure AD token endpoint. Tokens are
// cached and refreshed by the source.
func tokenSource(ctx context.Context, cfg *config.AzureADConfig) oauth2.TokenSource {
	if cfg.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{cfg.Scope},
	}
	return cc.TokenSource(ctx)
}

// tokenProvider adapts a token source to the callback go-mssqldb expects.
func tokenProvider(ctx context.Context, cfg *config.AzureADConfig) func() (string, error) {
	ts := tokenSource(ctx, cfg)
	return func() (string, error) {
		tok, err := ts.Token()
		if err != nil {
			return "", fmt.Errorf("failed to acquire Azure AD token: %w", err)
		}
		return tok.AccessToken, nil
	}
}
