package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// Config keys shared by every Google-backed provider.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
)

// TokenSourceFromConfig builds an oauth2.TokenSource from connector config.
// When a refresh token and client credentials are present the source
// refreshes automatically; otherwise the access token is used as-is and
// expiry surfaces as ErrUnauthorized on the first API call.
func TokenSourceFromConfig(ctx context.Context, cfg domain.Config) (oauth2.TokenSource, error) {
	accessToken := cfg[KeyAccessToken]
	refreshToken := cfg[KeyRefreshToken]

	if accessToken == "" && refreshToken == "" {
		return nil, &domain.AuthenticationError{
			Provider: "google",
			Err:      fmt.Errorf("config missing %s and %s", KeyAccessToken, KeyRefreshToken),
		}
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	if refreshToken != "" {
		clientID := cfg[KeyClientID]
		clientSecret := cfg[KeyClientSecret]
		if clientID == "" || clientSecret == "" {
			return nil, &domain.AuthenticationError{
				Provider: "google",
				Err:      fmt.Errorf("refresh token requires %s and %s", KeyClientID, KeyClientSecret),
			}
		}

		oc := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleoauth.Endpoint,
		}
		return oc.TokenSource(ctx, token), nil
	}

	return oauth2.StaticTokenSource(token), nil
}
