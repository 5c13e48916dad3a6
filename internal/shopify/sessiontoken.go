package shopify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken is the verified identity carried by an App Bridge
// session token.
type SessionToken struct {
	Shop string
}

// ParseSessionToken verifies an embedded-app session token: an HS256
// JWT signed with the app secret, whose audience is the app's API key
// and whose dest claim names the shop it was minted for.
func ParseSessionToken(raw, apiKey, secret string) (*SessionToken, error) {
	token, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(apiKey),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid session token: unexpected claims type")
	}

	dest, _ := claims["dest"].(string)
	shop, err := shopFromDest(dest)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	return &SessionToken{Shop: shop}, nil
}

func shopFromDest(dest string) (string, error) {
	if dest == "" {
		return "", fmt.Errorf("missing dest claim")
	}

	parsed, err := url.Parse(dest)
	if err != nil {
		return "", fmt.Errorf("malformed dest claim: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		// Tokens minted by some clients carry a bare hostname.
		host = strings.TrimSpace(dest)
	}
	if !strings.HasSuffix(host, ".myshopify.com") {
		return "", fmt.Errorf("dest claim is not a shop domain: %q", dest)
	}
	return host, nil
}
