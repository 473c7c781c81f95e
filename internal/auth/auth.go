// Package auth is the authentication gate: it verifies HMAC-signed JWT
// bearer tokens against the configured signing key and attaches the
// resulting identity to a connection.
package auth

import (
	"encoding/json"
	"fmt"
	"strconv"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/gosocket/gosocket"
)

// IdentityStore is the slice of the connection registry the gate
// needs: attaching an identity under the registry's lock discipline.
type IdentityStore interface {
	SetIdentity(connID string, auth *gosocket.Auth) bool
}

// Gate validates bearer credentials. Verification is symmetric
// (HS256/HS384/HS512 against a shared signing key); actual user lookup
// stays an application responsibility.
type Gate struct {
	key   []byte
	store IdentityStore
}

// New creates a gate over a signing key and the registry it writes
// identities to.
func New(signingKey []byte, store IdentityStore) *Gate {
	return &Gate{key: signingKey, store: store}
}

// Authenticate verifies the token and, on success, attaches the
// identity to the connection and returns it. On failure the connection
// state is untouched and stays usable; bad credentials are never fatal
// and retries are unlimited. Re-authentication overwrites the prior
// identity.
func (g *Gate) Authenticate(connID, token string) (*gosocket.Auth, error) {
	identity, err := g.Verify(token)
	if err != nil {
		return nil, err
	}
	g.store.SetIdentity(connID, identity)
	return identity, nil
}

// Verify checks the token signature and claims without touching any
// connection.
func (g *Gate) Verify(token string) (*gosocket.Auth, error) {
	if token == "" {
		return nil, gosocket.ErrTokenRequired
	}
	if len(g.key) == 0 {
		return nil, fmt.Errorf("%w: no signing key configured", gosocket.ErrInvalidToken)
	}

	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// HMAC family only; an asymmetric or "none" header is an attack.
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return g.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gosocket.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, gosocket.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: claims type mismatch", gosocket.ErrInvalidToken)
	}

	userID := claimString(claims, "user_id")
	if userID == "" {
		userID = claimString(claims, "sub")
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: token carries no user identity", gosocket.ErrInvalidToken)
	}

	return &gosocket.Auth{
		ID:       userID,
		UserID:   userID,
		Username: claimString(claims, "username"),
		Email:    claimString(claims, "email"),
		Claims:   map[string]any(claims),
	}, nil
}

// claimString reads a claim that applications emit either as a string
// or as a number.
func claimString(claims jwtlib.MapClaims, name string) string {
	switch v := claims[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
