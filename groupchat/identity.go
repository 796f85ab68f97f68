package groupchat

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityFromToken reads the user id and, when present, the username from
// an access token's claims. The signature is not verified.
func IdentityFromToken(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parse access token: %w", err)
	}

	var id Identity
	switch v := claims["user_id"].(type) {
	case string:
		id.ID = v
	case float64:
		id.ID = fmt.Sprintf("%.0f", v)
	}
	if id.ID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			id.ID = sub
		}
	}
	if name, ok := claims["username"].(string); ok {
		id.Username = name
	}
	if id.ID == "" && id.Username == "" {
		return Identity{}, fmt.Errorf("access token carries no user claims")
	}
	return id, nil
}
