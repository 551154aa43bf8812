package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an HS256 operator token. Production terminals receive
// tokens from the login service; this is used for service credentials and
// local tooling.
func IssueToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
