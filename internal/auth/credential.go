// Package auth carries the operator's bearer credential through a request.
// The credential is opaque to everything except the remote client, which
// forwards it verbatim.
package auth

import (
	"context"
	"math"
	"strconv"
)

type credentialKey struct{}

// WithCredential returns a copy of ctx carrying the bearer token.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, token)
}

// CredentialFromContext reports the bearer token on ctx, if any.
func CredentialFromContext(ctx context.Context) (string, bool) {
	token, _ := ctx.Value(credentialKey{}).(string)
	return token, token != ""
}

// UserIDFromClaims extracts the "user_id" claim, which issuers encode as
// either a string or a JSON number.
func UserIDFromClaims(claims map[string]interface{}) (string, bool) {
	raw, ok := claims["user_id"]
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case float64:
		if v != math.Trunc(v) {
			return "", false
		}
		return strconv.FormatInt(int64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}
