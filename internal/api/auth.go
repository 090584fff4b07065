package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const credentialKey contextKey = "credential"

func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey, credential)
}

// Credential returns the caller's bearer credential, or "" when the request
// carried none. Empty credentials are still passed through, rejecting them is
// the relay core's call.
func Credential(ctx context.Context) string {
	credential, _ := ctx.Value(credentialKey).(string)

	return credential
}

func bearerCredential(r *http.Request) string {
	const prefix = "Bearer "

	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}

	return ""
}
