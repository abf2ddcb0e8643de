package main

import (
	"context"
	"crypto/subtle"
	"os"
	"strings"

	"github.com/BradenHooton/bulwark/internal/handlers"
)

// staticVerifier is the development credential backend: a fixed identifier to
// password map read from the environment. Deployments replace this with a
// verifier backed by the platform's user store.
type staticVerifier struct {
	users map[string]string
}

// newCredentialVerifier builds the verifier from DEV_USERS, formatted as
// "identifier:password" pairs separated by commas.
func newCredentialVerifier() handlers.CredentialVerifier {
	users := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv("DEV_USERS"), ",") {
		identifier, password, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if ok && identifier != "" {
			users[identifier] = password
		}
	}
	return &staticVerifier{users: users}
}

// Verify implements handlers.CredentialVerifier.
func (v *staticVerifier) Verify(_ context.Context, identifier, password string) (bool, error) {
	expected, exists := v.users[identifier]
	if !exists {
		// Compare anyway so unknown identifiers cost the same as known ones
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1, nil
}
