/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// The registry only consumes a verified display name per connection; issuing
// credentials is somebody else's job. With no --identity-secret configured,
// a plain ?name= query parameter is trusted as-is. With a secret set,
// clients must instead present a ?token= signed by the identity service,
// carrying the display name in the subject claim.

const maxDisplayNameLength = 32

func verifyDisplayName(cfg *Config, r *http.Request) (string, error) {
	if cfg.identitySecret != "" {
		return displayNameFromToken(cfg.identitySecret, r.URL.Query().Get("token"))
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	return validateDisplayName(name)
}

func displayNameFromToken(secret, token string) (string, error) {
	if token == "" {
		return "", errors.New("missing identity token")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid identity token: %w", err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("identity token has no subject")
	}

	return validateDisplayName(subject)
}

func validateDisplayName(name string) (string, error) {
	if name == "" {
		return "", errors.New("display name required")
	}
	if len(name) > maxDisplayNameLength {
		return "", fmt.Errorf("display name exceeds %d characters", maxDisplayNameLength)
	}
	return name, nil
}
