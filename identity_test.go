/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyDisplayNamePlain(t *testing.T) {
	cfg := testConfig()

	r := httptest.NewRequest("GET", "/ws?name=alice", nil)
	name, err := verifyDisplayName(cfg, r)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	r = httptest.NewRequest("GET", "/ws?name=++alice++", nil)
	name, err = verifyDisplayName(cfg, r)
	require.NoError(t, err)
	assert.Equal(t, "alice", name, "surrounding whitespace trimmed")

	r = httptest.NewRequest("GET", "/ws", nil)
	_, err = verifyDisplayName(cfg, r)
	assert.Error(t, err)

	r = httptest.NewRequest("GET", "/ws?name="+strings.Repeat("x", maxDisplayNameLength+1), nil)
	_, err = verifyDisplayName(cfg, r)
	assert.Error(t, err)
}

func TestVerifyDisplayNameToken(t *testing.T) {
	cfg := testConfig()
	cfg.identitySecret = "test-secret"

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString([]byte(cfg.identitySecret))
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)
	name, err := verifyDisplayName(cfg, r)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	// Plain names are not accepted once a secret is configured.
	r = httptest.NewRequest("GET", "/ws?name=alice", nil)
	_, err = verifyDisplayName(cfg, r)
	assert.Error(t, err)

	// Wrong key.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "mallory",
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	r = httptest.NewRequest("GET", "/ws?token="+forged, nil)
	_, err = verifyDisplayName(cfg, r)
	assert.Error(t, err)

	// Valid signature but no subject.
	empty, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).
		SignedString([]byte(cfg.identitySecret))
	require.NoError(t, err)
	r = httptest.NewRequest("GET", "/ws?token="+empty, nil)
	_, err = verifyDisplayName(cfg, r)
	assert.Error(t, err)
}
