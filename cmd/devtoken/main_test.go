package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/omnichannel-support/internal/auth"
)

func TestRunIssuesVerifiableToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "local-secret")
	t.Setenv("AUTH_AGENT_GROUP", "Agents")

	var out bytes.Buffer
	require.NoError(t, run([]string{"--subject", "agent-5", "--email", "five@example.com"}, &out))

	claims, err := auth.NewTokenManager("local-secret", 60).ParseToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "agent-5", claims.Subject)
	assert.Equal(t, "five@example.com", claims.Email)
	assert.Equal(t, []string{"Agents"}, claims.Groups)
}

func TestRunRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	var out bytes.Buffer
	assert.Error(t, run(nil, &out))
	assert.Empty(t, out.String())
}
