package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".sig"
}

func TestMockValidatorExtractsClaimsFromPayload(t *testing.T) {
	v := &MockValidator{}
	token := fakeJWT(t, map[string]interface{}{"sub": "p1", "name": "Alice", "team": "Mumbai Indians"})

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "Mumbai Indians", claims.Team)
}

func TestMockValidatorFallsBackToDevDefaultsOnMalformedToken(t *testing.T) {
	v := &MockValidator{}

	claims, err := v.ValidateToken("not-a-jwt")
	require.NoError(t, err)
	assert.Equal(t, "dev-participant-1", claims.Subject)
	assert.Equal(t, "Dev Participant", claims.Name)
}

func TestMockValidatorFallsBackWhenSubjectMissing(t *testing.T) {
	v := &MockValidator{}
	token := fakeJWT(t, map[string]interface{}{"name": "Bob"})

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dev-participant-1", claims.Subject)
	assert.Equal(t, "Bob", claims.Name)
}
