package signing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner("k1", "super-secret")
	require.NoError(t, err)

	payload := map[string]interface{}{"type": "intent.reserved", "correlation_id": "corr_1"}
	sig, err := s.Sign(payload)
	require.NoError(t, err)
	require.Equal(t, "k1", sig.KeyID)
	require.NoError(t, s.Verify(payload, sig))
}

func TestVerifyFailsOnTamperedPayload(t *testing.T) {
	s, err := NewSigner("k1", "super-secret")
	require.NoError(t, err)

	sig, err := s.Sign(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	err = s.Verify(map[string]interface{}{"a": 2}, sig)
	require.Error(t, err)
}

func TestVerifyFailsOnUnknownKeyID(t *testing.T) {
	s, err := NewSigner("k1", "super-secret")
	require.NoError(t, err)
	sig, err := s.Sign(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	sig.KeyID = "other"
	require.Error(t, s.Verify(map[string]interface{}{"a": 1}, sig))
}
