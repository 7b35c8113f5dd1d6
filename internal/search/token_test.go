package search

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncodeRaw(t *testing.T, payload string) string {
	t.Helper()
	return base64.URLEncoding.EncodeToString([]byte(payload))
}

func TestContinuationToken_RoundTrip(t *testing.T) {
	threshold := 0.42
	in := &GlobalContinuationToken{
		BackendTokens:      map[string]string{"sqlite": "118", "bleve": "200"},
		PageNumber:         3,
		TotalResultsSeen:   30,
		LastScoreThreshold: &threshold,
	}

	encoded, err := in.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	out, err := DecodeContinuationToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, in.BackendTokens, out.BackendTokens)
	assert.Equal(t, in.PageNumber, out.PageNumber)
	assert.Equal(t, in.TotalResultsSeen, out.TotalResultsSeen)
	require.NotNil(t, out.LastScoreThreshold)
	assert.InDelta(t, threshold, *out.LastScoreThreshold, 1e-12)
}

func TestContinuationToken_RoundTrip_Empty(t *testing.T) {
	in := &GlobalContinuationToken{}

	encoded, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeContinuationToken(encoded)
	require.NoError(t, err)
	assert.Zero(t, out.PageNumber)
	assert.Nil(t, out.LastScoreThreshold)
	assert.Empty(t, out.BackendTokens)
}

func TestDecodeContinuationToken_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"not base64", "%%% not base64 %%%"},
		{"base64 but not json", "bm90IGpzb24="},
		{"negative page", mustEncodeRaw(t, `{"page_number":-1}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeContinuationToken(tc.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTokenDecode)
		})
	}
}
