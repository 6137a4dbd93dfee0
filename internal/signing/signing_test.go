package signing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("signing-secret")

func TestSign_Format(t *testing.T) {
	sig, err := Sign(map[string]any{"jobId": "job_1"}, testSecret)
	require.NoError(t, err)

	assert.Len(t, sig, 64)
	assert.Equal(t, strings.ToLower(sig), sig)
}

func TestSign_KeyOrderDoesNotMatter(t *testing.T) {
	a, err := Sign(json.RawMessage(`{"jobId":"job_1","result":{"x":1,"y":[1,2]}}`), testSecret)
	require.NoError(t, err)

	b, err := Sign(json.RawMessage(`{"result":{"y":[1,2],"x":1},"jobId":"job_1"}`), testSecret)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestVerify(t *testing.T) {
	payload := map[string]any{
		"jobId":      "job_1",
		"requestId":  "req_1",
		"customerId": "cust_100",
		"resource":   "invoice",
	}
	sig, err := Sign(payload, testSecret)
	require.NoError(t, err)

	tests := []struct {
		name      string
		payload   any
		secret    []byte
		signature string
		expected  bool
	}{
		{
			name:      "valid signature",
			payload:   payload,
			secret:    testSecret,
			signature: sig,
			expected:  true,
		},
		{
			name: "changed value",
			payload: map[string]any{
				"jobId":      "job_1",
				"requestId":  "req_1",
				"customerId": "cust_200",
				"resource":   "invoice",
			},
			secret:    testSecret,
			signature: sig,
			expected:  false,
		},
		{
			name: "extra key",
			payload: map[string]any{
				"jobId":      "job_1",
				"requestId":  "req_1",
				"customerId": "cust_100",
				"resource":   "invoice",
				"extra":      true,
			},
			secret:    testSecret,
			signature: sig,
			expected:  false,
		},
		{
			name:      "different secret",
			payload:   payload,
			secret:    []byte("other-secret"),
			signature: sig,
			expected:  false,
		},
		{
			name:      "truncated signature",
			payload:   payload,
			secret:    testSecret,
			signature: sig[:32],
			expected:  false,
		},
		{
			name:      "corrupted signature",
			payload:   payload,
			secret:    testSecret,
			signature: flipLastHex(sig),
			expected:  false,
		},
		{
			name:      "malformed hex",
			payload:   payload,
			secret:    testSecret,
			signature: strings.Repeat("zz", 32),
			expected:  false,
		},
		{
			name:      "empty signature",
			payload:   payload,
			secret:    testSecret,
			signature: "",
			expected:  false,
		},
		{
			name:      "unencodable payload",
			payload:   func() {},
			secret:    testSecret,
			signature: sig,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Verify(tt.payload, tt.secret, tt.signature))
		})
	}
}

func TestVerify_ModifiedResult(t *testing.T) {
	sig, err := Sign(map[string]any{"jobId": "job_1", "result": map[string]int{"x": 1}}, testSecret)
	require.NoError(t, err)

	assert.False(t, Verify(map[string]any{"jobId": "job_1", "result": map[string]int{"x": 2}}, testSecret, sig))
}

func TestVerify_RoundTripSecrets(t *testing.T) {
	secrets := [][]byte{nil, []byte("a"), []byte(strings.Repeat("k", 200))}
	payloads := []any{nil, "text", 42, []any{1, "two"}, map[string]any{"nested": map[string]any{"ok": true}}}

	for _, secret := range secrets {
		for _, payload := range payloads {
			sig, err := Sign(payload, secret)
			require.NoError(t, err)
			assert.True(t, Verify(payload, secret, sig), "payload %v", payload)
		}
	}
}

func TestSigner(t *testing.T) {
	signer := NewSigner("shared")
	payload := map[string]string{"jobId": "job_9"}

	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	assert.True(t, signer.Verify(payload, sig))
	assert.False(t, NewSigner("other").Verify(payload, sig))
}

func flipLastHex(sig string) string {
	last := sig[len(sig)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	return sig[:len(sig)-1] + string(replacement)
}

func TestVerify_RejectsDuplicateKeyTamper(t *testing.T) {
	sig, err := Sign(map[string]any{"jobId": "job_1", "result": json.RawMessage(`{"status":"open"}`)}, testSecret)
	require.NoError(t, err)

	tampered := map[string]any{"jobId": "job_1", "result": json.RawMessage(`{"status":"paid","status":"open"}`)}
	assert.False(t, Verify(tampered, testSecret, sig))
}
