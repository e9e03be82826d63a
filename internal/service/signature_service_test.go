package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte(`{"event":"charge.success"}`)

	signature := svc.Sign("sk_test_secret", payload)

	assert.Regexp(t, `^[0-9a-f]{128}$`, signature, "signature should be 128-char lowercase hex (SHA-512)")
	assert.Equal(t,
		"d2c20958e71984927bee0613f77fa295c3fa82f681cebac2f292d603fbc0ec52d7302b91f7beb43b3e289b0cee9b9867daf70f7a5b1af70eb4d8da1909b5fd36",
		signature)
	assert.True(t, svc.Verify("sk_test_secret", payload, signature))
	assert.True(t, svc.Verify("sk_test_secret", payload, strings.ToUpper(signature)), "hex case should not matter")
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte("original payload")
	signature := svc.Sign("correct-key", payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
	}{
		{"wrong key", "wrong-key", payload, signature},
		{"tampered payload", "correct-key", []byte("tampered payload"), signature},
		{"garbage signature", "correct-key", payload, "invalidsignature"},
		{"empty signature", "correct-key", payload, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}
