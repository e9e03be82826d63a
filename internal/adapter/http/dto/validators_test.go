package dto

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateKeyRequest{Name: "  ci deploy  ", Expiry: " 1D "}
	SanitizeStruct(&req)

	assert.Equal(t, "ci deploy", req.Name)
	assert.Equal(t, "1D", req.Expiry)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := CreateKeyRequest{Name: "bot <script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Name, "&lt;script&gt;")
	assert.NotContains(t, req.Name, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	type withPointer struct {
		Note *string
		Nil  *string
	}
	note := "  <b>hi</b>  "
	v := withPointer{Note: &note}
	SanitizeStruct(&v)

	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", *v.Note)
	assert.Nil(t, v.Nil)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestExpiryToken(t *testing.T) {
	tests := []struct {
		expiry string
		valid  bool
	}{
		{"1H", true},
		{"1d", true},
		{"1M", true},
		{"1y", true},
		{"2D", false},
		{"1W", false},
		{"forever", false},
	}

	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			req := RolloverKeyRequest{ExpiredKeyID: "550e8400-e29b-41d4-a716-446655440000", Expiry: tt.expiry}
			err := binding.Validator.ValidateStruct(&req)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, TagExpiryToken, FailedTag(err, TagExpiryToken))
		})
	}
}

func TestFailedTag(t *testing.T) {
	err := binding.Validator.ValidateStruct(&CreateKeyRequest{Expiry: "2Y"})
	require.Error(t, err)

	assert.Equal(t, TagExpiryToken, FailedTag(err, TagExpiryToken, "required"))
	assert.Equal(t, "required", FailedTag(err, "required", TagExpiryToken))
	assert.Empty(t, FailedTag(err, "uuid"))
	assert.Empty(t, FailedTag(assert.AnError, TagExpiryToken))
}

func TestValidIdempotencyKey(t *testing.T) {
	valid := []string{"", "retry-1", "order_42.v2", "2026:01:01"}
	for _, k := range valid {
		assert.True(t, ValidIdempotencyKey(k), "expected valid: %q", k)
	}

	invalid := []string{"has space", "semi;colon", "new\nline", strings.Repeat("a", MaxIdempotencyKeyLen+1)}
	for _, k := range invalid {
		assert.False(t, ValidIdempotencyKey(k), "expected invalid: %q", k)
	}
}
