package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "rate_limit error (code 429): slow down", WithCode(ErrorTypeRateLimit, 429, "slow down").Error())
	assert.Equal(t, "filesystem error: disk gone", New(ErrorTypeFilesystem, "disk gone").Error())
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(ErrorTypeFilesystem, fs.ErrPermission, "list item directory")

	assert.True(t, stderrors.Is(err, fs.ErrPermission))
	assert.Equal(t, ErrorTypeFilesystem, TypeOf(err))
	assert.Contains(t, err.Error(), "list item directory")

	outer := fmt.Errorf("inspect 123: %w", err)
	assert.True(t, Is(outer, ErrorTypeFilesystem))
	assert.False(t, Is(outer, ErrorTypeMalformedManifest))
}

func TestTypeOfUntyped(t *testing.T) {
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.False(t, Is(nil, ErrorTypeUnknown))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      bool
	}{
		{ErrorTypeTransientIO, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeAuth, false},
		{ErrorTypeMalformedManifest, false},
		{ErrorTypeFilesystem, false},
		{ErrorTypeMissingData, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.errorType))
		})
	}
}

func TestStatusCodes(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(404))

	assert.Equal(t, ErrorTypeRateLimit, TypeForStatusCode(429))
	assert.Equal(t, ErrorTypeAuth, TypeForStatusCode(401))
	assert.Equal(t, ErrorTypeAuth, TypeForStatusCode(403))
	assert.Equal(t, ErrorTypeNotFound, TypeForStatusCode(404))
	assert.Equal(t, ErrorTypeServerError, TypeForStatusCode(502))
	assert.Equal(t, ErrorTypeUnknown, TypeForStatusCode(418))
}
