package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := &Error{Type: ErrorTypeProtocol, Message: "Please try closing and re-opening your browser window.", Code: 200}
	assert.Equal(t, "protocol error (code 200): Please try closing and re-opening your browser window.", err.Error())

	wrapped := Wrap(ErrorTypeNetwork, "thread list", io.ErrUnexpectedEOF)
	assert.Equal(t, "network error: thread list: unexpected EOF", wrapped.Error())
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("crawl: %w", UnknownConversation("42"))
	assert.True(t, IsType(err, ErrorTypeUnknownConversation))
	assert.False(t, IsType(err, ErrorTypeProtocol))
	assert.False(t, IsType(io.EOF, ErrorTypeProtocol))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		errType ErrorType
		fatal   bool
	}{
		{ErrorTypeProtocol, true},
		{ErrorTypeUnknownConversation, true},
		{ErrorTypeMalformedInput, true},
		{ErrorTypeCredentials, true},
		{ErrorTypeNetwork, true},
		{ErrorTypeDownload, false},
		{ErrorType("other"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.errType))
		})
	}
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, ErrorTypeCredentials, StatusError(403, "").Type)
	assert.Equal(t, ErrorTypeNetwork, StatusError(502, "bad gateway").Type)
	assert.Equal(t, ErrorTypeProtocol, StatusError(404, "").Type)
	assert.Equal(t, 404, StatusError(404, "").Code)
}
